package domain

// Stats 房间列表汇总（页面顶部的统计卡片）
type Stats struct {
	Total     int     `json:"total"`
	Available int     `json:"available"`
	Occupied  int     `json:"occupied"`
	Revenue   float64 `json:"revenue"`
}

// ComputeStats summarizes a room list snapshot. Revenue is the sum of nightly prices.
func ComputeStats(rooms []Room) Stats {
	s := Stats{Total: len(rooms)}
	for _, r := range rooms {
		switch r.Status {
		case RoomStatusAvailable:
			s.Available++
		case RoomStatusOccupied:
			s.Occupied++
		}
		s.Revenue += r.Price
	}
	return s
}
