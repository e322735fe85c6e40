package domain

// FilterAll disables the type or status filter.
const FilterAll = "all"

// FilterCriteria scopes a room list query.
type FilterCriteria struct {
	Search string `json:"search"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

func DefaultFilter() FilterCriteria {
	return FilterCriteria{Search: "", Type: FilterAll, Status: FilterAll}
}

// TypeFilter returns the type to filter on, "" when the filter is off.
func (f FilterCriteria) TypeFilter() string { return activeValue(f.Type) }

// StatusFilter returns the status to filter on, "" when the filter is off.
func (f FilterCriteria) StatusFilter() string { return activeValue(f.Status) }

// IsDefault reports whether no filter is active.
func (f FilterCriteria) IsDefault() bool {
	return f.Search == "" && f.TypeFilter() == "" && f.StatusFilter() == ""
}

func activeValue(v string) string {
	if v == FilterAll {
		return ""
	}
	return v
}
