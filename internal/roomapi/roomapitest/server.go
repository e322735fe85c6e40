// Package roomapitest provides an in-memory room service for tests.
package roomapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"roomdesk/internal/domain"

	"github.com/google/uuid"
)

// BasePath is where the fake mounts the room endpoints.
const BasePath = "/api"

// Server 内存版房间服务：
// - IDs 使用 uuid，时间戳由服务端写入
// - roomNumber 唯一（重复时返回 400 + message）
// - 可注入失败响应、阻塞列表请求，用于测试缓存与控制器
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	rooms    map[string]domain.Room
	calls    map[string]int // "GET /rooms" -> count
	queries  []string       // raw query of every list call
	failures map[string][]failure
	listGate chan struct{}
}

type failure struct {
	status int
	body   any
}

func NewServer() *Server {
	s := &Server{
		rooms:    map[string]domain.Room{},
		calls:    map[string]int{},
		failures: map[string][]failure{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(BasePath+"/rooms", s.handleCollection)
	mux.HandleFunc(BasePath+"/rooms/", s.handleItem)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL is the value to configure the client with.
func (s *Server) BaseURL() string { return s.URL + BasePath }

// Seed stores rooms directly, assigning ids and timestamps when missing.
func (s *Server) Seed(rooms ...domain.Room) []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		now := time.Now().UTC().Truncate(time.Millisecond)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		s.rooms[r.ID] = r
		out = append(out, r)
	}
	return out
}

// Calls returns how many times "METHOD /rooms" or "METHOD /rooms/{id}" was hit.
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// ListQueries returns the raw query string of every list request so far.
func (s *Server) ListQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// FailNext makes the next request to key answer status with body instead.
// A nil body sends an empty response.
func (s *Server) FailNext(key string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = append(s.failures[key], failure{status: status, body: body})
}

// HoldLists blocks list requests until the returned release func is called.
func (s *Server) HoldLists() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.listGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.listGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) record(key string) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	if q := s.failures[key]; len(q) > 0 {
		s.failures[key] = q[1:]
		return q[0], true
	}
	return failure{}, false
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " /rooms"
	if f, ok := s.record(key); ok {
		writeJSON(w, f.status, f.body)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.RawQuery)
		gate := s.listGate
		s.mu.Unlock()
		if gate != nil {
			<-gate
		}
		rooms := s.list(r.URL.Query().Get("search"), r.URL.Query().Get("type"), r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rooms, "count": len(rooms)})
	case http.MethodPost:
		var in domain.CreateRoomData
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
			return
		}
		room, status, msg := s.save("", in)
		if status != http.StatusOK {
			writeJSON(w, status, map[string]any{"success": false, "message": msg})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": room})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, BasePath+"/rooms/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := r.Method + " /rooms/{id}"
	if f, ok := s.record(key); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		room, ok := s.rooms[id]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Room not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": room})
	case http.MethodPut:
		var in domain.UpdateRoomData
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
			return
		}
		room, status, msg := s.save(id, in.CreateRoomData)
		if status != http.StatusOK {
			writeJSON(w, status, map[string]any{"success": false, "message": msg})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": room})
	case http.MethodDelete:
		s.mu.Lock()
		_, ok := s.rooms[id]
		delete(s.rooms, id)
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Room not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": nil})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) list(search, typ, status string) []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	search = strings.ToLower(search)
	out := []domain.Room{}
	for _, r := range s.rooms {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.RoomNumber), search) &&
			!strings.Contains(strings.ToLower(r.Description), search) {
			continue
		}
		if typ != "" && string(r.Type) != typ {
			continue
		}
		if status != "" && string(r.Status) != status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out
}

// save creates (id == "") or replaces a room.
func (s *Server) save(id string, in domain.CreateRoomData) (domain.Room, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.RoomNumber == "" {
		return domain.Room{}, http.StatusBadRequest, "Room number is required"
	}
	for _, r := range s.rooms {
		if r.RoomNumber == in.RoomNumber && r.ID != id {
			return domain.Room{}, http.StatusBadRequest, "Room number already exists"
		}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	room := domain.Room{
		RoomNumber:  in.RoomNumber,
		Type:        in.Type,
		Price:       in.Price,
		Status:      in.Status,
		Description: in.Description,
		UpdatedAt:   now,
	}
	if id == "" {
		room.ID = uuid.NewString()
		room.CreatedAt = now
	} else {
		cur, ok := s.rooms[id]
		if !ok {
			return domain.Room{}, http.StatusNotFound, "Room not found"
		}
		room.ID = id
		room.CreatedAt = cur.CreatedAt
	}
	s.rooms[room.ID] = room
	return room, http.StatusOK, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
