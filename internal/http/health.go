package httpapi

import (
	"net/http"
	"time"

	"roomdesk/internal/querycache"
)

// HealthHandler GET /healthz
type HealthHandler struct {
	cache   *querycache.Cache
	hub     *Hub
	checks  map[string]func() bool
	started time.Time
}

func NewHealthHandler(cache *querycache.Cache, hub *Hub) *HealthHandler {
	return &HealthHandler{cache: cache, hub: hub, checks: map[string]func() bool{}, started: time.Now()}
}

// AddCheck reports an optional dependency, e.g. the MQTT connection.
// A failing check degrades the status but still answers 200.
func (h *HealthHandler) AddCheck(name string, ok func() bool) {
	h.checks[name] = ok
}

type healthStatus struct {
	Status      string           `json:"status"`
	Uptime      string           `json:"uptime"`
	Cache       querycache.Stats `json:"cache"`
	LiveClients int              `json:"live_clients"`
	Checks      map[string]bool  `json:"checks,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	st := healthStatus{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
		Cache:  h.cache.Stats(),
	}
	if h.hub != nil {
		st.LiveClients = h.hub.ClientCount()
	}
	if len(h.checks) > 0 {
		st.Checks = make(map[string]bool, len(h.checks))
		for name, ok := range h.checks {
			st.Checks[name] = ok()
			if !st.Checks[name] {
				st.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, Ok(st))
}
