package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const roomsPath = "/api/v1/rooms"

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 注册健康检查
func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}

// RegisterRoomRoutes 注册房间页路由
func (r *Router) RegisterRoomRoutes(h *RoomsHandler) {
	// list + create
	r.Handle(roomsPath, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.List(w, req)
		case http.MethodPost:
			h.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// export 和 ws 是精确路由，优先于 {id}；房间 id 由上游分配（ObjectId），不会取这两个值
	r.Handle(roomsPath+"/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Export(w, req)
	})

	// {id}
	r.Handle(roomsPath+"/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, roomsPath+"/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodGet:
			h.Get(w, req, id)
		case http.MethodPut:
			h.Update(w, req, id)
		case http.MethodDelete:
			h.Delete(w, req, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterLiveRoutes 注册 websocket 推送
func (r *Router) RegisterLiveRoutes(hub *Hub) {
	r.Handle(roomsPath+"/ws", ServeWS(hub, r.logger))
}
