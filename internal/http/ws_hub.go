package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"roomdesk/internal/mutation"
	"roomdesk/internal/querycache"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventMutation    = "ROOM_MUTATION"
	EventInvalidated = "ROOMS_INVALIDATED"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveEvent is one frame of the live feed.
type LiveEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans mutation outcomes and cache invalidations out to websocket clients.
// It is a mutation.Listener; Attach subscribes it to a cache.
type Hub struct {
	logger     *zap.Logger
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]bool),
	}
}

// Run 处理注册、注销和广播，ctx 取消时断开所有连接；只能调用一次
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("Live client registered", zap.String("remote", c.conn.RemoteAddr().String()))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client, drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnMutation implements mutation.Listener.
func (h *Hub) OnMutation(ev mutation.Event) {
	h.publish(LiveEvent{Type: EventMutation, Payload: liveMutation{Event: ev, Success: ev.Succeeded()}})
}

// Attach forwards every invalidation of cache to the live feed.
func (h *Hub) Attach(cache *querycache.Cache) (detach func()) {
	return cache.Subscribe(func(inv querycache.Invalidation) {
		h.publish(LiveEvent{Type: EventInvalidated, Payload: inv})
	})
}

type liveMutation struct {
	mutation.Event
	Success bool `json:"success"`
}

// publish never blocks the caller; a full queue drops the frame.
func (h *Hub) publish(ev LiveEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode live event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Live feed queue full, dropping event", zap.String("type", ev.Type))
	}
}

// ServeWS 升级为 websocket 并注册到 hub
func ServeWS(hub *Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		c := &wsClient{hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
		select {
		case hub.register <- c:
		case <-hub.done:
			conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}

// readPump only keeps the connection alive; clients do not send commands.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
