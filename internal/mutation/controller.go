// Package mutation binds each room write to its cache invalidation and to
// the listeners that report the outcome to the user.
package mutation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"roomdesk/internal/domain"
	"roomdesk/internal/querycache"

	"go.uber.org/zap"
)

// ErrBusy rejects a submit while the controller's previous call is outstanding.
var ErrBusy = errors.New("a request is already in progress")

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

const (
	MsgCreated = "Room created successfully"
	MsgUpdated = "Room updated successfully"
	MsgDeleted = "Room deleted successfully"
)

// Event is what listeners receive once a submit settles.
type Event struct {
	Kind    Kind         `json:"kind"`
	RoomID  string       `json:"roomId,omitempty"`
	Room    *domain.Room `json:"room,omitempty"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
	At      time.Time    `json:"at"`
}

func (e Event) Succeeded() bool { return e.Err == nil }

// Listener is notified of every settled submit (not of ErrBusy rejections).
type Listener interface {
	OnMutation(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnMutation(e Event) { f(e) }

// RoomWriter is the write half of the room API client.
type RoomWriter interface {
	CreateRoom(ctx context.Context, data domain.CreateRoomData) (domain.Room, error)
	UpdateRoom(ctx context.Context, data domain.UpdateRoomData) (domain.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// Invalidator is the part of the query cache a controller needs.
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) (int, error)
}

// Controller runs one kind of write. At most one call is outstanding per
// controller; there is no queueing and no cancellation of the running call.
type Controller[In any] struct {
	kind     Kind
	success  string
	validate func(In) error
	call     func(ctx context.Context, in In) (Event, error)
	cache    Invalidator
	logger   *zap.Logger
	busy     atomic.Bool

	mu        sync.RWMutex
	listeners []Listener
}

func NewCreate(api RoomWriter, cache Invalidator, logger *zap.Logger, listeners ...Listener) *Controller[domain.CreateRoomData] {
	return &Controller[domain.CreateRoomData]{
		kind:     KindCreate,
		success:  MsgCreated,
		validate: domain.CreateRoomData.Validate,
		call: func(ctx context.Context, in domain.CreateRoomData) (Event, error) {
			room, err := api.CreateRoom(ctx, in)
			if err != nil {
				return Event{}, err
			}
			return Event{RoomID: room.ID, Room: &room}, nil
		},
		cache:     cache,
		logger:    logger,
		listeners: listeners,
	}
}

func NewUpdate(api RoomWriter, cache Invalidator, logger *zap.Logger, listeners ...Listener) *Controller[domain.UpdateRoomData] {
	return &Controller[domain.UpdateRoomData]{
		kind:    KindUpdate,
		success: MsgUpdated,
		validate: func(in domain.UpdateRoomData) error {
			if in.ID == "" {
				return &domain.ValidationError{Message: domain.MsgRequiredFields}
			}
			return in.CreateRoomData.Validate()
		},
		call: func(ctx context.Context, in domain.UpdateRoomData) (Event, error) {
			room, err := api.UpdateRoom(ctx, in)
			if err != nil {
				return Event{RoomID: in.ID}, err
			}
			return Event{RoomID: in.ID, Room: &room}, nil
		},
		cache:     cache,
		logger:    logger,
		listeners: listeners,
	}
}

func NewDelete(api RoomWriter, cache Invalidator, logger *zap.Logger, listeners ...Listener) *Controller[string] {
	return &Controller[string]{
		kind:    KindDelete,
		success: MsgDeleted,
		call: func(ctx context.Context, id string) (Event, error) {
			return Event{RoomID: id}, api.DeleteRoom(ctx, id)
		},
		cache:     cache,
		logger:    logger,
		listeners: listeners,
	}
}

func (c *Controller[In]) Kind() Kind { return c.kind }

// Busy reports whether a call is outstanding.
func (c *Controller[In]) Busy() bool { return c.busy.Load() }

// AddListener registers l for every later submit.
func (c *Controller[In]) AddListener(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Submit validates in, performs the write and, only on success, invalidates
// every room list before notifying listeners. The returned error is the
// *domain.ValidationError, the API error, or ErrBusy.
func (c *Controller[In]) Submit(ctx context.Context, in In) (Event, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("Rejected mutation while busy", zap.String("kind", string(c.kind)))
		return Event{Kind: c.kind, Message: ErrBusy.Error(), Err: ErrBusy, At: time.Now()}, ErrBusy
	}
	defer c.busy.Store(false)

	if c.validate != nil {
		if err := c.validate(in); err != nil {
			ev := Event{Kind: c.kind, Message: err.Error(), Err: err, At: time.Now()}
			c.notify(ev)
			return ev, err
		}
	}

	ev, err := c.call(ctx, in)
	ev.Kind = c.kind
	ev.At = time.Now()
	if err != nil {
		ev.Err = err
		ev.Message = err.Error()
		c.logger.Info("Room mutation failed",
			zap.String("kind", string(c.kind)),
			zap.String("room_id", ev.RoomID),
			zap.Error(err),
		)
		c.notify(ev)
		return ev, err
	}

	// the write is committed upstream; a caller that went away must not stop the invalidation
	if _, ierr := c.cache.Invalidate(context.WithoutCancel(ctx), querycache.TagRooms); ierr != nil {
		// local entries are already stale; only the shared snapshots may linger until their TTL
		c.logger.Warn("Room list invalidation incomplete", zap.Error(ierr))
	}
	ev.Message = c.success
	c.notify(ev)
	return ev, nil
}

func (c *Controller[In]) notify(ev Event) {
	c.mu.RLock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range ls {
		l.OnMutation(ev)
	}
}
