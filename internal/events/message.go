// Package events carries settled room mutations to other roomdesk processes
// and turns their announcements into local cache invalidations.
package events

import (
	"context"
	"encoding/json"
	"time"

	"roomdesk/internal/domain"
	"roomdesk/internal/mutation"
	"roomdesk/internal/querycache"
)

const (
	DefaultTopic  = "roomdesk/rooms/events"
	DefaultStream = "rooms:events"
)

// Message is the wire form of a successful mutation.
type Message struct {
	Origin  string        `json:"origin"`
	Kind    mutation.Kind `json:"kind"`
	RoomID  string        `json:"room_id,omitempty"`
	Room    *domain.Room  `json:"room,omitempty"`
	Message string        `json:"message"`
	At      time.Time     `json:"at"`
}

func NewMessage(origin string, ev mutation.Event) Message {
	return Message{
		Origin:  origin,
		Kind:    ev.Kind,
		RoomID:  ev.RoomID,
		Room:    ev.Room,
		Message: ev.Message,
		At:      ev.At,
	}
}

func decodeMessage(payload []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(payload, &m)
	return m, err
}

// Invalidator is the part of the query cache a remote event touches.
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) (int, error)
}

// applyRemote invalidates every room list unless m came from this process,
// whose controller already did it.
func applyRemote(ctx context.Context, cache Invalidator, self string, m Message) (bool, error) {
	if m.Origin == self {
		return false, nil
	}
	_, err := cache.Invalidate(ctx, querycache.TagRooms)
	return err == nil, err
}
