package roomapi

import "fmt"

// Read-path messages. Server detail is never surfaced on reads.
const (
	MsgFetchRooms = "Failed to fetch rooms"
	MsgFetchRoom  = "Failed to fetch room"
)

// Write-path fallbacks, used when the server gives no message.
const (
	MsgCreateRoom = "Failed to create room"
	MsgUpdateRoom = "Failed to update room"
	MsgDeleteRoom = "Failed to delete room"
)

// FetchError is a failed read. Message is always the generic text.
type FetchError struct {
	Message    string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *FetchError) Error() string { return e.Message }

func (e *FetchError) Unwrap() error { return e.Err }

// APIError is a failed write. Message carries the server's message when one was sent.
type APIError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

func statusErr(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}
