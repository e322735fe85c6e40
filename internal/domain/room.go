package domain

import (
	"strings"
	"time"
)

// RoomType 房型
type RoomType string

const (
	RoomTypeSingle RoomType = "single"
	RoomTypeDouble RoomType = "double"
	RoomTypeSuite  RoomType = "suite"
	RoomTypeDeluxe RoomType = "deluxe"
)

// RoomTypes lists every type in display order.
var RoomTypes = []RoomType{RoomTypeSingle, RoomTypeDouble, RoomTypeSuite, RoomTypeDeluxe}

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeSingle, RoomTypeDouble, RoomTypeSuite, RoomTypeDeluxe:
		return true
	}
	return false
}

// Label is the capitalized display form ("Suite").
func (t RoomType) Label() string { return capitalize(string(t)) }

// RoomStatus 房间状态
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusOccupied    RoomStatus = "occupied"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

var RoomStatuses = []RoomStatus{RoomStatusAvailable, RoomStatusOccupied, RoomStatusMaintenance}

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusAvailable, RoomStatusOccupied, RoomStatusMaintenance:
		return true
	}
	return false
}

func (s RoomStatus) Label() string { return capitalize(string(s)) }

// Room is a snapshot of a room as last returned by the room service.
// ID, CreatedAt and UpdatedAt are assigned server side and only ever read back.
type Room struct {
	ID          string     `json:"_id"`
	RoomNumber  string     `json:"roomNumber"`
	Type        RoomType   `json:"type"`
	Price       float64    `json:"price"`
	Status      RoomStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateRoomData is the writable part of a room.
type CreateRoomData struct {
	RoomNumber  string     `json:"roomNumber"`
	Type        RoomType   `json:"type"`
	Price       float64    `json:"price"`
	Status      RoomStatus `json:"status"`
	Description string     `json:"description,omitempty"`
}

// UpdateRoomData replaces every writable field of the room identified by ID.
type UpdateRoomData struct {
	CreateRoomData
	ID string `json:"_id"`
}

// Validate runs the checks the room form applies before anything is sent:
// a room number, one of the known types and a positive price.
func (d CreateRoomData) Validate() error {
	if d.RoomNumber == "" || !d.Type.Valid() || !(d.Price > 0) {
		return &ValidationError{Message: MsgRequiredFields}
	}
	return nil
}

// Writable returns the fields of r that a client may change.
func (r Room) Writable() CreateRoomData {
	return CreateRoomData{
		RoomNumber:  r.RoomNumber,
		Type:        r.Type,
		Price:       r.Price,
		Status:      r.Status,
		Description: r.Description,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
