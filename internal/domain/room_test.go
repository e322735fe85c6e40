package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomData_Validate(t *testing.T) {
	valid := CreateRoomData{RoomNumber: "101", Type: RoomTypeSuite, Price: 199.99, Status: RoomStatusAvailable}
	require.NoError(t, valid.Validate())

	// any non-empty number passes, the room service decides what it accepts
	blank := CreateRoomData{RoomNumber: "  ", Type: RoomTypeSingle, Price: 10}
	require.NoError(t, blank.Validate())

	cases := map[string]CreateRoomData{
		"empty number": {RoomNumber: "", Type: RoomTypeSingle, Price: 10},
		"unknown type": {RoomNumber: "101", Type: "penthouse", Price: 10},
		"zero price":   {RoomNumber: "101", Type: RoomTypeSingle, Price: 0},
		"negative":     {RoomNumber: "101", Type: RoomTypeSingle, Price: -5},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			err := d.Validate()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "Please fill in all required fields", ve.Message)
		})
	}
}

func TestUpdateRoomData_JSONCarriesID(t *testing.T) {
	d := UpdateRoomData{
		CreateRoomData: CreateRoomData{RoomNumber: "7", Type: RoomTypeDouble, Price: 80, Status: RoomStatusOccupied},
		ID:             "r7",
	}
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "r7", m["_id"])
	assert.Equal(t, "7", m["roomNumber"])
	assert.Equal(t, "double", m["type"])
	assert.NotContains(t, m, "description")
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Deluxe", RoomTypeDeluxe.Label())
	assert.Equal(t, "Maintenance", RoomStatusMaintenance.Label())
	assert.False(t, RoomStatus("closed").Valid())
}

func TestFilterCriteria_Defaults(t *testing.T) {
	f := DefaultFilter()
	assert.True(t, f.IsDefault())
	assert.Empty(t, f.TypeFilter())

	f.Status = "occupied"
	assert.False(t, f.IsDefault())
	assert.Equal(t, "occupied", f.StatusFilter())

	// zero value behaves like the default
	assert.True(t, FilterCriteria{}.IsDefault())
}

func TestComputeStats(t *testing.T) {
	rooms := []Room{
		{Status: RoomStatusAvailable, Price: 100},
		{Status: RoomStatusOccupied, Price: 150.5},
		{Status: RoomStatusMaintenance, Price: 80},
		{Status: RoomStatusAvailable, Price: 20},
	}
	s := ComputeStats(rooms)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Available)
	assert.Equal(t, 1, s.Occupied)
	assert.InDelta(t, 350.5, s.Revenue, 1e-9)

	assert.Equal(t, Stats{}, ComputeStats(nil))
}
