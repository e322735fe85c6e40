package roomapi_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"roomdesk/common/config"
	"roomdesk/internal/domain"
	"roomdesk/internal/roomapi"
	"roomdesk/internal/roomapi/roomapitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) (*roomapi.Client, *roomapitest.Server) {
	t.Helper()
	srv := roomapitest.NewServer()
	t.Cleanup(srv.Close)
	c := roomapi.NewClient(config.HTTPClientConfig{BaseURL: srv.BaseURL()}, zap.NewNop())
	return c, srv
}

func TestListQuery_OmitsDefaults(t *testing.T) {
	assert.Empty(t, roomapi.ListQuery(domain.DefaultFilter()).Encode())
	assert.Empty(t, roomapi.ListQuery(domain.FilterCriteria{}).Encode())

	q := roomapi.ListQuery(domain.FilterCriteria{Search: "sea view", Type: "all", Status: "occupied"})
	assert.Equal(t, "search=sea+view&status=occupied", q.Encode())

	q = roomapi.ListQuery(domain.FilterCriteria{Search: "", Type: "suite", Status: "all"})
	assert.Equal(t, "type=suite", q.Encode())
}

func TestListRooms_SendsOnlyActiveFilters(t *testing.T) {
	c, srv := newClient(t)
	srv.Seed(
		domain.Room{RoomNumber: "101", Type: domain.RoomTypeSuite, Price: 200, Status: domain.RoomStatusAvailable},
		domain.Room{RoomNumber: "102", Type: domain.RoomTypeSingle, Price: 90, Status: domain.RoomStatusOccupied},
	)
	ctx := context.Background()

	rooms, err := c.ListRooms(ctx, domain.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	rooms, err = c.ListRooms(ctx, domain.FilterCriteria{Type: "suite", Status: "all"})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "101", rooms[0].RoomNumber)

	assert.Equal(t, []string{"", "type=suite"}, srv.ListQueries())
}

func TestListRooms_EmptyDataIsEmptySlice(t *testing.T) {
	c, _ := newClient(t)
	rooms, err := c.ListRooms(context.Background(), domain.DefaultFilter())
	require.NoError(t, err)
	require.NotNil(t, rooms)
	require.Empty(t, rooms)
}

func TestListRooms_FailureHidesServerMessage(t *testing.T) {
	c, srv := newClient(t)
	srv.FailNext("GET /rooms", http.StatusInternalServerError, map[string]any{"success": false, "message": "db down"})

	_, err := c.ListRooms(context.Background(), domain.DefaultFilter())
	var fe *roomapi.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Failed to fetch rooms", fe.Error())
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}

func TestGetRoom(t *testing.T) {
	c, srv := newClient(t)
	seeded := srv.Seed(domain.Room{RoomNumber: "7", Type: domain.RoomTypeDouble, Price: 75, Status: domain.RoomStatusMaintenance})

	room, err := c.GetRoom(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, room.ID)
	assert.Equal(t, domain.RoomStatusMaintenance, room.Status)

	_, err = c.GetRoom(context.Background(), "missing")
	var fe *roomapi.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Failed to fetch room", fe.Message)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestCreateThenGet_RoundTrip(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	in := domain.CreateRoomData{RoomNumber: "101", Type: domain.RoomTypeSuite, Price: 199.99, Status: domain.RoomStatusAvailable}

	created, err := c.CreateRoom(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := c.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in, got.Writable())
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCreateRoom_SurfacesServerMessage(t *testing.T) {
	c, srv := newClient(t)
	srv.Seed(domain.Room{RoomNumber: "101", Type: domain.RoomTypeSingle, Price: 50, Status: domain.RoomStatusAvailable})

	_, err := c.CreateRoom(context.Background(), domain.CreateRoomData{RoomNumber: "101", Type: domain.RoomTypeSingle, Price: 60, Status: domain.RoomStatusAvailable})
	var ae *roomapi.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Room number already exists", ae.Message)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
}

func TestWrites_FallBackToDefaultMessage(t *testing.T) {
	c, srv := newClient(t)
	ctx := context.Background()
	srv.FailNext("POST /rooms", http.StatusInternalServerError, map[string]any{"success": false, "error": "boom"})
	srv.FailNext("PUT /rooms/{id}", http.StatusBadGateway, nil)
	srv.FailNext("DELETE /rooms/{id}", http.StatusInternalServerError, map[string]any{"success": false})

	_, err := c.CreateRoom(ctx, domain.CreateRoomData{RoomNumber: "1", Type: domain.RoomTypeSingle, Price: 1})
	assert.EqualError(t, err, "Failed to create room")

	_, err = c.UpdateRoom(ctx, domain.UpdateRoomData{ID: "x", CreateRoomData: domain.CreateRoomData{RoomNumber: "1"}})
	assert.EqualError(t, err, "Failed to update room")

	err = c.DeleteRoom(ctx, "x")
	assert.EqualError(t, err, "Failed to delete room")
}

func TestUpdateRoom_ReplacesFields(t *testing.T) {
	c, srv := newClient(t)
	seeded := srv.Seed(domain.Room{RoomNumber: "201", Type: domain.RoomTypeDouble, Price: 120, Status: domain.RoomStatusAvailable, Description: "old"})
	id := seeded[0].ID

	updated, err := c.UpdateRoom(context.Background(), domain.UpdateRoomData{
		ID:             id,
		CreateRoomData: domain.CreateRoomData{RoomNumber: "201", Type: domain.RoomTypeDeluxe, Price: 300, Status: domain.RoomStatusOccupied},
	})
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, domain.RoomTypeDeluxe, updated.Type)
	assert.Empty(t, updated.Description)
	assert.True(t, seeded[0].CreatedAt.Equal(updated.CreatedAt))
}

func TestDeleteRoom_RemovesFromList(t *testing.T) {
	c, srv := newClient(t)
	seeded := srv.Seed(
		domain.Room{ID: "r1", RoomNumber: "1", Type: domain.RoomTypeSingle, Price: 10, Status: domain.RoomStatusAvailable},
		domain.Room{ID: "r2", RoomNumber: "2", Type: domain.RoomTypeSingle, Price: 10, Status: domain.RoomStatusAvailable},
	)
	ctx := context.Background()

	require.NoError(t, c.DeleteRoom(ctx, seeded[0].ID))
	rooms, err := c.ListRooms(ctx, domain.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r2", rooms[0].ID)

	err = c.DeleteRoom(ctx, "r1")
	assert.EqualError(t, err, "Room not found")
}

func TestTransportFailure(t *testing.T) {
	srv := roomapitest.NewServer()
	base := srv.BaseURL()
	srv.Close()
	c := roomapi.NewClient(config.HTTPClientConfig{BaseURL: base}, zap.NewNop())

	_, err := c.ListRooms(context.Background(), domain.DefaultFilter())
	var fe *roomapi.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.NotNil(t, errors.Unwrap(fe))

	_, err = c.CreateRoom(context.Background(), domain.CreateRoomData{RoomNumber: "1"})
	var ae *roomapi.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Failed to create room", ae.Message)
}
