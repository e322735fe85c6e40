package roomapi

import (
	"context"
	"encoding/json"
	"net/url"

	"roomdesk/common/config"
	"roomdesk/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID is set on every outgoing request.
const HeaderRequestID = "X-Request-Id"

// envelope 与房间服务的响应格式一致：{success, data, count, message, error}
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the remote room service. It keeps no state between calls
// and never retries.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建房间服务客户端
func NewClient(cfg config.HTTPClientConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if r.Header.Get(HeaderRequestID) == "" {
				r.SetHeader(HeaderRequestID, uuid.NewString())
			}
			return nil
		})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{httpClient: client, logger: logger}
}

// ListQuery builds the list query. Fields at their default ("" or "all") are
// left out so an unfiltered view sends a bare GET /rooms.
func ListQuery(criteria domain.FilterCriteria) url.Values {
	q := url.Values{}
	if criteria.Search != "" {
		q.Set("search", criteria.Search)
	}
	if t := criteria.TypeFilter(); t != "" {
		q.Set("type", t)
	}
	if s := criteria.StatusFilter(); s != "" {
		q.Set("status", s)
	}
	return q
}

// ListRooms GET /rooms
func (c *Client) ListRooms(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Room, error) {
	var result envelope[[]domain.Room]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParamsFromValues(ListQuery(criteria)).
		SetResult(&result).
		Get("/rooms")
	if err != nil {
		c.logger.Warn("List rooms request failed", zap.Error(err))
		return nil, &FetchError{Message: MsgFetchRooms, Err: err}
	}
	if !resp.IsSuccess() {
		c.logger.Warn("List rooms returned error status", zap.Int("status_code", resp.StatusCode()))
		return nil, &FetchError{Message: MsgFetchRooms, StatusCode: resp.StatusCode(), Err: statusErr(resp.StatusCode())}
	}

	rooms := result.Data
	if rooms == nil {
		rooms = []domain.Room{}
	}
	c.logger.Debug("Listed rooms",
		zap.String("search", criteria.Search),
		zap.String("type", criteria.Type),
		zap.String("status", criteria.Status),
		zap.Int("count", len(rooms)),
	)
	return rooms, nil
}

// GetRoom GET /rooms/{id}
func (c *Client) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	var result envelope[domain.Room]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&result).
		Get("/rooms/{id}")
	if err != nil {
		c.logger.Warn("Get room request failed", zap.String("room_id", id), zap.Error(err))
		return domain.Room{}, &FetchError{Message: MsgFetchRoom, Err: err}
	}
	if !resp.IsSuccess() {
		c.logger.Warn("Get room returned error status",
			zap.String("room_id", id),
			zap.Int("status_code", resp.StatusCode()),
		)
		return domain.Room{}, &FetchError{Message: MsgFetchRoom, StatusCode: resp.StatusCode(), Err: statusErr(resp.StatusCode())}
	}
	return result.Data, nil
}

// CreateRoom POST /rooms
func (c *Client) CreateRoom(ctx context.Context, data domain.CreateRoomData) (domain.Room, error) {
	var result envelope[domain.Room]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		SetResult(&result).
		Post("/rooms")
	if err := c.writeError("create", resp, err, MsgCreateRoom); err != nil {
		return domain.Room{}, err
	}
	c.logger.Info("Room created", zap.String("room_id", result.Data.ID), zap.String("room_number", result.Data.RoomNumber))
	return result.Data, nil
}

// UpdateRoom PUT /rooms/{id}; replaces every writable field.
func (c *Client) UpdateRoom(ctx context.Context, data domain.UpdateRoomData) (domain.Room, error) {
	var result envelope[domain.Room]
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", data.ID).
		SetBody(data).
		SetResult(&result).
		Put("/rooms/{id}")
	if err := c.writeError("update", resp, err, MsgUpdateRoom); err != nil {
		return domain.Room{}, err
	}
	c.logger.Info("Room updated", zap.String("room_id", data.ID))
	return result.Data, nil
}

// DeleteRoom DELETE /rooms/{id}
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/rooms/{id}")
	if err := c.writeError("delete", resp, err, MsgDeleteRoom); err != nil {
		return err
	}
	c.logger.Info("Room deleted", zap.String("room_id", id))
	return nil
}

// writeError maps a write response to *APIError, preferring the server's message.
func (c *Client) writeError(op string, resp *resty.Response, err error, fallback string) error {
	if err != nil {
		c.logger.Warn("Room write request failed", zap.String("op", op), zap.Error(err))
		return &APIError{Message: fallback, Err: err}
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := fallback
	var body envelope[json.RawMessage]
	if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr == nil && body.Message != "" {
		msg = body.Message
	}
	c.logger.Warn("Room write rejected",
		zap.String("op", op),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("message", msg),
	)
	return &APIError{Message: msg, StatusCode: resp.StatusCode(), Err: statusErr(resp.StatusCode())}
}
