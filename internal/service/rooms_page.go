package service

import (
	"context"

	"roomdesk/internal/domain"
	"roomdesk/internal/filter"
	"roomdesk/internal/mutation"
	"roomdesk/internal/querycache"

	"go.uber.org/zap"
)

// RoomAPI is everything the rooms page needs from the room service client.
type RoomAPI interface {
	querycache.Fetcher
	mutation.RoomWriter
	GetRoom(ctx context.Context, id string) (domain.Room, error)
}

// PageView 房间列表页渲染数据
type PageView struct {
	Criteria domain.FilterCriteria `json:"criteria"`
	Key      string                `json:"key"`
	Rooms    []domain.Room         `json:"rooms"`
	Stats    domain.Stats          `json:"stats"`
}

// RoomsPage is one application session: the filter, the list cache and one
// controller per write kind. The render surface talks only to it.
type RoomsPage struct {
	Filter *filter.State
	Cache  *querycache.Cache
	Create *mutation.Controller[domain.CreateRoomData]
	Update *mutation.Controller[domain.UpdateRoomData]
	Delete *mutation.Controller[string]

	api    RoomAPI
	logger *zap.Logger
}

// NewRoomsPage 组装房间页；listeners 会收到三个控制器的全部事件
func NewRoomsPage(api RoomAPI, cache *querycache.Cache, logger *zap.Logger, listeners ...mutation.Listener) *RoomsPage {
	return &RoomsPage{
		Filter: filter.NewState(),
		Cache:  cache,
		Create: mutation.NewCreate(api, cache, logger, listeners...),
		Update: mutation.NewUpdate(api, cache, logger, listeners...),
		Delete: mutation.NewDelete(api, cache, logger, listeners...),
		api:    api,
		logger: logger,
	}
}

// AddListener registers l on every controller.
func (p *RoomsPage) AddListener(l mutation.Listener) {
	p.Create.AddListener(l)
	p.Update.AddListener(l)
	p.Delete.AddListener(l)
}

// View renders the list for the current filter.
func (p *RoomsPage) View(ctx context.Context) (PageView, error) {
	return p.render(ctx, p.Filter.Criteria())
}

// Apply replaces the filter and renders the list for it.
func (p *RoomsPage) Apply(ctx context.Context, criteria domain.FilterCriteria) (PageView, error) {
	return p.render(ctx, p.Filter.Replace(criteria))
}

func (p *RoomsPage) render(ctx context.Context, criteria domain.FilterCriteria) (PageView, error) {
	rooms, err := p.Cache.Get(ctx, criteria)
	if err != nil {
		p.logger.Warn("Failed to load rooms", zap.String("key", querycache.Key(criteria)), zap.Error(err))
		return PageView{Criteria: criteria, Key: querycache.Key(criteria)}, err
	}
	return PageView{
		Criteria: criteria,
		Key:      querycache.Key(criteria),
		Rooms:    rooms,
		Stats:    domain.ComputeStats(rooms),
	}, nil
}

// Room loads one room directly from the service; single rooms are not cached.
func (p *RoomsPage) Room(ctx context.Context, id string) (domain.Room, error) {
	return p.api.GetRoom(ctx, id)
}
