package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"roomdesk/internal/domain"
	"roomdesk/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads a room list from the source of truth.
type Fetcher interface {
	ListRooms(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Room, error)
}

// Config 二级快照（Redis）配置；KV 为空时只使用进程内缓存
type Config struct {
	KeyPrefix   string
	SnapshotTTL time.Duration
}

// Invalidation is delivered to subscribers once per Invalidate call.
type Invalidation struct {
	Tag        string `json:"tag"`
	Generation uint64 `json:"generation"`
	Entries    int    `json:"entries"`
}

// Stats 缓存计数
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Fetches       int64 `json:"fetches"`
	Invalidations int64 `json:"invalidations"`
	Entries       int   `json:"entries"`
}

type entry struct {
	tag   string
	gen   uint64
	rooms []domain.Room
}

// Cache memoizes room lists per filter key.
//
// Every tag carries a generation. An entry is fresh only while its generation
// matches the tag's; Invalidate bumps the generation, so a fetch that started
// before an invalidation can still answer its own callers but is never served
// to later ones. Concurrent Gets for the same key and generation share one
// fetch.
type Cache struct {
	fetcher Fetcher
	kv      store.KV
	cfg     Config
	logger  *zap.Logger
	flights singleflight.Group

	mu      sync.Mutex
	gens    map[string]uint64
	entries map[string]entry
	subs    map[int]func(Invalidation)
	nextSub int

	hits          atomic.Int64
	misses        atomic.Int64
	fetches       atomic.Int64
	invalidations atomic.Int64
}

// New 创建查询缓存；kv 可以为 nil
func New(fetcher Fetcher, kv store.KV, cfg Config, logger *zap.Logger) *Cache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "roomdesk:cache"
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 30 * time.Second
	}
	return &Cache{
		fetcher: fetcher,
		kv:      kv,
		cfg:     cfg,
		logger:  logger,
		gens:    map[string]uint64{},
		entries: map[string]entry{},
		subs:    map[int]func(Invalidation){},
	}
}

// Get returns the fresh snapshot for criteria, fetching it when there is none.
// The returned slice is a copy.
func (c *Cache) Get(ctx context.Context, criteria domain.FilterCriteria) ([]domain.Room, error) {
	key := Key(criteria)
	tag := tagOf(key)

	c.mu.Lock()
	gen := c.gens[tag]
	if e, ok := c.entries[key]; ok && e.gen == gen {
		c.mu.Unlock()
		c.hits.Add(1)
		return cloneRooms(e.rooms), nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	v, err, shared := c.flights.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		if rooms, ok := c.loadSnapshot(ctx, key); ok {
			c.put(key, tag, gen, rooms)
			return rooms, nil
		}

		c.fetches.Add(1)
		rooms, err := c.fetcher.ListRooms(ctx, criteria)
		if err != nil {
			return nil, err
		}
		if c.put(key, tag, gen, rooms) {
			c.saveSnapshot(ctx, key, tag, gen, rooms)
		}
		return rooms, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Shared in-flight room list fetch", zap.String("key", key))
	}
	return cloneRooms(v.([]domain.Room)), nil
}

// put stores rooms unless the tag moved on while they were being fetched.
func (c *Cache) put(key, tag string, gen uint64, rooms []domain.Room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[tag] != gen {
		c.logger.Debug("Dropping room list fetched before invalidation", zap.String("key", key))
		return false
	}
	c.entries[key] = entry{tag: tag, gen: gen, rooms: rooms}
	return true
}

// Invalidate marks every entry under tag stale, removes the shared snapshots
// and notifies subscribers. It returns how many local entries went stale.
func (c *Cache) Invalidate(ctx context.Context, tag string) (int, error) {
	c.mu.Lock()
	c.gens[tag]++
	gen := c.gens[tag]
	n := 0
	for k, e := range c.entries {
		if e.tag == tag {
			delete(c.entries, k)
			n++
		}
	}
	subs := make([]func(Invalidation), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	c.invalidations.Add(1)

	var kvErr error
	if c.kv != nil {
		kvErr = c.dropSnapshots(ctx, tag)
	}

	c.logger.Debug("Invalidated cache tag",
		zap.String("tag", tag),
		zap.Uint64("generation", gen),
		zap.Int("entries", n),
	)

	ev := Invalidation{Tag: tag, Generation: gen, Entries: n}
	for _, fn := range subs {
		fn(ev)
	}
	return n, kvErr
}

// Subscribe registers fn for invalidation notices; call the returned func to stop.
func (c *Cache) Subscribe(fn func(Invalidation)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Fetches:       c.fetches.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       n,
	}
}

func (c *Cache) snapshotKey(key string) string {
	return c.cfg.KeyPrefix + ":" + key
}

func (c *Cache) loadSnapshot(ctx context.Context, key string) ([]domain.Room, bool) {
	if c.kv == nil {
		return nil, false
	}
	raw, err := c.kv.Get(ctx, c.snapshotKey(key))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			c.logger.Warn("Failed to read room list snapshot", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var rooms []domain.Room
	if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
		c.logger.Warn("Discarding corrupt room list snapshot", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return rooms, true
}

// saveSnapshot writes rooms fetched at gen. An Invalidate that lands between
// put and Set has already dropped the shared keys, so the write is undone
// when the generation moved meanwhile.
func (c *Cache) saveSnapshot(ctx context.Context, key, tag string, gen uint64, rooms []domain.Room) {
	if c.kv == nil {
		return
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		c.logger.Warn("Failed to marshal room list snapshot", zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, c.snapshotKey(key), string(data), c.cfg.SnapshotTTL); err != nil {
		c.logger.Warn("Failed to write room list snapshot", zap.String("key", key), zap.Error(err))
		return
	}

	c.mu.Lock()
	moved := c.gens[tag] != gen
	c.mu.Unlock()
	if !moved {
		return
	}
	if err := c.kv.Del(context.WithoutCancel(ctx), c.snapshotKey(key)); err != nil {
		c.logger.Warn("Failed to drop stale room list snapshot", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("Dropped room list snapshot written after invalidation", zap.String("key", key))
}

func (c *Cache) dropSnapshots(ctx context.Context, tag string) error {
	keys, err := c.kv.ScanKeys(ctx, c.cfg.KeyPrefix+":"+tag+"|*")
	if err != nil {
		return fmt.Errorf("failed to scan snapshots: %w", err)
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

func cloneRooms(in []domain.Room) []domain.Room {
	out := make([]domain.Room, len(in))
	copy(out, in)
	return out
}
