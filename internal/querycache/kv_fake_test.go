package querycache_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"roomdesk/internal/store"
)

// fakeKVStore 仅用于单元测试（内存 KV，忽略 TTL）
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]string)}
}

func (f *fakeKVStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKVStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

// ScanKeys only understands trailing-star patterns.
func (f *fakeKVStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeKVStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// hookKV 在第一次 Set 之前执行 beforeSet
type hookKV struct {
	*fakeKVStore
	once      sync.Once
	beforeSet func()
}

func (h *hookKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	h.once.Do(func() {
		if h.beforeSet != nil {
			h.beforeSet()
		}
	})
	return h.fakeKVStore.Set(ctx, key, value, ttl)
}
