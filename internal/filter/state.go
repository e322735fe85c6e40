// Package filter holds the search and type/status filters of the current
// rooms view. Any string is accepted; there is no validation and no debouncing.
package filter

import (
	"net/url"
	"sync"

	"roomdesk/internal/domain"
	"roomdesk/internal/querycache"
)

type State struct {
	mu       sync.RWMutex
	criteria domain.FilterCriteria
	watchers map[int]func(domain.FilterCriteria)
	nextID   int
}

// NewState starts from the unfiltered view.
func NewState() *State {
	return &State{
		criteria: domain.DefaultFilter(),
		watchers: map[int]func(domain.FilterCriteria){},
	}
}

// FromQuery reads criteria from render-surface query params. Missing type
// or status means "all".
func FromQuery(q url.Values) domain.FilterCriteria {
	c := domain.DefaultFilter()
	c.Search = q.Get("search")
	if v := q.Get("type"); v != "" {
		c.Type = v
	}
	if v := q.Get("status"); v != "" {
		c.Status = v
	}
	return c
}

func (s *State) Criteria() domain.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// Key is the cache key of the current criteria.
func (s *State) Key() string {
	return querycache.Key(s.Criteria())
}

func (s *State) SetSearch(v string) domain.FilterCriteria {
	return s.update(func(c *domain.FilterCriteria) { c.Search = v })
}

func (s *State) SetType(v string) domain.FilterCriteria {
	return s.update(func(c *domain.FilterCriteria) { c.Type = v })
}

func (s *State) SetStatus(v string) domain.FilterCriteria {
	return s.update(func(c *domain.FilterCriteria) { c.Status = v })
}

func (s *State) Replace(next domain.FilterCriteria) domain.FilterCriteria {
	return s.update(func(c *domain.FilterCriteria) { *c = next })
}

func (s *State) Reset() domain.FilterCriteria {
	return s.Replace(domain.DefaultFilter())
}

// Watch calls fn with the new criteria after every change that actually
// altered a field.
func (s *State) Watch(fn func(domain.FilterCriteria)) (unwatch func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *State) update(apply func(*domain.FilterCriteria)) domain.FilterCriteria {
	s.mu.Lock()
	prev := s.criteria
	apply(&s.criteria)
	cur := s.criteria
	var notify []func(domain.FilterCriteria)
	if cur != prev {
		for _, fn := range s.watchers {
			notify = append(notify, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(cur)
	}
	return cur
}
