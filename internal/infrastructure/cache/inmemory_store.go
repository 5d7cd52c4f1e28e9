package cache

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/erp/chatbridge/internal/domain/shared"
)

// InMemoryStore implements shared.Store using process-local maps.
// It mirrors Redis semantics closely enough for tests and single-instance
// runs: ties on score are broken by member, like ZPOPMIN.
// State is lost on restart.
type InMemoryStore struct {
	mu     sync.RWMutex
	ranked map[string]map[string]float64
	values map[string]string
	sets   map[string]map[string]struct{}
	closed bool
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		ranked: make(map[string]map[string]float64),
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryStore) AddOrUpdateRanked(_ context.Context, queue, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.ranked[queue]
	if !ok {
		q = make(map[string]float64)
		s.ranked[queue] = q
	}
	q[member] = score
	return nil
}

func (s *InMemoryStore) RankedCardinality(_ context.Context, queue string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.ranked[queue])), nil
}

func (s *InMemoryStore) RemoveLowestRanked(_ context.Context, queue string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.ranked[queue]
	if len(q) == 0 || count <= 0 {
		return nil
	}

	type scored struct {
		member string
		score  float64
	}
	all := make([]scored, 0, len(q))
	for m, sc := range q {
		all = append(all, scored{member: m, score: sc})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		return strings.Compare(all[i].member, all[j].member) < 0
	})

	for i := int64(0); i < count && i < int64(len(all)); i++ {
		delete(q, all[i].member)
	}
	return nil
}

func (s *InMemoryStore) GetScore(_ context.Context, queue, member string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.ranked[queue][member]
	return score, ok, nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *InMemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *InMemoryStore) AddMember(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// Members returns the set sorted, which Redis does not guarantee
func (s *InMemoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return shared.StoreFailure(errors.New("store is closed"))
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ shared.Store = (*InMemoryStore)(nil)
