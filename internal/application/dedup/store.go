// Package dedup records which message bodies have already been forwarded.
package dedup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/chatbridge/internal/domain/shared"
)

const (
	// DefaultMaxProcessedLimit is the per-queue ceiling
	DefaultMaxProcessedLimit = 1000

	queuePrefix = "processed:"
)

// SideAQueue names the processed queue of one Side A session
func SideAQueue(sessionID string) string {
	return "side_a:" + sessionID
}

// SideBQueue is the single processed queue for all Side B replies
const SideBQueue = "side_b"

// Store is a per-queue bounded set of processed bodies ranked by the time
// they were last marked. When a queue grows past the limit, the oldest
// entry is evicted.
//
// IsProcessed followed by MarkProcessed is not atomic. Each queue must be
// owned by a single poller; concurrent pollers on one queue may forward a
// body twice.
type Store struct {
	ranked shared.RankedStore
	limit  int64
	now    func() time.Time
	logger *zap.Logger

	// last score handed out, in microseconds
	last atomic.Int64
}

// Option configures a Store
type Option func(*Store)

// WithMaxProcessedLimit sets the per-queue ceiling
func WithMaxProcessedLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.limit = int64(limit)
		}
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a dedup store over a ranked backing store
func NewStore(ranked shared.RankedStore, opts ...Option) *Store {
	s := &Store{
		ranked: ranked,
		limit:  DefaultMaxProcessedLimit,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("dedup")
	return s
}

// IsProcessed reports whether body has a record in queue.
// Store errors are logged and reported as not processed.
func (s *Store) IsProcessed(ctx context.Context, queue, body string) bool {
	_, ok, err := s.ranked.GetScore(ctx, queuePrefix+queue, body)
	if err != nil {
		s.logger.Warn("dedup lookup failed, treating body as unprocessed",
			zap.String("queue", queue),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// MarkProcessed records body with the current time and evicts the single
// oldest record if the queue is now over the limit. Marking twice only
// refreshes the timestamp.
func (s *Store) MarkProcessed(ctx context.Context, queue, body string) error {
	key := queuePrefix + queue
	score := s.nextScore()

	if err := s.ranked.AddOrUpdateRanked(ctx, key, body, score); err != nil {
		return fmt.Errorf("mark processed in %s: %w", queue, err)
	}

	size, err := s.ranked.RankedCardinality(ctx, key)
	if err != nil {
		return fmt.Errorf("count processed in %s: %w", queue, err)
	}
	if size > s.limit {
		if err := s.ranked.RemoveLowestRanked(ctx, key, 1); err != nil {
			return fmt.Errorf("evict oldest in %s: %w", queue, err)
		}
		s.logger.Debug("evicted oldest processed record",
			zap.String("queue", queue),
			zap.Int64("size", size),
		)
	}
	return nil
}

// nextScore returns the current time in microseconds, bumped past the
// previous score when the clock has not advanced. Insertion order is then
// always score order, whatever the member names.
func (s *Store) nextScore() float64 {
	now := s.now().UnixMicro()
	for {
		last := s.last.Load()
		next := max(now, last+1)
		if s.last.CompareAndSwap(last, next) {
			return float64(next)
		}
	}
}

// Limit returns the configured per-queue ceiling
func (s *Store) Limit() int64 {
	return s.limit
}
