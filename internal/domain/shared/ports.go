package shared

import (
	"context"

	"github.com/erp/chatbridge/internal/domain/message"
)

// SessionAdapter reads and writes the Side A group chat.
// Errors should wrap ErrTransientAdapter or ErrFatalAdapter.
type SessionAdapter interface {
	// ListSessionsWithUnread returns the handles currently showing an unread indicator
	ListSessionsWithUnread(ctx context.Context) ([]message.SessionHandle, error)
	// FetchRecentMessages returns the last window messages of a session, oldest first
	FetchRecentMessages(ctx context.Context, handle message.SessionHandle, window int) ([]message.RawMessage, error)
	// ResolveSessionID maps a native handle to a configured stable session id
	ResolveSessionID(ctx context.Context, handle message.SessionHandle) (string, bool)
	// SendMessage posts body into the session identified by sessionID
	SendMessage(ctx context.Context, sessionID, body string) error
}

// FeedAdapter reads and writes the Side B vendor chat, which has no session concept.
type FeedAdapter interface {
	FetchRecentMessages(ctx context.Context, window int) ([]message.RawMessage, error)
	SendMessage(ctx context.Context, body string) error
}

// RankedStore is a per-queue sorted set. Every method must be a single
// atomic round-trip against the backing store.
type RankedStore interface {
	AddOrUpdateRanked(ctx context.Context, queue, member string, score float64) error
	RankedCardinality(ctx context.Context, queue string) (int64, error)
	RemoveLowestRanked(ctx context.Context, queue string, count int64) error
	GetScore(ctx context.Context, queue, member string) (float64, bool, error)
}

// KeyValueStore holds string values and string sets
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	AddMember(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)
}

// Store is the full persistent store used by the bridge
type Store interface {
	RankedStore
	KeyValueStore
	Ping(ctx context.Context) error
	Close() error
}
