package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/chatbridge/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key the bridge writes
const DefaultKeyPrefix = "chatbridge:"

// RedisStore implements shared.Store on top of Redis.
// Ranked queues are sorted sets; the order map is plain strings and the
// per-session order index is a set. Every method is a single round-trip.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient creates a store with an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

// AddOrUpdateRanked inserts member or refreshes its score (ZADD)
func (s *RedisStore) AddOrUpdateRanked(ctx context.Context, queue, member string, score float64) error {
	err := s.client.ZAdd(ctx, s.key(queue), redis.Z{Score: score, Member: member}).Err()
	if err != nil {
		return shared.StoreFailure(fmt.Errorf("add ranked member: %w", err))
	}
	return nil
}

// RankedCardinality returns the queue size (ZCARD)
func (s *RedisStore) RankedCardinality(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key(queue)).Result()
	if err != nil {
		return 0, shared.StoreFailure(fmt.Errorf("count ranked members: %w", err))
	}
	return n, nil
}

// RemoveLowestRanked pops the count lowest-scored members (ZPOPMIN)
func (s *RedisStore) RemoveLowestRanked(ctx context.Context, queue string, count int64) error {
	if count <= 0 {
		return nil
	}
	if err := s.client.ZPopMin(ctx, s.key(queue), count).Err(); err != nil {
		return shared.StoreFailure(fmt.Errorf("remove lowest ranked members: %w", err))
	}
	return nil
}

// GetScore returns the member's score (ZSCORE); ok is false when absent
func (s *RedisStore) GetScore(ctx context.Context, queue, member string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, s.key(queue), member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, shared.StoreFailure(fmt.Errorf("read ranked score: %w", err))
	}
	return score, true, nil
}

// Get reads a string value; ok is false when the key does not exist
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, shared.StoreFailure(fmt.Errorf("get key: %w", err))
	}
	return val, true, nil
}

// Set writes a string value without expiry
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return shared.StoreFailure(fmt.Errorf("set key: %w", err))
	}
	return nil
}

// AddMember adds member to the set at key (SADD)
func (s *RedisStore) AddMember(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, s.key(key), member).Err(); err != nil {
		return shared.StoreFailure(fmt.Errorf("add set member: %w", err))
	}
	return nil
}

// Members lists the set at key (SMEMBERS)
func (s *RedisStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return nil, shared.StoreFailure(fmt.Errorf("list set members: %w", err))
	}
	return members, nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return shared.StoreFailure(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

var _ shared.Store = (*RedisStore)(nil)
