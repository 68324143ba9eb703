package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxRecent caps the recency index so the ledger does not grow
// without bound on long-lived watchers.
const maxRecent = 512

// RedisConfig configures the Redis ledger backend.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to all ledger keys (e.g., "salesflow:runs:")
	Prefix string

	// TTL is the time-to-live for ledger entries (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration

	// PoolSize is the maximum number of connections
	PoolSize int
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address:  address,
		Prefix:   "salesflow:runs:",
		TTL:      7 * 24 * time.Hour,
		Timeout:  5 * time.Second,
		PoolSize: 10,
	}
}

// RedisStore keeps the ledger in Redis so watch sessions and the
// history command share it across processes.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "salesflow:runs:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis ledger: %w", err)
	}

	return &RedisStore{cfg: cfg, client: client}, nil
}

// key returns the Redis key for a file fingerprint.
func (s *RedisStore) key(signature string) string {
	return s.cfg.Prefix + signature
}

// recentKey returns the key of the recency index, a sorted set
// scored by processing time.
func (s *RedisStore) recentKey() string {
	return s.cfg.Prefix + "index:recent"
}

// MarkProcessed persists an entry and updates the recency index in
// one pipeline.
func (s *RedisStore) MarkProcessed(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling ledger entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(e.Signature), data, s.cfg.TTL)
	pipe.ZAdd(ctx, s.recentKey(), redis.Z{
		Score:  float64(e.ProcessedAt.UnixNano()),
		Member: e.Signature,
	})
	// Trim the index to the newest maxRecent members.
	pipe.ZRemRangeByRank(ctx, s.recentKey(), 0, int64(-(maxRecent + 1)))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// Lookup retrieves the entry for a fingerprint, os.ErrNotExist when
// the fingerprint was never processed.
func (s *RedisStore) Lookup(ctx context.Context, signature string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(signature)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("loading ledger entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshaling ledger entry: %w", err)
	}
	return &e, nil
}

// Recent returns up to limit entries, most recent first. Entries
// whose value expired but still sit in the index are dropped from
// the index as they are encountered.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	signatures, err := s.client.ZRevRange(ctx, s.recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recency index: %w", err)
	}

	entries := make([]Entry, 0, len(signatures))
	for _, sig := range signatures {
		e, err := s.Lookup(ctx, sig)
		if os.IsNotExist(err) {
			s.client.ZRem(ctx, s.recentKey(), sig)
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
