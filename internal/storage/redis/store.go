// Package redis wraps the go-redis client as TierCache's distributed tier.
//
// Connectivity is best-effort: a bounded PING at construction decides whether
// the tier is usable at all. When the probe fails the store reports itself
// unavailable for the rest of the process lifetime and every operation
// returns a typed BACKEND_UNREACHABLE error; there is no automatic re-probe.
package redis

import (
	"context"
	stderr "errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/retry"
)

// defaultProbeTimeout bounds the startup health probe.
const defaultProbeTimeout = time.Second

// Store is the distributed tier client.
type Store struct {
	client    *redis.Client
	available bool
	logger    *slog.Logger
	retryer   *retry.Retryer
}

// New creates a Store and probes the server once. A failed probe downgrades
// the store permanently; the transition is logged here, exactly once.
func New(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultProbeTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		DB:          cfg.DB,
		Password:    cfg.Password,
		DialTimeout: dialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	s := &Store{
		client:  client,
		logger:  logger,
		retryer: retry.New(retry.DefaultConfig()),
	}

	probeCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn("distributed cache tier unreachable, running local-only for process lifetime",
			"addr", cfg.Addr(), "error", err)
		s.available = false
		return s
	}

	s.available = true
	logger.Info("distributed cache tier connected", "addr", cfg.Addr(), "db", cfg.DB)
	return s
}

// Available reports whether the startup probe succeeded.
func (s *Store) Available() bool {
	return s.available
}

// Get returns the value for key, or (nil, nil) on a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.available {
		return nil, s.unavailable("get")
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if stderr.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap(err, "get")
	}
	return data, nil
}

// Set stores value under key. A ttl of zero means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.available {
		return s.unavailable("set")
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return s.wrap(err, "set")
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.available {
		return s.unavailable("delete")
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return s.wrap(err, "delete")
	}
	return nil
}

// Incr atomically increments the counter at key and applies ttl in the same
// pipeline. This is the only true atomic increment in the system; the lockout
// tracker depends on it whenever this tier is reachable.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !s.available {
		return 0, s.unavailable("incr")
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, s.wrap(err, "incr")
	}
	return incr.Val(), nil
}

// TTL returns the remaining lifetime of key. Redis conventions are preserved:
// a negative duration means the key is absent or has no expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if !s.available {
		return -1, s.unavailable("ttl")
	}

	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return -1, s.wrap(err, "ttl")
	}
	return d, nil
}

// Expire resets the expiry of key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if !s.available {
		return s.unavailable("expire")
	}

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return s.wrap(err, "expire")
	}
	return nil
}

// KeysByPattern scans for keys matching a glob pattern. SCAN is used instead
// of KEYS so large keyspaces do not block the server.
func (s *Store) KeysByPattern(ctx context.Context, pattern string) ([]string, error) {
	if !s.available {
		return nil, s.unavailable("keys_by_pattern")
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, s.wrap(err, "keys_by_pattern")
	}
	return keys, nil
}

// DeleteByPattern removes every key matching a glob pattern.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) error {
	keys, err := s.KeysByPattern(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return s.wrap(err, "delete_by_pattern")
	}
	return nil
}

// PipelineSet stores a batch of entries in one round trip, all with the same
// ttl. Transient failures are retried with backoff; the warmup pipeline
// leans on this for its batch writes.
func (s *Store) PipelineSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if !s.available {
		return s.unavailable("pipeline_set")
	}

	return s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		pipe := s.client.Pipeline()
		for key, value := range entries {
			pipe.Set(ctx, key, value, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return s.wrap(err, "pipeline_set")
		}
		return nil
	})
}

// HealthCheck probes the server. Used by the health checker for reporting;
// a recovered server does not flip Available back (no automatic re-probe).
func (s *Store) HealthCheck(ctx context.Context) error {
	if !s.available {
		return s.unavailable("health_check")
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.wrap(err, "health_check")
	}
	return nil
}

// GetComponentName identifies this store to the health checker.
func (s *Store) GetComponentName() string {
	return "redis"
}

// Close releases the client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) unavailable(op string) error {
	return errors.NewError(errors.ErrCodeBackendUnreachable, "distributed tier is unavailable").
		WithComponent("redis").WithOperation(op)
}

func (s *Store) wrap(err error, op string) error {
	code := errors.ErrCodeNetworkError
	if stderr.Is(err, context.DeadlineExceeded) {
		code = errors.ErrCodeOperationTimeout
	}
	return errors.NewError(code, "redis operation failed").
		WithComponent("redis").WithOperation(op).WithCause(err)
}
