package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// Strategy names accepted by the service, matching the configuration surface.
const (
	StrategyMemory = "memory"
	StrategyLRU    = "lru"
	StrategyRedis  = "redis"
	StrategyMulti  = "multi"
)

// BatchSetter is an optional capability: backends that can write a batch in
// one shot implement it; the facade falls back to per-key writes otherwise.
type BatchSetter interface {
	SetBatch(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
}

// Service is the caching facade the rest of the application talks to. The
// strategy is fixed at construction: exactly one Backend is selected and all
// public operations delegate to it without branching on its concrete type.
//
// The service owns its backend instance(s) and is explicitly constructed and
// closed; there is no process-global cache. Values must be JSON-serializable:
// Set never panics on a bad value, it logs and reports false, and callers on
// durability-sensitive paths (caching an auth token, recording a login
// failure) are expected to check the result.
type Service struct {
	strategy   string
	backend    Backend
	defaultTTL time.Duration
	prefixTTLs map[string]time.Duration
	logger     *slog.Logger
}

// NewService builds the facade for the configured strategy. The redis and
// multi strategies require a distributed store; the multi strategy degrades
// to local-only when the store probed unavailable, the redis strategy does
// not get that safety net.
func NewService(cfg *config.Configuration, remote Distributed, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var backend Backend
	switch cfg.Cache.Backend {
	case StrategyMemory:
		backend = NewMemoryStore()
	case StrategyLRU:
		backend = NewLRUStore(cfg.Cache.LRUCapacity)
	case StrategyRedis:
		if remote == nil {
			return nil, errors.NewError(errors.ErrCodeInvalidConfig,
				"redis strategy requires a distributed store").WithComponent("cache")
		}
		backend = newRemoteBackend(remote, logger)
	case StrategyMulti:
		backend = NewTieredCache(NewLRUStore(cfg.Cache.LRUCapacity), remote, logger)
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			"unknown cache backend: "+cfg.Cache.Backend).WithComponent("cache")
	}

	return &Service{
		strategy:   cfg.Cache.Backend,
		backend:    backend,
		defaultTTL: cfg.Cache.DefaultTTL,
		prefixTTLs: cfg.Cache.PrefixTTLs,
		logger:     logger,
	}, nil
}

// Strategy returns the strategy fixed at construction.
func (s *Service) Strategy() string {
	return s.strategy
}

// Get fetches and deserializes a cached value into out. A nil out checks
// presence only. Returns false on miss or when the stored bytes cannot be
// decoded into out.
func (s *Service) Get(ctx context.Context, prefix Prefix, key string, out interface{}) bool {
	data, found := s.backend.Get(ctx, BuildKey(prefix, key))
	if !found {
		return false
	}
	if out == nil {
		return true
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("cached value not decodable, treating as miss",
			"prefix", string(prefix), "key", key, "error", err)
		return false
	}
	return true
}

// Set caches value under the prefix's default TTL.
func (s *Service) Set(ctx context.Context, prefix Prefix, key string, value interface{}) bool {
	return s.SetWithTTL(ctx, prefix, key, value, s.ttlFor(prefix))
}

// SetWithTTL caches value with an explicit TTL. Serialization failure and a
// fully unreachable backend both report false; a degraded multi-tier write
// that still landed locally reports true.
func (s *Service) SetWithTTL(ctx context.Context, prefix Prefix, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache set skipped: value not serializable",
			"prefix", string(prefix), "key", key, "error", err)
		return false
	}

	if err := s.backend.Set(ctx, BuildKey(prefix, key), data, ttl); err != nil {
		s.logger.Warn("cache set failed",
			"prefix", string(prefix), "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes a cached value. Failures are logged and swallowed: caching
// is an optimization and deletion of an absent key is a no-op anyway.
func (s *Service) Delete(ctx context.Context, prefix Prefix, key string) {
	if err := s.backend.Delete(ctx, BuildKey(prefix, key)); err != nil {
		s.logger.Warn("cache delete failed",
			"prefix", string(prefix), "key", key, "error", err)
	}
}

// Exists reports whether the key is cached and unexpired.
func (s *Service) Exists(ctx context.Context, prefix Prefix, key string) bool {
	return s.backend.Exists(ctx, BuildKey(prefix, key))
}

// Increment bumps the integer counter for key and applies ttl to the result.
// Counter semantics follow the backend: atomic on the distributed tier,
// mutex-serialized read-modify-write locally.
func (s *Service) Increment(ctx context.Context, prefix Prefix, key string, ttl time.Duration) (int64, error) {
	return s.backend.Increment(ctx, BuildKey(prefix, key), ttl)
}

// TTL returns the remaining lifetime of a key, or NoTTL.
func (s *Service) TTL(ctx context.Context, prefix Prefix, key string) time.Duration {
	return s.backend.TTL(ctx, BuildKey(prefix, key))
}

// Expire resets the expiry of an existing key.
func (s *Service) Expire(ctx context.Context, prefix Prefix, key string, ttl time.Duration) bool {
	return s.backend.Expire(ctx, BuildKey(prefix, key), ttl)
}

// GetMany fetches a set of keys under one prefix, returning raw JSON for the
// keys that were present.
func (s *Service) GetMany(ctx context.Context, prefix Prefix, keys []string) map[string]json.RawMessage {
	results := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if data, found := s.backend.Get(ctx, BuildKey(prefix, key)); found {
			results[key] = json.RawMessage(data)
		}
	}
	return results
}

// SetMany caches a batch of values under one prefix with the prefix TTL.
// Returns how many values were cached; unserializable values are skipped and
// counted against the caller.
func (s *Service) SetMany(ctx context.Context, prefix Prefix, values map[string]interface{}) int {
	ttl := s.ttlFor(prefix)

	entries := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			s.logger.Warn("cache set skipped: value not serializable",
				"prefix", string(prefix), "key", key, "error", err)
			continue
		}
		entries[BuildKey(prefix, key)] = data
	}

	if batcher, ok := s.backend.(BatchSetter); ok {
		if err := batcher.SetBatch(ctx, entries, ttl); err != nil {
			s.logger.Warn("cache batch set failed", "prefix", string(prefix), "error", err)
			return 0
		}
		return len(entries)
	}

	cached := 0
	for key, data := range entries {
		if err := s.backend.Set(ctx, key, data, ttl); err == nil {
			cached++
		}
	}
	return cached
}

// Clear empties the whole cache and resets statistics. Clearing an already
// empty cache is a no-op.
func (s *Service) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

// ClearPrefix removes every key in one namespace, leaving the others intact.
func (s *Service) ClearPrefix(ctx context.Context, prefix Prefix) error {
	return s.backend.ClearPrefix(ctx, string(prefix))
}

// Stats returns the backend's counters annotated with the strategy name.
// It never fails, degraded or not.
func (s *Service) Stats() types.CacheStats {
	stats := s.backend.Stats()
	stats.Strategy = s.strategy
	return stats
}

// Close releases the backend, including the distributed-tier connection.
func (s *Service) Close() error {
	return s.backend.Close()
}

// ttlFor resolves the per-prefix default TTL.
func (s *Service) ttlFor(prefix Prefix) time.Duration {
	if ttl, ok := s.prefixTTLs[string(prefix)]; ok {
		return ttl
	}
	return s.defaultTTL
}
