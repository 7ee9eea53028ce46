package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

// Distributed is the external key-value collaborator behind the local tier.
// internal/storage/redis provides the production implementation; tests
// substitute fakes.
type Distributed interface {
	Available() bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	KeysByPattern(ctx context.Context, pattern string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) error
	PipelineSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	Close() error
}

// TieredCache composes a fast local tier with the distributed tier as a
// read-through/write-through fallback chain. The local tier is authoritative
// under degradation: local writes always succeed, distributed writes are
// best-effort. The first runtime failure of the distributed tier downgrades
// it for the rest of the process lifetime, logged exactly once.
//
// Counters (Increment) and TTL reads are NOT tiered: the distributed tier is
// the single source of truth for them while it is reachable, so that near
// boundary expiry the two tiers cannot disagree about a lockout.
type TieredCache struct {
	local  Backend
	remote Distributed
	logger *slog.Logger

	degraded    atomic.Bool
	degradeOnce sync.Once

	statsMu sync.Mutex
	hits    uint64
	misses  uint64
}

// NewTieredCache creates a tiered cache over a local backend and a
// distributed store. remote may be unavailable; the tier then runs
// local-only from the start.
func NewTieredCache(local Backend, remote Distributed, logger *slog.Logger) *TieredCache {
	if logger == nil {
		logger = slog.Default()
	}
	t := &TieredCache{
		local:  local,
		remote: remote,
		logger: logger,
	}
	if remote == nil || !remote.Available() {
		t.degraded.Store(true)
	}
	return t
}

// Get checks the local tier first; on a local miss it falls through to the
// distributed tier and backfills the local tier preserving the remaining TTL.
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := t.local.Get(ctx, key); ok {
		t.recordHit()
		return value, true
	}

	if t.remoteUsable() {
		value, err := t.remote.Get(ctx, key)
		switch {
		case err != nil:
			t.degrade("get", err)
		case value != nil:
			// Backfill only with a known remaining TTL. Storing without one
			// would make the local copy immortal when the remote entry is
			// about to expire.
			if remaining, ttlErr := t.remote.TTL(ctx, key); ttlErr == nil && remaining > 0 {
				_ = t.local.Set(ctx, key, value, remaining)
			}
			t.recordHit()
			return value, true
		}
	}

	t.recordMiss()
	return nil, false
}

// Set writes to the local tier unconditionally and to the distributed tier
// best-effort. A distributed failure never fails the overall Set.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = t.local.Set(ctx, key, value, ttl)

	if t.remoteUsable() {
		if err := t.remote.Set(ctx, key, value, ttl); err != nil {
			t.degrade("set", err)
		}
	}
	return nil
}

// Delete removes key from both tiers.
func (t *TieredCache) Delete(ctx context.Context, key string) error {
	_ = t.local.Delete(ctx, key)

	if t.remoteUsable() {
		if err := t.remote.Delete(ctx, key); err != nil {
			t.degrade("delete", err)
		}
	}
	return nil
}

// Exists reports presence in either tier without backfilling.
func (t *TieredCache) Exists(ctx context.Context, key string) bool {
	if t.local.Exists(ctx, key) {
		return true
	}
	if t.remoteUsable() {
		value, err := t.remote.Get(ctx, key)
		if err != nil {
			t.degrade("exists", err)
			return false
		}
		return value != nil
	}
	return false
}

// Increment delegates to the distributed tier's atomic increment while it is
// reachable; only under degradation does the racy local counter take over.
// The authoritative count is written through to the local tier so that reads
// going through Get never see a stale counter, even one backfilled earlier.
func (t *TieredCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if t.remoteUsable() {
		value, err := t.remote.Incr(ctx, key, ttl)
		if err == nil {
			_ = t.local.Set(ctx, key, []byte(strconv.FormatInt(value, 10)), ttl)
			return value, nil
		}
		t.degrade("increment", err)
	}
	return t.local.Increment(ctx, key, ttl)
}

// TTL prefers the distributed tier, which holds the authoritative expiry for
// counters. Negative redis replies (absent key, no expiry) map to NoTTL.
func (t *TieredCache) TTL(ctx context.Context, key string) time.Duration {
	if t.remoteUsable() {
		remaining, err := t.remote.TTL(ctx, key)
		if err == nil {
			if remaining < 0 {
				return NoTTL
			}
			return remaining
		}
		t.degrade("ttl", err)
	}
	return t.local.TTL(ctx, key)
}

// Expire resets the expiry on both tiers.
func (t *TieredCache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok := t.local.Expire(ctx, key, ttl)

	if t.remoteUsable() {
		if err := t.remote.Expire(ctx, key, ttl); err != nil {
			t.degrade("expire", err)
		} else {
			ok = true
		}
	}
	return ok
}

// Clear empties both tiers and resets statistics.
func (t *TieredCache) Clear(ctx context.Context) error {
	_ = t.local.Clear(ctx)

	if t.remoteUsable() {
		if err := t.remote.DeleteByPattern(ctx, "*"); err != nil {
			t.degrade("clear", err)
		}
	}

	t.statsMu.Lock()
	t.hits, t.misses = 0, 0
	t.statsMu.Unlock()
	return nil
}

// ClearPrefix removes the "{prefix}:" namespace from both tiers: pattern
// scan plus bulk delete on the distributed tier, iterate-and-filter locally.
func (t *TieredCache) ClearPrefix(ctx context.Context, prefix string) error {
	_ = t.local.ClearPrefix(ctx, prefix)

	if t.remoteUsable() {
		if err := t.remote.DeleteByPattern(ctx, prefix+":*"); err != nil {
			t.degrade("clear_prefix", err)
		}
	}
	return nil
}

// Stats aggregates across both tiers. Hits and misses are counted once per
// logical lookup at this level; entry, eviction and prefix counts come from
// the local tier.
func (t *TieredCache) Stats() types.CacheStats {
	t.statsMu.Lock()
	stats := types.CacheStats{
		Hits:   t.hits,
		Misses: t.misses,
	}
	t.statsMu.Unlock()

	local := t.local.Stats()
	stats.Evictions = local.Evictions
	stats.Entries = local.Entries
	stats.Expired = local.Expired
	stats.PrefixEntries = local.PrefixEntries
	stats.Degraded = t.degraded.Load()

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close releases both tiers.
func (t *TieredCache) Close() error {
	_ = t.local.Close()
	if t.remote != nil {
		return t.remote.Close()
	}
	return nil
}

// SetBatch fans a batch out to the local tier and pipelines it to the
// distributed tier in one round trip.
func (t *TieredCache) SetBatch(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	for key, value := range entries {
		_ = t.local.Set(ctx, key, value, ttl)
	}

	if t.remoteUsable() {
		if err := t.remote.PipelineSet(ctx, entries, ttl); err != nil {
			t.degrade("set_batch", err)
		}
	}
	return nil
}

func (t *TieredCache) remoteUsable() bool {
	return t.remote != nil && t.remote.Available() && !t.degraded.Load()
}

// degrade downgrades the distributed tier for the rest of the process
// lifetime and logs the transition once.
func (t *TieredCache) degrade(op string, err error) {
	t.degraded.Store(true)
	t.degradeOnce.Do(func() {
		t.logger.Warn("distributed tier failed, downgrading to local-only",
			"operation", op, "error", err)
	})
}

func (t *TieredCache) recordHit() {
	t.statsMu.Lock()
	t.hits++
	t.statsMu.Unlock()
}

func (t *TieredCache) recordMiss() {
	t.statsMu.Lock()
	t.misses++
	t.statsMu.Unlock()
}
