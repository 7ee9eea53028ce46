package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

// remoteBackend adapts a Distributed store to the Backend interface for the
// redis-only strategy. Unlike the tiered backend there is no local tier to
// fall back to, so Set surfaces the unreachable error and the facade reports
// the write as not cached.
type remoteBackend struct {
	remote Distributed
	logger *slog.Logger

	failOnce sync.Once

	statsMu sync.Mutex
	stats   types.CacheStats
}

func newRemoteBackend(remote Distributed, logger *slog.Logger) *remoteBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &remoteBackend{
		remote: remote,
		logger: logger,
	}
}

func (b *remoteBackend) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := b.remote.Get(ctx, key)
	if err != nil {
		b.noteFailure("get", err)
	}
	if err != nil || value == nil {
		b.statsMu.Lock()
		b.stats.Misses++
		b.statsMu.Unlock()
		return nil, false
	}

	b.statsMu.Lock()
	b.stats.Hits++
	b.statsMu.Unlock()
	return value, true
}

func (b *remoteBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.remote.Set(ctx, key, value, ttl); err != nil {
		b.noteFailure("set", err)
		return err
	}
	return nil
}

func (b *remoteBackend) Delete(ctx context.Context, key string) error {
	if err := b.remote.Delete(ctx, key); err != nil {
		b.noteFailure("delete", err)
		return err
	}
	return nil
}

func (b *remoteBackend) Exists(ctx context.Context, key string) bool {
	value, err := b.remote.Get(ctx, key)
	if err != nil {
		b.noteFailure("exists", err)
		return false
	}
	return value != nil
}

func (b *remoteBackend) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	value, err := b.remote.Incr(ctx, key, ttl)
	if err != nil {
		b.noteFailure("increment", err)
	}
	return value, err
}

func (b *remoteBackend) TTL(ctx context.Context, key string) time.Duration {
	remaining, err := b.remote.TTL(ctx, key)
	if err != nil || remaining < 0 {
		return NoTTL
	}
	return remaining
}

func (b *remoteBackend) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if err := b.remote.Expire(ctx, key, ttl); err != nil {
		b.noteFailure("expire", err)
		return false
	}
	return true
}

func (b *remoteBackend) Clear(ctx context.Context) error {
	if err := b.remote.DeleteByPattern(ctx, "*"); err != nil {
		b.noteFailure("clear", err)
		return err
	}

	b.statsMu.Lock()
	b.stats = types.CacheStats{}
	b.statsMu.Unlock()
	return nil
}

func (b *remoteBackend) ClearPrefix(ctx context.Context, prefix string) error {
	if err := b.remote.DeleteByPattern(ctx, prefix+":*"); err != nil {
		b.noteFailure("clear_prefix", err)
		return err
	}
	return nil
}

func (b *remoteBackend) Stats() types.CacheStats {
	b.statsMu.Lock()
	stats := b.stats
	b.statsMu.Unlock()

	stats.Degraded = !b.remote.Available()
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (b *remoteBackend) Close() error {
	return b.remote.Close()
}

// SetBatch pipelines a batch of entries in one round trip.
func (b *remoteBackend) SetBatch(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if err := b.remote.PipelineSet(ctx, entries, ttl); err != nil {
		b.noteFailure("set_batch", err)
		return err
	}
	return nil
}

// noteFailure logs the first distributed failure; subsequent ones are
// expected noise once the tier is down.
func (b *remoteBackend) noteFailure(op string, err error) {
	b.failOnce.Do(func() {
		b.logger.Warn("distributed cache operation failed", "operation", op, "error", err)
	})
}
