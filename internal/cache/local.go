package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// MemoryStore is an in-process key/value store with lazy TTL expiration.
// A single coarse RWMutex guards the whole map: entries are small and all
// operations are O(1), so sharded locks buy nothing at this scale.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	statsMu sync.Mutex
	stats   types.CacheStats
}

// entry is a stored value with its expiry bookkeeping.
type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	createdAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Get retrieves the value for key, purging it if the stored expiry has passed.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.expired(time.Now()) {
		delete(s.entries, key)
		ok = false
		s.recordEviction()
	}
	s.mu.Unlock()

	if !ok {
		s.recordMiss()
		return nil, false
	}

	s.recordHit()
	return e.value, true
}

// Set stores value under key. A ttl of zero means the entry never expires.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{value: value, createdAt: time.Now()}
	if ttl > 0 {
		e.expiresAt = e.createdAt.Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Exists reports whether key is present and unexpired.
func (s *MemoryStore) Exists(ctx context.Context, key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.expired(time.Now()) {
		delete(s.entries, key)
		ok = false
		s.recordEviction()
	}
	s.mu.Unlock()
	return ok
}

// Increment adds one to the integer counter at key and applies ttl. The
// read-modify-write runs under the store lock, so concurrent increments on
// this store serialize, but there is no cross-operation atomicity: a caller
// doing Get-then-Increment can still under-count.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var current int64
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(e.value)), 10, 64)
		if err != nil {
			return 0, errors.NewError(errors.ErrCodeInvalidState, "counter value is not an integer").
				WithComponent("memory").WithOperation("increment").WithCause(err)
		}
		current = parsed
	}

	current++
	e := &entry{value: []byte(strconv.FormatInt(current, 10)), createdAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e

	return current, nil
}

// TTL returns the remaining lifetime of key, or NoTTL if the key is absent,
// already expired, or has no expiry. Expired entries are purged.
func (s *MemoryStore) TTL(_ context.Context, key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expiresAt.IsZero() {
		return NoTTL
	}

	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		delete(s.entries, key)
		return NoTTL
	}
	return remaining
}

// Expire resets the expiry of an existing key.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return false
	}
	e.expiresAt = time.Now().Add(ttl)
	return true
}

// Clear removes every entry and resets statistics.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats = types.CacheStats{}
	s.statsMu.Unlock()
	return nil
}

// ClearPrefix removes every entry in the "{prefix}:" namespace.
func (s *MemoryStore) ClearPrefix(_ context.Context, prefix string) error {
	match := prefix + ":"

	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, match) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the store's counters, including per-prefix
// entry counts and how many live entries have already expired.
func (s *MemoryStore) Stats() types.CacheStats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	now := time.Now()
	prefixes := make(map[string]int)

	s.mu.RLock()
	stats.Entries = len(s.entries)
	for key, e := range s.entries {
		prefixes[keyPrefix(key)]++
		if e.expired(now) {
			stats.Expired++
		}
	}
	s.mu.RUnlock()

	stats.PrefixEntries = prefixes
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) recordHit() {
	s.statsMu.Lock()
	s.stats.Hits++
	s.statsMu.Unlock()
}

func (s *MemoryStore) recordMiss() {
	s.statsMu.Lock()
	s.stats.Misses++
	s.statsMu.Unlock()
}

func (s *MemoryStore) recordEviction() {
	s.statsMu.Lock()
	s.stats.Evictions++
	s.statsMu.Unlock()
}
