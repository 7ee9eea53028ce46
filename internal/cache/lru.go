package cache

import (
	"container/list"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// LRUStore is a capacity-bounded store with strict recency-ordered eviction.
// At most capacity entries are live; inserting into a full store evicts the
// single least-recently-touched entry first. Recency order is maintained in
// O(1) via container/list, with the map holding each key's list element.
type LRUStore struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List

	statsMu sync.Mutex
	stats   types.CacheStats
}

// lruEntry is the value stored in each list element.
type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	createdAt time.Time
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewLRUStore creates an LRU store bounded to capacity entries.
func NewLRUStore(capacity int) *LRUStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRUStore{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves the value for key and promotes it to most-recently-used.
// A miss has no side effects on recency order.
func (s *LRUStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	elem, ok := s.items[key]
	var value []byte
	if ok {
		e := elem.Value.(*lruEntry)
		if e.expired(time.Now()) {
			s.removeElement(elem)
			ok = false
		} else {
			s.evictList.MoveToFront(elem)
			value = e.value
		}
	}
	s.mu.Unlock()

	if !ok {
		s.recordMiss()
		return nil, false
	}

	s.recordHit()
	return value, true
}

// Set stores value under key. An existing key is replaced and promoted;
// a new key may first evict the least-recently-used entry.
func (s *LRUStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		e := elem.Value.(*lruEntry)
		e.value = value
		e.expiresAt = expiresAt
		e.createdAt = now
		s.evictList.MoveToFront(elem)
		return nil
	}

	if s.evictList.Len() >= s.capacity {
		s.evictOldest()
	}

	elem := s.evictList.PushFront(&lruEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
		createdAt: now,
	})
	s.items[key] = elem
	return nil
}

// Delete removes key without affecting other entries' recency.
func (s *LRUStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if elem, ok := s.items[key]; ok {
		s.evictList.Remove(elem)
		delete(s.items, key)
	}
	s.mu.Unlock()
	return nil
}

// Exists reports whether key is present and unexpired, without promoting it.
func (s *LRUStore) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}
	if elem.Value.(*lruEntry).expired(time.Now()) {
		s.removeElement(elem)
		return false
	}
	return true
}

// Increment adds one to the integer counter at key, applying ttl and
// promoting the entry. Serialized by the store mutex; see Backend.
func (s *LRUStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	if elem, ok := s.items[key]; ok {
		e := elem.Value.(*lruEntry)
		var current int64
		if !e.expired(now) {
			parsed, err := strconv.ParseInt(strings.TrimSpace(string(e.value)), 10, 64)
			if err != nil {
				return 0, errors.NewError(errors.ErrCodeInvalidState, "counter value is not an integer").
					WithComponent("lru").WithOperation("increment").WithCause(err)
			}
			current = parsed
		}
		current++
		e.value = []byte(strconv.FormatInt(current, 10))
		e.expiresAt = expiresAt
		e.createdAt = now
		s.evictList.MoveToFront(elem)
		return current, nil
	}

	if s.evictList.Len() >= s.capacity {
		s.evictOldest()
	}
	elem := s.evictList.PushFront(&lruEntry{
		key:       key,
		value:     []byte("1"),
		expiresAt: expiresAt,
		createdAt: now,
	})
	s.items[key] = elem

	return 1, nil
}

// TTL returns the remaining lifetime of key, or NoTTL when absent, expired,
// or stored without expiry.
func (s *LRUStore) TTL(_ context.Context, key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return NoTTL
	}
	e := elem.Value.(*lruEntry)
	if e.expiresAt.IsZero() {
		return NoTTL
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		s.removeElement(elem)
		return NoTTL
	}
	return remaining
}

// Expire resets the expiry of an existing key.
func (s *LRUStore) Expire(_ context.Context, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return false
	}
	e := elem.Value.(*lruEntry)
	if e.expired(time.Now()) {
		s.removeElement(elem)
		return false
	}
	e.expiresAt = time.Now().Add(ttl)
	return true
}

// Clear removes every entry and resets statistics.
func (s *LRUStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]*list.Element)
	s.evictList.Init()
	s.mu.Unlock()

	s.statsMu.Lock()
	s.stats = types.CacheStats{}
	s.statsMu.Unlock()
	return nil
}

// ClearPrefix removes every entry in the "{prefix}:" namespace.
func (s *LRUStore) ClearPrefix(_ context.Context, prefix string) error {
	match := prefix + ":"

	s.mu.Lock()
	for key, elem := range s.items {
		if strings.HasPrefix(key, match) {
			s.evictList.Remove(elem)
			delete(s.items, key)
		}
	}
	s.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the store's counters.
func (s *LRUStore) Stats() types.CacheStats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	now := time.Now()
	prefixes := make(map[string]int)

	s.mu.Lock()
	stats.Entries = len(s.items)
	for key, elem := range s.items {
		prefixes[keyPrefix(key)]++
		if elem.Value.(*lruEntry).expired(now) {
			stats.Expired++
		}
	}
	s.mu.Unlock()

	stats.PrefixEntries = prefixes
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close is a no-op for the in-process store.
func (s *LRUStore) Close() error {
	return nil
}

// Keys returns the live keys, most recently used first.
func (s *LRUStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.evictList.Len())
	for elem := s.evictList.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruEntry).key)
	}
	return keys
}

// evictOldest removes the entry at the back of the recency list.
// Caller must hold mu.
func (s *LRUStore) evictOldest() {
	elem := s.evictList.Back()
	if elem == nil {
		return
	}
	s.removeElement(elem)
}

// removeElement unlinks an element and counts the eviction.
// Caller must hold mu.
func (s *LRUStore) removeElement(elem *list.Element) {
	e := elem.Value.(*lruEntry)
	s.evictList.Remove(elem)
	delete(s.items, e.key)

	s.statsMu.Lock()
	s.stats.Evictions++
	s.statsMu.Unlock()
}

func (s *LRUStore) recordHit() {
	s.statsMu.Lock()
	s.stats.Hits++
	s.statsMu.Unlock()
}

func (s *LRUStore) recordMiss() {
	s.statsMu.Lock()
	s.stats.Misses++
	s.statsMu.Unlock()
}
