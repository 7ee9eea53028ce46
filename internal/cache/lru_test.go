package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestLRUStore_EvictionOrder(t *testing.T) {
	store := NewLRUStore(2)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)

	// Touch a so b becomes the least recently used.
	if _, found := store.Get(ctx, "a"); !found {
		t.Fatal("a should be cached")
	}

	_ = store.Set(ctx, "c", []byte("3"), 0)

	if _, found := store.Get(ctx, "b"); found {
		t.Error("b should have been evicted")
	}
	if _, found := store.Get(ctx, "a"); !found {
		t.Error("a should have survived")
	}
	if _, found := store.Get(ctx, "c"); !found {
		t.Error("c should be cached")
	}

	if evictions := store.Stats().Evictions; evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", evictions)
	}
}

func TestLRUStore_CapacityNeverExceeded(t *testing.T) {
	capacity := 10
	store := NewLRUStore(capacity)
	ctx := context.Background()

	for i := 0; i < capacity*3; i++ {
		_ = store.Set(ctx, fmt.Sprintf("key:%d", i), []byte("v"), 0)
		if entries := store.Stats().Entries; entries > capacity {
			t.Fatalf("capacity exceeded: %d entries after insert %d", entries, i)
		}
	}

	if entries := store.Stats().Entries; entries != capacity {
		t.Errorf("expected %d entries, got %d", capacity, entries)
	}
}

func TestLRUStore_ReplaceDoesNotEvict(t *testing.T) {
	store := NewLRUStore(2)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)
	_ = store.Set(ctx, "a", []byte("updated"), 0)

	if _, found := store.Get(ctx, "b"); !found {
		t.Error("replacing an existing key must not evict others")
	}
	value, _ := store.Get(ctx, "a")
	if string(value) != "updated" {
		t.Errorf("expected updated value, got %s", value)
	}
}

func TestLRUStore_ExistsDoesNotPromote(t *testing.T) {
	store := NewLRUStore(2)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)

	// Exists must not refresh a's recency, so a is still evicted next.
	store.Exists(ctx, "a")
	_ = store.Set(ctx, "c", []byte("3"), 0)

	if _, found := store.Get(ctx, "a"); found {
		t.Error("a should have been evicted despite the Exists probe")
	}
}

func TestLRUStore_ExpiredEntryCountsAsEviction(t *testing.T) {
	store := NewLRUStore(10)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	if _, found := store.Get(ctx, "a"); found {
		t.Fatal("expired entry should be a miss")
	}
	if evictions := store.Stats().Evictions; evictions != 1 {
		t.Errorf("lazy expiry should count as eviction, got %d", evictions)
	}
}

func TestLRUStore_Increment(t *testing.T) {
	store := NewLRUStore(10)
	ctx := context.Background()

	got, err := store.Increment(ctx, "login_attempts:eve", time.Minute)
	if err != nil || got != 1 {
		t.Fatalf("first increment: got %d, err %v", got, err)
	}
	got, err = store.Increment(ctx, "login_attempts:eve", time.Minute)
	if err != nil || got != 2 {
		t.Fatalf("second increment: got %d, err %v", got, err)
	}

	// Increment promotes, so the counter survives subsequent inserts.
	small := NewLRUStore(2)
	_ = small.Set(ctx, "other", []byte("v"), 0)
	_, _ = small.Increment(ctx, "counter", 0)
	_, _ = small.Increment(ctx, "counter", 0)
	_ = small.Set(ctx, "new", []byte("v"), 0)
	if _, found := small.Get(ctx, "counter"); !found {
		t.Error("recently incremented counter should not be the eviction victim")
	}
}

func TestLRUStore_KeysOrder(t *testing.T) {
	store := NewLRUStore(3)
	ctx := context.Background()

	_ = store.Set(ctx, "a", []byte("1"), 0)
	_ = store.Set(ctx, "b", []byte("2"), 0)
	_ = store.Set(ctx, "c", []byte("3"), 0)
	store.Get(ctx, "a")

	keys := store.Keys()
	if len(keys) != 3 || keys[0] != "a" {
		t.Errorf("expected a first (most recent), got %v", keys)
	}
}
