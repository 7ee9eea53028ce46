package cache

import (
	"context"
	stderr "errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDistributed is an in-memory stand-in for the redis store with failure
// injection.
type fakeDistributed struct {
	mu        sync.Mutex
	values    map[string][]byte
	expiries  map[string]time.Time
	available bool
	failing   bool
	failTTL   bool

	getCalls int
	setCalls int
}

func newFakeDistributed() *fakeDistributed {
	return &fakeDistributed{
		values:    make(map[string][]byte),
		expiries:  make(map[string]time.Time),
		available: true,
	}
}

var errInjected = stderr.New("injected failure")

func (f *fakeDistributed) Available() bool { return f.available }

func (f *fakeDistributed) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failing {
		return nil, errInjected
	}
	if exp, ok := f.expiries[key]; ok && time.Now().After(exp) {
		delete(f.values, key)
		delete(f.expiries, key)
	}
	value, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (f *fakeDistributed) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failing {
		return errInjected
	}
	f.values[key] = value
	if ttl > 0 {
		f.expiries[key] = time.Now().Add(ttl)
	} else {
		delete(f.expiries, key)
	}
	return nil
}

func (f *fakeDistributed) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errInjected
	}
	delete(f.values, key)
	delete(f.expiries, key)
	return nil
}

func (f *fakeDistributed) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errInjected
	}
	var current int64
	if value, ok := f.values[key]; ok {
		current, _ = strconv.ParseInt(string(value), 10, 64)
	}
	current++
	f.values[key] = []byte(strconv.FormatInt(current, 10))
	if ttl > 0 {
		f.expiries[key] = time.Now().Add(ttl)
	}
	return current, nil
}

func (f *fakeDistributed) TTL(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing || f.failTTL {
		return -1, errInjected
	}
	exp, ok := f.expiries[key]
	if !ok {
		return -1, nil
	}
	return time.Until(exp), nil
}

func (f *fakeDistributed) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errInjected
	}
	if _, ok := f.values[key]; ok {
		f.expiries[key] = time.Now().Add(ttl)
	}
	return nil
}

func (f *fakeDistributed) KeysByPattern(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errInjected
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeDistributed) DeleteByPattern(_ context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errInjected
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
			delete(f.expiries, key)
		}
	}
	return nil
}

func (f *fakeDistributed) PipelineSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if f.failing {
		return errInjected
	}
	for key, value := range entries {
		if err := f.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDistributed) Close() error { return nil }

func TestTieredCache_LocalHitSkipsRemote(t *testing.T) {
	remote := newFakeDistributed()
	tiered := NewTieredCache(NewLRUStore(10), remote, nil)
	ctx := context.Background()

	_ = tiered.Set(ctx, "user:1", []byte("v"), time.Minute)
	remote.getCalls = 0

	if _, found := tiered.Get(ctx, "user:1"); !found {
		t.Fatal("expected local hit")
	}
	if remote.getCalls != 0 {
		t.Errorf("local hit should not touch the distributed tier, got %d calls", remote.getCalls)
	}
}

func TestTieredCache_RemoteFallthroughBackfills(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	// Value only present remotely, as after a process restart.
	_ = remote.Set(ctx, "recipe:7", []byte("pasta"), time.Minute)

	value, found := tiered.Get(ctx, "recipe:7")
	if !found || string(value) != "pasta" {
		t.Fatalf("expected remote fallthrough hit, got %q found=%v", value, found)
	}

	// Backfill preserves the remaining TTL rather than resetting it.
	if _, found := local.Get(ctx, "recipe:7"); !found {
		t.Error("remote hit should backfill the local tier")
	}
	ttl := local.TTL(ctx, "recipe:7")
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("backfilled ttl should be at most the remote remainder, got %v", ttl)
	}
}

func TestTieredCache_NoBackfillWithoutKnownTTL(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	// Remote entry is expiring, but the TTL read fails: the value is still
	// served, yet the local tier must not receive an immortal copy.
	_ = remote.Set(ctx, "user:1", []byte("v"), time.Minute)
	remote.failTTL = true

	value, found := tiered.Get(ctx, "user:1")
	if !found || string(value) != "v" {
		t.Fatalf("remote value should still be served, got %q found=%v", value, found)
	}
	if local.Exists(ctx, "user:1") {
		t.Error("backfill must be skipped when the remaining TTL is unknown")
	}

	// Same for a remote entry that reports no positive remaining TTL.
	remote.failTTL = false
	_ = remote.Set(ctx, "user:2", []byte("w"), 0)

	if _, found := tiered.Get(ctx, "user:2"); !found {
		t.Fatal("expected remote hit")
	}
	if local.Exists(ctx, "user:2") {
		t.Error("backfill must be skipped without a positive remaining TTL")
	}
}

func TestTieredCache_BackfilledCounterNeverGoesStale(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	// A read between increments pulls the counter into the local tier.
	_, _ = tiered.Increment(ctx, "login_attempts:eve", time.Minute)
	if value, found := tiered.Get(ctx, "login_attempts:eve"); !found || string(value) != "1" {
		t.Fatalf("expected counter 1, got %q found=%v", value, found)
	}

	// Every later increment must be visible through Get despite that copy.
	for want := 2; want <= 5; want++ {
		if _, err := tiered.Increment(ctx, "login_attempts:eve", time.Minute); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		value, found := tiered.Get(ctx, "login_attempts:eve")
		if !found || string(value) != strconv.Itoa(want) {
			t.Fatalf("after increment %d: got %q found=%v", want, value, found)
		}
	}
}

func TestTieredCache_WriteThroughBothTiers(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	if err := tiered.Set(ctx, "user:9", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, found := local.Get(ctx, "user:9"); !found {
		t.Error("value missing from local tier")
	}
	if value, _ := remote.Get(ctx, "user:9"); value == nil {
		t.Error("value missing from distributed tier")
	}
}

func TestTieredCache_DegradesOnceAndStaysLocal(t *testing.T) {
	remote := newFakeDistributed()
	tiered := NewTieredCache(NewLRUStore(10), remote, nil)
	ctx := context.Background()

	remote.failing = true

	// The failing remote write must not fail the overall Set.
	if err := tiered.Set(ctx, "user:1", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set should succeed locally, got %v", err)
	}
	if !tiered.Stats().Degraded {
		t.Fatal("first remote failure should degrade the tier")
	}

	// Degradation is sticky: recovery does not re-enable the remote.
	remote.failing = false
	remote.setCalls = 0
	_ = tiered.Set(ctx, "user:2", []byte("v"), time.Minute)
	if remote.setCalls != 0 {
		t.Error("degraded tier must stay local-only for the process lifetime")
	}

	// Reads still work from the local tier.
	if _, found := tiered.Get(ctx, "user:1"); !found {
		t.Error("local tier should keep serving reads under degradation")
	}
}

func TestTieredCache_UnavailableRemoteStartsDegraded(t *testing.T) {
	remote := newFakeDistributed()
	remote.available = false

	tiered := NewTieredCache(NewLRUStore(10), remote, nil)
	if !tiered.Stats().Degraded {
		t.Error("tier over an unavailable remote should start degraded")
	}

	tiered = NewTieredCache(NewLRUStore(10), nil, nil)
	if !tiered.Stats().Degraded {
		t.Error("tier without a remote should start degraded")
	}
}

func TestTieredCache_IncrementUsesRemoteCounter(t *testing.T) {
	remote := newFakeDistributed()
	tiered := NewTieredCache(NewLRUStore(10), remote, nil)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := tiered.Increment(ctx, "login_attempts:carol", time.Minute)
		if err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	// The counter lives remotely, not in the local tier.
	if value, _ := remote.Get(ctx, "login_attempts:carol"); string(value) != "3" {
		t.Errorf("remote counter should be 3, got %q", value)
	}
}

func TestTieredCache_IncrementFallsBackWhenDegraded(t *testing.T) {
	remote := newFakeDistributed()
	tiered := NewTieredCache(NewLRUStore(10), remote, nil)
	ctx := context.Background()

	remote.failing = true

	got, err := tiered.Increment(ctx, "login_attempts:dan", time.Minute)
	if err != nil {
		t.Fatalf("degraded increment should use the local counter: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	got, _ = tiered.Increment(ctx, "login_attempts:dan", time.Minute)
	if got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestTieredCache_DeleteRemovesBothTiers(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	_ = tiered.Set(ctx, "user:1", []byte("v"), 0)
	_ = tiered.Delete(ctx, "user:1")

	if _, found := local.Get(ctx, "user:1"); found {
		t.Error("value should be gone from local tier")
	}
	if value, _ := remote.Get(ctx, "user:1"); value != nil {
		t.Error("value should be gone from distributed tier")
	}
}

func TestTieredCache_ClearPrefixBothTiers(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	_ = tiered.Set(ctx, "user:1", []byte("a"), 0)
	_ = tiered.Set(ctx, "recipe:1", []byte("b"), 0)

	if err := tiered.ClearPrefix(ctx, "user"); err != nil {
		t.Fatalf("ClearPrefix failed: %v", err)
	}

	if _, found := tiered.Get(ctx, "user:1"); found {
		t.Error("user namespace should be cleared")
	}
	if _, found := tiered.Get(ctx, "recipe:1"); !found {
		t.Error("recipe namespace should survive")
	}
}

func TestTieredCache_SetBatch(t *testing.T) {
	remote := newFakeDistributed()
	local := NewLRUStore(10)
	tiered := NewTieredCache(local, remote, nil)
	ctx := context.Background()

	entries := map[string][]byte{
		"recipe:1": []byte("a"),
		"recipe:2": []byte("b"),
	}
	if err := tiered.SetBatch(ctx, entries, time.Minute); err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	for key := range entries {
		if _, found := local.Get(ctx, key); !found {
			t.Errorf("%s missing from local tier", key)
		}
		if value, _ := remote.Get(ctx, key); value == nil {
			t.Errorf("%s missing from distributed tier", key)
		}
	}
}
