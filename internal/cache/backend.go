package cache

import (
	"context"
	"time"

	"github.com/tiercache/tiercache/pkg/types"
)

// NoTTL is returned by TTL for keys that are absent or carry no expiry.
const NoTTL = time.Duration(-1)

// Backend is the single interface the service facade delegates to. Each
// strategy (memory, lru, redis, multi) provides one implementation; call
// sites never branch on the concrete type.
//
// Values are opaque byte payloads; the facade owns serialization. A nil
// error from Set means the authoritative tier for that backend stored the
// value. Backends swallow and report nothing for keys that do not exist:
// Delete and ClearPrefix are idempotent.
type Backend interface {
	// Get returns the value for key, or found=false on miss. Expired
	// entries are purged on access and reported as misses.
	Get(ctx context.Context, key string) (value []byte, found bool)

	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) bool

	// Increment adds one to the integer counter at key and applies ttl to
	// the result. Only the distributed tier offers a true atomic increment;
	// local tiers serialize through the store mutex but remain
	// read-modify-write relative to other operations.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of key, or NoTTL if the key is
	// absent, expired, or has no expiry set.
	TTL(ctx context.Context, key string) time.Duration

	// Expire resets the expiry of an existing key. Returns false if the key
	// is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) bool

	// Clear removes every entry and resets statistics.
	Clear(ctx context.Context) error

	// ClearPrefix removes every entry whose key starts with "{prefix}:".
	ClearPrefix(ctx context.Context, prefix string) error

	// Stats returns a snapshot of the backend's counters.
	Stats() types.CacheStats

	// Close releases backend resources.
	Close() error
}

// keyPrefix extracts the namespace portion of a composite key.
func keyPrefix(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
