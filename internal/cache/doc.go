/*
Package cache implements TierCache's caching strategies and the service
facade the application talks to.

# Architecture

One Backend interface, four strategies, selected once at construction:

	┌─────────────────────────────────────────────┐
	│              Application                    │
	│   (auth lockout, warmup, request paths)     │
	└─────────────────────┬───────────────────────┘
	                      │
	┌─────────────────────▼───────────────────────┐
	│              Service facade                 │
	│   JSON serialization, prefix TTLs, stats    │
	└─────────────────────┬───────────────────────┘
	                      │ Backend
	   ┌───────────┬──────┴──────┬────────────┐
	   │           │             │            │
	┌──▼─────┐ ┌───▼────┐ ┌──────▼─────┐ ┌────▼──────┐
	│ memory │ │  lru   │ │   redis    │ │   multi   │
	│  map   │ │bounded │ │ remote only│ │ lru+redis │
	└────────┘ └────────┘ └────────────┘ └───────────┘

The memory strategy is an unbounded map with lazy TTL expiration. The lru
strategy bounds entries with strict least-recently-used eviction. The redis
strategy delegates everything to the distributed tier. The multi strategy
layers the two: local reads first, distributed fallthrough with TTL-preserving
backfill, best-effort write-through, and permanent local-only degradation the
first time the distributed tier fails at runtime.

# Keys

Every key is "{prefix}:{id}" built through BuildKey. Prefixes namespace the
application's entity kinds (user, profile, recipe, token, login_attempts and
so on) and are what make prefix-scoped clears and per-prefix TTL defaults
possible.

# Counters

Increment treats the stored value as a decimal integer. On the distributed
tier the increment and its expiry run in one pipeline and are atomic; local
stores serialize increments through the store mutex. The multi strategy
always prefers the distributed counter while it is reachable so that lockout
decisions come from a single source of truth.

# Values

The facade owns serialization: values go through encoding/json on the way in
and out, and an unserializable value makes Set report false rather than
panic. Backends only ever see opaque byte slices.
*/
package cache
