// Package auth implements brute-force protection for login endpoints on top
// of the cache's TTL and counter primitives. No lockout state lives anywhere
// but the cache: when the counter key expires, the account is unlocked.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/tiercache/tiercache/internal/cache"
	"github.com/tiercache/tiercache/internal/config"
)

// Tracker counts failed login attempts per account and locks the account out
// once the configured maximum is reached.
//
// Below the maximum, the counter lives under a short soft window so sparse
// failures age out on their own. At the maximum, the counter's expiry is
// stretched to the full lockout duration, and the account stays locked until
// that expiry passes or a successful login resets it.
type Tracker struct {
	cache       *cache.Service
	maxAttempts int64
	lockoutTTL  time.Duration
	softWindow  time.Duration
	logger      *slog.Logger
}

// NewTracker builds a tracker over the shared cache service.
func NewTracker(svc *cache.Service, cfg config.LockoutConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cache:       svc,
		maxAttempts: int64(cfg.MaxLoginAttempts),
		lockoutTTL:  time.Duration(cfg.LockoutDuration) * time.Minute,
		softWindow:  cfg.SoftWindow,
		logger:      logger,
	}
}

// IncrementFailedAttempt records one failed login for the identifier and
// returns the new attempt count. Crossing the maximum stretches the counter's
// expiry to the full lockout duration, which is what makes the account locked.
func (t *Tracker) IncrementFailedAttempt(ctx context.Context, identifier string) (int64, error) {
	attempts, err := t.cache.Increment(ctx, cache.PrefixLoginAttempts, identifier, t.softWindow)
	if err != nil {
		return 0, err
	}

	if attempts >= t.maxAttempts {
		t.cache.Expire(ctx, cache.PrefixLoginAttempts, identifier, t.lockoutTTL)
		t.logger.Warn("account locked after repeated failed logins",
			"identifier", identifier, "attempts", attempts)
	}
	return attempts, nil
}

// IsLocked reports whether the identifier is currently locked out and, if so,
// the remaining lockout in whole seconds. A counter at or above the maximum
// whose TTL has already run out is cleaned up and treated as unlocked.
func (t *Tracker) IsLocked(ctx context.Context, identifier string) (bool, int) {
	var attempts int64
	if !t.cache.Get(ctx, cache.PrefixLoginAttempts, identifier, &attempts) {
		return false, 0
	}
	if attempts < t.maxAttempts {
		return false, 0
	}

	remaining := t.cache.TTL(ctx, cache.PrefixLoginAttempts, identifier)
	if remaining <= 0 {
		t.cache.Delete(ctx, cache.PrefixLoginAttempts, identifier)
		return false, 0
	}
	return true, int(remaining / time.Second)
}

// Attempts returns the current failed-attempt count, zero when none recorded.
func (t *Tracker) Attempts(ctx context.Context, identifier string) int64 {
	var attempts int64
	if !t.cache.Get(ctx, cache.PrefixLoginAttempts, identifier, &attempts) {
		return 0
	}
	return attempts
}

// ResetOnSuccess clears the failed-attempt counter after a successful login.
func (t *Tracker) ResetOnSuccess(ctx context.Context, identifier string) {
	t.cache.Delete(ctx, cache.PrefixLoginAttempts, identifier)
}
