package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/errors"
)

// unreachableStore builds a store against a port nothing listens on, so the
// startup probe fails fast and deterministically.
func unreachableStore(t *testing.T) *Store {
	t.Helper()
	store := New(context.Background(), config.RedisConfig{
		Host:        "127.0.0.1",
		Port:        1,
		DialTimeout: 100 * time.Millisecond,
	}, nil)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_FailedProbeMarksUnavailable(t *testing.T) {
	store := unreachableStore(t)
	assert.False(t, store.Available())
}

func TestUnavailableStore_OperationsReturnTypedErrors(t *testing.T) {
	store := unreachableStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "user:1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))

	err = store.Set(ctx, "user:1", []byte("v"), time.Minute)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))

	_, err = store.Incr(ctx, "login_attempts:a", time.Minute)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))

	_, err = store.TTL(ctx, "user:1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))

	err = store.PipelineSet(ctx, map[string][]byte{"k": []byte("v")}, 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))

	err = store.HealthCheck(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBackendUnreachable))
}

func TestGetComponentName(t *testing.T) {
	store := unreachableStore(t)
	assert.Equal(t, "redis", store.GetComponentName())
}
