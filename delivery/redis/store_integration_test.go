//go:build integration

package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/hookrelay/hookrelay/delivery"
	deliveryredis "github.com/hookrelay/hookrelay/delivery/redis"
)

// setupRedisContainer starts a Redis testcontainer and returns its address.
func setupRedisContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	addr = strings.TrimPrefix(addr, "redis://")

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}
	return addr, cleanup
}

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	addr, cleanup := setupRedisContainer(t, ctx)
	defer cleanup()

	store, err := deliveryredis.NewStore(addr, "", 0)
	require.NoError(t, err)
	defer store.Close(ctx)

	d := delivery.Delivery{
		ID:             "d-1",
		EventName:      "issues.opened",
		ReceivedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:        []byte(`{"a":1}`),
		InstallationID: 77,
	}

	t.Run("save then get round-trips", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, d))

		got, found, err := store.Get(ctx, "d-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, d.EventName, got.EventName)
		assert.Equal(t, d.Payload, got.Payload)
		assert.Equal(t, d.InstallationID, got.InstallationID)
		assert.True(t, d.ReceivedAt.Equal(got.ReceivedAt))
	})

	t.Run("second save of the same id is rejected", func(t *testing.T) {
		err := store.Save(ctx, d)
		require.ErrorIs(t, err, delivery.ErrAlreadyProcessed)
	})

	t.Run("missing id reports not found", func(t *testing.T) {
		_, found, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})
}
