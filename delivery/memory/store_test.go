package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/delivery/memory"
)

func testDelivery(id string) delivery.Delivery {
	return delivery.Delivery{
		ID:         delivery.ID(id),
		EventName:  "issues.opened",
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Payload:    []byte(`{"a":1}`),
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then get round-trips", func(t *testing.T) {
		store := memory.NewStore()
		d := testDelivery("d-1")

		require.NoError(t, store.Save(ctx, d))

		got, found, err := store.Get(ctx, "d-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, d, got)
	})

	t.Run("get on a missing id reports not found", func(t *testing.T) {
		store := memory.NewStore()
		_, found, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("second save of the same id fails with ErrAlreadyProcessed", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Save(ctx, testDelivery("d-1")))

		err := store.Save(ctx, testDelivery("d-1"))
		require.ErrorIs(t, err, delivery.ErrAlreadyProcessed)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("concurrent saves of the same id admit exactly one", func(t *testing.T) {
		store := memory.NewStore()

		var wg sync.WaitGroup
		errs := make([]error, 20)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Save(ctx, testDelivery("d-race"))
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, delivery.ErrAlreadyProcessed)
			}
		}
		assert.Equal(t, 1, winners)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("cancelled context is honored", func(t *testing.T) {
		store := memory.NewStore()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		require.Error(t, store.Save(cancelled, testDelivery("d-1")))
		_, _, err := store.Get(cancelled, "d-1")
		require.Error(t, err)
	})
}
