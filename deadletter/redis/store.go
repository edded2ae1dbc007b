package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookrelay/hookrelay/deadletter"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/replay"
)

/* Redis implementation of deadletter.Store. Item payloads live in a
 * hash keyed by item id; an index sorted set scored by failure time
 * gives the most-recent-first listing. ZREM is the removal claim for
 * Requeue and Delete, so concurrent operators cannot both consume the
 * same item.
 */

const (
	indexKey   = "deadletter:index"
	payloadKey = "deadletter:payloads"
)

type Store struct {
	client *redis.Client
	clock  func() time.Time
}

// NewStore connects to Redis and verifies the connection.
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Store{client: client, clock: time.Now}, nil
}

// NewStoreWithClient wraps an existing client (shared across adapters).
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client, clock: time.Now}
}

// MoveToDeadLetter durably quarantines the command.
func (s *Store) MoveToDeadLetter(ctx context.Context, cmd replay.Command, reason string, lastErr error) (deadletter.Item, error) {
	now := s.clock().UTC()
	item := deadletter.Item{
		ID:       deadletter.NewItemID(now),
		Command:  cmd,
		Reason:   reason,
		FailedAt: now,
	}
	if lastErr != nil {
		item.LastError = lastErr.Error()
	}

	data, err := deadletter.EncodeItem(item)
	if err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, payloadKey, item.ID, data)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: item.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed,
			fmt.Errorf("storing dead-letter item %s: %w", item.ID, err))
	}
	return item, nil
}

// GetAll lists items most-recent-failure-first.
func (s *Store) GetAll(ctx context.Context) ([]deadletter.Item, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fault.Wrap(fault.CodeDeadLetterReadFailed,
			fmt.Errorf("reading dead-letter index: %w", err))
	}

	items := make([]deadletter.Item, 0, len(ids))
	for _, id := range ids {
		item, found, err := s.read(ctx, id)
		if err != nil {
			return nil, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
		}
		if !found {
			// Removed between the index read and the payload read.
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// GetByID returns one item.
func (s *Store) GetByID(ctx context.Context, id string) (deadletter.Item, error) {
	item, found, err := s.read(ctx, id)
	if err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
	}
	if !found {
		return deadletter.Item{}, fault.New(fault.CodeDeadLetterNotFound)
	}
	return item, nil
}

// Requeue removes the item and returns a fresh command with attempt 0.
func (s *Store) Requeue(ctx context.Context, id string) (replay.Command, error) {
	item, found, err := s.read(ctx, id)
	if err != nil {
		return replay.Command{}, fault.Wrap(fault.CodeDeadLetterRequeueFailed, err)
	}
	if !found {
		return replay.Command{}, fault.New(fault.CodeDeadLetterNotFound)
	}

	removed, err := s.remove(ctx, id)
	if err != nil {
		return replay.Command{}, fault.Wrap(fault.CodeDeadLetterRequeueFailed, err)
	}
	if !removed {
		return replay.Command{}, fault.New(fault.CodeDeadLetterNotFound)
	}
	return item.Requeued(), nil
}

// Delete permanently discards the item.
func (s *Store) Delete(ctx context.Context, id string) error {
	removed, err := s.remove(ctx, id)
	if err != nil {
		return fault.Wrap(fault.CodeDeadLetterDeleteFailed, err)
	}
	if !removed {
		return fault.New(fault.CodeDeadLetterNotFound)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *Store) read(ctx context.Context, id string) (deadletter.Item, bool, error) {
	data, err := s.client.HGet(ctx, payloadKey, id).Bytes()
	if err == redis.Nil {
		return deadletter.Item{}, false, nil
	}
	if err != nil {
		return deadletter.Item{}, false, fmt.Errorf("reading dead-letter item %s: %w", id, err)
	}

	item, err := deadletter.DecodeItem(data)
	if err != nil {
		return deadletter.Item{}, false, fmt.Errorf("dead-letter item %s: %w", id, err)
	}
	return item, true, nil
}

func (s *Store) remove(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.ZRem(ctx, indexKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("removing dead-letter index entry %s: %w", id, err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := s.client.HDel(ctx, payloadKey, id).Err(); err != nil {
		return false, fmt.Errorf("removing dead-letter payload %s: %w", id, err)
	}
	return true, nil
}
