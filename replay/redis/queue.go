package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hookrelay/hookrelay/replay"
)

/* Redis implementation of replay.Queue. Record keys live in a sorted
 * set scored by enqueue time; payloads live in a hash keyed by record
 * id. ZREM is the claim: only the consumer whose removal reports 1 owns
 * the record, which makes multiple concurrent workers safe.
 */

const (
	indexKey   = "replay:index"
	payloadKey = "replay:payloads"
)

type Queue struct {
	client *redis.Client
}

// NewQueue connects to Redis and verifies the connection.
func NewQueue(addr, password string, db int) (*Queue, error) {
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

	return &Queue{client: client}, nil
}

// NewQueueWithClient wraps an existing client (shared across adapters).
func NewQueueWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue writes the command as one immutable record.
func (q *Queue) Enqueue(ctx context.Context, cmd replay.Command) error {
	data, err := replay.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	now := time.Now()
	id := fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString())

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, payloadKey, id, data)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueueing replay record %s: %w", id, err)
	}
	return nil
}

// Dequeue claims the oldest pending record. Returns false when empty.
func (q *Queue) Dequeue(ctx context.Context) (replay.Command, bool, error) {
	for {
		ids, err := q.client.ZRange(ctx, indexKey, 0, 0).Result()
		if err != nil {
			return replay.Command{}, false, fmt.Errorf("reading replay index: %w", err)
		}
		if len(ids) == 0 {
			return replay.Command{}, false, nil
		}
		id := ids[0]

		removed, err := q.client.ZRem(ctx, indexKey, id).Result()
		if err != nil {
			return replay.Command{}, false, fmt.Errorf("claiming replay record %s: %w", id, err)
		}
		if removed == 0 {
			// Another consumer claimed it first; try the next record.
			continue
		}

		data, err := q.client.HGet(ctx, payloadKey, id).Bytes()
		if err == redis.Nil {
			return replay.Command{}, false, fmt.Errorf("replay record %s: payload missing", id)
		}
		if err != nil {
			return replay.Command{}, false, fmt.Errorf("reading replay record %s: %w", id, err)
		}

		cmd, err := replay.DecodeCommand(data)
		if err != nil {
			return replay.Command{}, false, fmt.Errorf("replay record %s: %w", id, err)
		}

		if err := q.client.HDel(ctx, payloadKey, id).Err(); err != nil {
			return replay.Command{}, false, fmt.Errorf("removing replay record %s: %w", id, err)
		}
		return cmd, true, nil
	}
}

// Close closes the Redis connection.
func (q *Queue) Close(ctx context.Context) error {
	return q.client.Close()
}
