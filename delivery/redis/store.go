package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookrelay/hookrelay/delivery"
)

/* Redis implementation of delivery.Store.
 * One JSON value per delivery under delivery:{id}; SET NX makes the
 * insert atomic create-or-fail, which is the idempotency enforcement
 * point under concurrent redelivery.
 */

const keyPrefix = "delivery"

type Store struct {
	client *redis.Client
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

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client (shared across adapters).
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

type record struct {
	ID             string    `json:"id"`
	EventName      string    `json:"event_name"`
	ReceivedAt     time.Time `json:"received_at"`
	Payload        []byte    `json:"payload"`
	InstallationID int64     `json:"installation_id,omitempty"`
}

// Save inserts the delivery with SET NX so a second insert of the same
// id fails with delivery.ErrAlreadyProcessed instead of overwriting.
func (s *Store) Save(ctx context.Context, d delivery.Delivery) error {
	data, err := json.Marshal(record{
		ID:             d.ID.String(),
		EventName:      d.EventName.String(),
		ReceivedAt:     d.ReceivedAt,
		Payload:        d.Payload,
		InstallationID: d.InstallationID,
	})
	if err != nil {
		return fmt.Errorf("marshaling delivery: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(d.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing delivery: %w", err)
	}
	if !ok {
		return delivery.ErrAlreadyProcessed
	}
	return nil
}

// Get returns the delivery and true when the id was already processed.
func (s *Store) Get(ctx context.Context, id delivery.ID) (delivery.Delivery, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return delivery.Delivery{}, false, nil
	}
	if err != nil {
		return delivery.Delivery{}, false, fmt.Errorf("getting delivery: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return delivery.Delivery{}, false, fmt.Errorf("unmarshaling delivery %s: %w", id, err)
	}

	return delivery.Delivery{
		ID:             delivery.ID(rec.ID),
		EventName:      delivery.EventName(rec.EventName),
		ReceivedAt:     rec.ReceivedAt,
		Payload:        rec.Payload,
		InstallationID: rec.InstallationID,
	}, true, nil
}

// Close closes the Redis connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *Store) key(id delivery.ID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, id)
}
