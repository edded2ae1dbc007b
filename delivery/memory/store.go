package memory

import (
	"context"
	"sync"

	"github.com/hookrelay/hookrelay/delivery"
)

/* In-memory implementation of delivery.Store for tests and local
 * development. The mutex-guarded map gives the same atomic
 * create-or-fail insert semantics the durable backends provide.
 */

type Store struct {
	mu         sync.RWMutex
	deliveries map[delivery.ID]delivery.Delivery
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		deliveries: make(map[delivery.ID]delivery.Delivery),
	}
}

// Get returns the delivery and true when the id is present.
func (s *Store) Get(ctx context.Context, id delivery.ID) (delivery.Delivery, bool, error) {
	if err := ctx.Err(); err != nil {
		return delivery.Delivery{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	return d, ok, nil
}

// Save inserts the delivery, failing with ErrAlreadyProcessed when a
// row for the id already exists.
func (s *Store) Save(ctx context.Context, d delivery.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; ok {
		return delivery.ErrAlreadyProcessed
	}
	s.deliveries[d.ID] = d
	return nil
}

// Len reports the number of stored deliveries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deliveries)
}
