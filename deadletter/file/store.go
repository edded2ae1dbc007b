package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay/deadletter"
	"github.com/hookrelay/hookrelay/fault"
	"github.com/hookrelay/hookrelay/replay"
)

/* File-based reference adapter for the dead-letter store. One JSON file
 * per item, named by the dlq- prefixed, time-ordered item id, so a
 * reverse-sorted directory listing is the most-recent-first view.
 */

const recordSuffix = ".json"

type Store struct {
	dir   string
	clock func() time.Time

	// mu serializes the read+delete sequences of Requeue and Delete.
	mu sync.Mutex
}

// NewStore creates the quarantine directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dead-letter directory: %w", err)
	}
	return &Store{dir: dir, clock: time.Now}, nil
}

// MoveToDeadLetter durably quarantines the command.
func (s *Store) MoveToDeadLetter(ctx context.Context, cmd replay.Command, reason string, lastErr error) (deadletter.Item, error) {
	if err := ctx.Err(); err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed, err)
	}

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

	f, err := os.OpenFile(s.path(item.ID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed,
			fmt.Errorf("creating dead-letter record %s: %w", item.ID, err))
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed,
			fmt.Errorf("writing dead-letter record %s: %w", item.ID, err))
	}
	if err := f.Sync(); err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterWriteFailed,
			fmt.Errorf("syncing dead-letter record %s: %w", item.ID, err))
	}
	return item, nil
}

// GetAll lists items most-recent-failure-first.
func (s *Store) GetAll(ctx context.Context) ([]deadletter.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
	}

	ids, err := s.ids()
	if err != nil {
		return nil, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
	}

	// Ids embed the failure timestamp, so reverse order is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	items := make([]deadletter.Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.read(id)
		if err != nil {
			return nil, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// GetByID returns one item.
func (s *Store) GetByID(ctx context.Context, id string) (deadletter.Item, error) {
	if err := ctx.Err(); err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
	}

	item, err := s.read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return deadletter.Item{}, fault.New(fault.CodeDeadLetterNotFound)
	}
	if err != nil {
		return deadletter.Item{}, fault.Wrap(fault.CodeDeadLetterReadFailed, err)
	}
	return item, nil
}

// Requeue removes the item and returns a fresh command with attempt 0.
func (s *Store) Requeue(ctx context.Context, id string) (replay.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.read(id)
	if errors.Is(err, fs.ErrNotExist) {
		return replay.Command{}, fault.New(fault.CodeDeadLetterNotFound)
	}
	if err != nil {
		return replay.Command{}, fault.Wrap(fault.CodeDeadLetterRequeueFailed, err)
	}

	if err := os.Remove(s.path(id)); err != nil {
		return replay.Command{}, fault.Wrap(fault.CodeDeadLetterRequeueFailed,
			fmt.Errorf("removing dead-letter record %s: %w", id, err))
	}
	return item.Requeued(), nil
}

// Delete permanently discards the item.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fault.New(fault.CodeDeadLetterNotFound)
	}
	if err != nil {
		return fault.Wrap(fault.CodeDeadLetterDeleteFailed,
			fmt.Errorf("removing dead-letter record %s: %w", id, err))
	}
	return nil
}

func (s *Store) read(id string) (deadletter.Item, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return deadletter.Item{}, err
	}
	item, err := deadletter.DecodeItem(data)
	if err != nil {
		return deadletter.Item{}, fmt.Errorf("dead-letter record %s: %w", id, err)
	}
	return item, nil
}

func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing dead-letter directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, deadletter.IDPrefix) || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordSuffix))
	}
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+recordSuffix)
}
