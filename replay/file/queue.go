package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hookrelay/hookrelay/replay"
)

/* File-based reference adapter for the replay queue, meant for
 * development and single-process deployments. Each command is one
 * immutable JSON file whose name embeds a monotonically-increasing
 * timestamp plus a random disambiguator, giving approximate FIFO order
 * by filename. Production deployments should satisfy replay.Queue over
 * a proper durable queue (see the Redis adapter).
 */

const recordSuffix = ".json"

type Queue struct {
	dir string

	// mu serializes the read+delete claim so two consumers in this
	// process never dequeue the same record.
	mu sync.Mutex
}

// NewQueue creates the queue directory if needed.
func NewQueue(dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating queue directory: %w", err)
	}
	return &Queue{dir: dir}, nil
}

// Enqueue writes the command as a new record. O_EXCL makes the create
// atomic: two concurrent enqueues can never collide on one identifier.
func (q *Queue) Enqueue(ctx context.Context, cmd replay.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := replay.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%020d-%s%s", time.Now().UnixNano(), uuid.NewString(), recordSuffix)
	f, err := os.OpenFile(filepath.Join(q.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating queue record %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing queue record %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing queue record %s: %w", name, err)
	}
	return nil
}

// Dequeue claims the lexicographically-smallest pending record, reading
// and deleting it under the exclusive lock. Returns false when empty.
// A record that fails to deserialize is surfaced, never dropped.
func (q *Queue) Dequeue(ctx context.Context) (replay.Command, bool, error) {
	if err := ctx.Err(); err != nil {
		return replay.Command{}, false, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	name, ok, err := q.oldest()
	if err != nil {
		return replay.Command{}, false, err
	}
	if !ok {
		return replay.Command{}, false, nil
	}

	path := filepath.Join(q.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return replay.Command{}, false, fmt.Errorf("reading queue record %s: %w", name, err)
	}

	cmd, err := replay.DecodeCommand(data)
	if err != nil {
		return replay.Command{}, false, fmt.Errorf("queue record %s: %w", name, err)
	}

	if err := os.Remove(path); err != nil {
		return replay.Command{}, false, fmt.Errorf("removing queue record %s: %w", name, err)
	}
	return cmd, true, nil
}

func (q *Queue) oldest() (string, bool, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return "", false, fmt.Errorf("listing queue directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", false, nil
	}
	sort.Strings(names)
	return names[0], true, nil
}
