package token

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/fault"
)

/* Cache is the expiry-aware installation token cache.
 * Entries are replaced wholesale on refresh, never patched, and there
 * is no background eviction: a stale entry is lazily replaced on the
 * next Authenticate call. Concurrent misses for the same installation
 * are coalesced into one mint call per key.
 */

type Cache struct {
	minter Minter
	clock  delivery.Clock

	mu      sync.RWMutex
	entries map[int64]AccessToken
	group   singleflight.Group
}

// NewCache creates a token cache over the authorization port.
func NewCache(minter Minter, clock delivery.Clock) *Cache {
	return &Cache{
		minter:  minter,
		clock:   clock,
		entries: make(map[int64]AccessToken),
	}
}

// Authenticate returns a live token for the installation, minting and
// caching a fresh one when the cached entry is missing or expired.
func (c *Cache) Authenticate(ctx context.Context, installationID int64) (AccessToken, error) {
	if t, ok := c.lookup(installationID); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(installationID, 10), func() (any, error) {
		// A flight that queued behind the winner finds the fresh entry here.
		if t, ok := c.lookup(installationID); ok {
			return t, nil
		}
		return c.refresh(ctx, installationID)
	})
	if err != nil {
		return AccessToken{}, err
	}
	return v.(AccessToken), nil
}

func (c *Cache) lookup(installationID int64) (AccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[installationID]
	if !ok || t.IsExpired(c.clock.Now()) {
		return AccessToken{}, false
	}
	return t, true
}

func (c *Cache) refresh(ctx context.Context, installationID int64) (AccessToken, error) {
	t, err := c.minter.CreateInstallationToken(ctx, installationID)
	if err != nil {
		return AccessToken{}, fault.Wrap(fault.CodeTokenCreationFailed,
			fmt.Errorf("minting token for installation %d: %w", installationID, err))
	}
	if t.Token == "" {
		return AccessToken{}, fault.New(fault.CodeTokenNull)
	}

	c.mu.Lock()
	c.entries[installationID] = t
	c.mu.Unlock()
	return t, nil
}
