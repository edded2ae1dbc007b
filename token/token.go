package token

import (
	"context"
	"time"
)

// AccessToken is a time-boxed per-installation authorization credential.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// IsExpired reports whether the token is unusable at the given instant.
func (t AccessToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Minter is the authorization port that creates fresh installation
// tokens. How the underlying API call works is not this package's
// concern.
type Minter interface {
	CreateInstallationToken(ctx context.Context, installationID int64) (AccessToken, error)
}
