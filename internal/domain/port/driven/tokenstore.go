package driven

import (
	"context"
	"errors"
	"time"
)

// ErrEncryptionKeyNotSet is returned by a TokenStore when
// THREADWATCH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set THREADWATCH_SECRET_KEY")

// StoredToken is a persisted API token and the time it was saved.
type StoredToken struct {
	Value   string
	SavedAt time.Time
}

// TokenStore defines the driven port for the one API token the service
// authenticates with. Tokens are encrypted at rest.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	// Load returns nil when no token is stored.
	Load(ctx context.Context) (*StoredToken, error)
	Clear(ctx context.Context) error
}
