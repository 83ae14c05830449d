package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenStore = (*TokenRepo)(nil)

// TokenRepo is the SQLite implementation of the TokenStore port. It owns one
// row of the credentials table, named by service.
type TokenRepo struct {
	db      *DB
	service string
	box     *secretBox // nil when no key is configured
	now     func() time.Time
}

// NewTokenRepo creates a TokenRepo for service. A nil key disables storage:
// Save and Load return ErrEncryptionKeyNotSet while Clear still works.
// Otherwise key must be 16, 24 or 32 bytes.
func NewTokenRepo(db *DB, service string, key []byte) (*TokenRepo, error) {
	r := &TokenRepo{db: db, service: service, now: time.Now}
	if key == nil {
		return r, nil
	}
	box, err := newSecretBox(key)
	if err != nil {
		return nil, err
	}
	r.box = box
	return r, nil
}

// Save encrypts and stores token, replacing any previous one.
func (r *TokenRepo) Save(ctx context.Context, token string) error {
	if r.box == nil {
		return driven.ErrEncryptionKeyNotSet
	}
	sealed, err := r.box.seal(token, r.service)
	if err != nil {
		return err
	}

	const query = `INSERT INTO credentials (service, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	savedAt := r.now().UTC().Format(time.RFC3339)
	if _, err := r.db.Writer.ExecContext(ctx, query, r.service, sealed, savedAt); err != nil {
		return fmt.Errorf("save %s token: %w", r.service, err)
	}
	return nil
}

// Load returns the stored token, or nil when none is stored.
func (r *TokenRepo) Load(ctx context.Context) (*driven.StoredToken, error) {
	if r.box == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value, updated_at FROM credentials WHERE service = ?`
	var sealed, savedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, r.service).Scan(&sealed, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", r.service, err)
	}

	value, err := r.box.open(sealed, r.service)
	if err != nil {
		return nil, fmt.Errorf("load %s token: %w", r.service, err)
	}

	stored := &driven.StoredToken{Value: value}
	// Rows written by the column default carry SQLite's own timestamp format.
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, savedAt); err == nil {
			stored.SavedAt = t.UTC()
			break
		}
	}
	return stored, nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (r *TokenRepo) Clear(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, r.service); err != nil {
		return fmt.Errorf("clear %s token: %w", r.service, err)
	}
	return nil
}
