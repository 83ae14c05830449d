package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RequirementStore = (*RequirementRepo)(nil)

const requirementColumns = `doc_token, comment_id, summary, author, status, last_command, revision, created_at, updated_at`

// RequirementRepo is the SQLite implementation of the RequirementStore port
// interface. Each row tracks one comment of one document.
type RequirementRepo struct {
	db *DB
}

// NewRequirementRepo creates a new RequirementRepo backed by the given DB.
func NewRequirementRepo(db *DB) *RequirementRepo {
	return &RequirementRepo{db: db}
}

// Apply reads the current row, computes the next state and writes it back in
// one transaction on the single writer connection.
func (r *RequirementRepo) Apply(ctx context.Context, change model.RequirementChange) (*model.Requirement, error) {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply %s %s: %w", change.Command, change.CommentID, err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `SELECT ` + requirementColumns + ` FROM requirements WHERE doc_token = ? AND comment_id = ?`
	existing, err := scanRequirement(tx.QueryRowContext(ctx, selectQuery, change.DocToken, change.CommentID))
	if err != nil {
		return nil, fmt.Errorf("load requirement %s: %w", change.CommentID, err)
	}

	next := model.NextRequirement(existing, change)

	const upsertQuery = `
		INSERT INTO requirements (` + requirementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (doc_token, comment_id) DO UPDATE SET
			summary      = excluded.summary,
			author       = excluded.author,
			status       = excluded.status,
			last_command = excluded.last_command,
			revision     = excluded.revision,
			updated_at   = excluded.updated_at`

	_, err = tx.ExecContext(ctx, upsertQuery,
		next.DocToken,
		next.CommentID,
		next.Summary,
		next.Author,
		string(next.Status),
		string(next.LastCommand),
		next.Revision,
		formatTime(next.CreatedAt),
		formatTime(next.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("write requirement %s: %w", change.CommentID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit requirement %s: %w", change.CommentID, err)
	}

	return &next, nil
}

// Get returns the requirement for a comment. Returns (nil, nil) if it does not exist.
func (r *RequirementRepo) Get(ctx context.Context, docToken, commentID string) (*model.Requirement, error) {
	const query = `SELECT ` + requirementColumns + ` FROM requirements WHERE doc_token = ? AND comment_id = ?`

	req, err := scanRequirement(r.db.Reader.QueryRowContext(ctx, query, docToken, commentID))
	if err != nil {
		return nil, fmt.Errorf("get requirement %s: %w", commentID, err)
	}
	return req, nil
}

// ListByDocument returns every requirement of a document in insertion order.
func (r *RequirementRepo) ListByDocument(ctx context.Context, docToken string) ([]model.Requirement, error) {
	const query = `SELECT ` + requirementColumns + ` FROM requirements WHERE doc_token = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, docToken)
	if err != nil {
		return nil, fmt.Errorf("list requirements for %s: %w", docToken, err)
	}
	defer rows.Close()

	reqs := []model.Requirement{}
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("list requirements for %s: %w", docToken, err)
		}
		reqs = append(reqs, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}

	return reqs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRequirement scans one row. It returns (nil, nil) for sql.ErrNoRows.
func scanRequirement(row rowScanner) (*model.Requirement, error) {
	var (
		req                  model.Requirement
		status, lastCommand  string
		createdAt, updatedAt string
	)

	err := row.Scan(
		&req.DocToken,
		&req.CommentID,
		&req.Summary,
		&req.Author,
		&status,
		&lastCommand,
		&req.Revision,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan requirement: %w", err)
	}

	req.Status = model.RequirementStatus(status)
	req.LastCommand = model.CommandType(lastCommand)

	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &req, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a datetime string from SQLite in the formats this package
// writes and the ones SQLite's CURRENT_TIMESTAMP produces.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
