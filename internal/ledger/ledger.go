// Package ledger provides an append-only history of lamplighter invocations.
// It records pairings and command outcomes for later inspection.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of invocation recorded
type Kind string

const (
	KindPairing Kind = "pairing"
	KindCommand Kind = "command"
)

// Entry is a single recorded invocation
type Entry struct {
	ID        string
	Kind      Kind
	Target    string
	Outcome   string
	Detail    string
	Timestamp time.Time
}

// Recorder is anything that can append entries
type Recorder interface {
	Append(ctx context.Context, e Entry) error
}

// Nop discards every entry. Used when the ledger is disabled.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

// Ledger stores entries in SQLite
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append adds a new entry. ID and Timestamp are filled in when empty.
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO invocations (id, kind, target, outcome, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), e.Target, e.Outcome, e.Detail, e.Timestamp.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, target, outcome, detail, timestamp
		FROM invocations
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var target, detail sql.NullString
		var ts int64

		if err := rows.Scan(&e.ID, &kind, &target, &e.Outcome, &detail, &ts); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Target = target.String
		e.Detail = detail.String
		e.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixNano()
	result, err := l.db.ExecContext(ctx, `DELETE FROM invocations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
