package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SQLStore persists entries through database/sql. Queries use `?`
// placeholders and portable column types; it is exercised against SQLite.
type SQLStore struct {
	db     *sql.DB
	table  string
	mu     sync.Mutex
	schema bool
}

// SQLOption customizes a SQLStore.
type SQLOption func(*SQLStore)

// WithTablePrefix prefixes the transitions table name.
func WithTablePrefix(prefix string) SQLOption {
	return func(s *SQLStore) {
		s.table = strings.TrimSpace(prefix) + "case_transitions"
	}
}

// NewSQLStore builds a store on db. The table is created on first use.
func NewSQLStore(db *sql.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{db: db, table: "case_transitions"}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return ErrStoreNotConfigured
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (case_instance_id, sequence, case_definition, execution_id, parent_id, activity_id, kind, transition, from_state, to_state, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err := s.db.ExecContext(ctx, q,
		entry.CaseInstanceID,
		entry.Sequence,
		entry.CaseDefinition,
		entry.ExecutionID,
		entry.ParentID,
		entry.ActivityID,
		entry.Kind,
		entry.Transition,
		entry.From,
		entry.To,
		entry.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append transition %d of %s: %w", entry.Sequence, entry.CaseInstanceID, err)
	}
	return nil
}

// List returns the entries of one case instance ordered by sequence.
func (s *SQLStore) List(ctx context.Context, caseInstanceID string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreNotConfigured
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT case_instance_id, sequence, case_definition, execution_id, parent_id, activity_id, kind, transition, from_state, to_state, occurred_at FROM %s WHERE case_instance_id = ? ORDER BY sequence`, s.table)
	rows, err := s.db.QueryContext(ctx, q, strings.TrimSpace(caseInstanceID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var occurredAt string
		if err := rows.Scan(
			&e.CaseInstanceID,
			&e.Sequence,
			&e.CaseDefinition,
			&e.ExecutionID,
			&e.ParentID,
			&e.ActivityID,
			&e.Kind,
			&e.Transition,
			&e.From,
			&e.To,
			&occurredAt,
		); err != nil {
			return nil, err
		}
		if occurredAt != "" {
			if ts, parseErr := time.Parse(time.RFC3339Nano, occurredAt); parseErr == nil {
				e.OccurredAt = ts
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, caseInstanceID string) error {
	if s == nil || s.db == nil {
		return ErrStoreNotConfigured
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE case_instance_id = ?`, s.table), strings.TrimSpace(caseInstanceID))
	return err
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	case_instance_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	case_definition TEXT NOT NULL,
	execution_id TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	activity_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	transition TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	PRIMARY KEY (case_instance_id, sequence)
)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	s.schema = true
	return nil
}
