package store

import (
	"context"
	"fmt"

	"github.com/roach88/ntcore/internal/value"
)

// Record is one persisted entry.
type Record struct {
	Name  string
	Value value.Value
	Flags uint32
}

// WriteEntries replaces the file content with records in one transaction.
// Unassigned values are skipped; there is nothing to restore from them.
func (s *Store) WriteEntries(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistentError{Path: s.path, Op: "save", Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return &PersistentError{Path: s.path, Op: "save", Err: fmt.Errorf("clear entries: %w", err)}
	}

	for _, rec := range records {
		if rec.Value.IsUnassigned() {
			continue
		}
		data, err := marshalValue(rec.Value)
		if err != nil {
			return fmt.Errorf("save entry %q: %w", rec.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entries (name, kind, value, flags)
			VALUES (?, ?, ?, ?)
		`,
			rec.Name,
			rec.Value.Kind().String(),
			data,
			rec.Flags,
		)
		if err != nil {
			return &PersistentError{Path: s.path, Op: "save", Err: fmt.Errorf("insert %q: %w", rec.Name, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistentError{Path: s.path, Op: "save", Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// WriteMeta stores a snapshot attribute such as the saving identity.
func (s *Store) WriteMeta(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshot_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, val)
	if err != nil {
		return &PersistentError{Path: s.path, Op: "save", Err: fmt.Errorf("write meta %q: %w", key, err)}
	}
	return nil
}
