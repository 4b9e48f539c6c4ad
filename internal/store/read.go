package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadEntries returns every record whose name starts with prefix, ordered
// by name. Rows that cannot be decoded are skipped and reported as
// warnings of the form `entry "<name>": <reason>`.
func (s *Store) ReadEntries(ctx context.Context, prefix string) ([]Record, []string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, value, flags
		FROM entries
		WHERE substr(name, 1, length(?)) = ?
		ORDER BY name COLLATE BINARY ASC
	`, prefix, prefix)
	if err != nil {
		return nil, nil, &PersistentError{Path: s.path, Op: "load", Err: fmt.Errorf("query entries: %w", err)}
	}
	defer rows.Close()

	records := []Record{}
	var warnings []string
	for rows.Next() {
		var (
			name, kind, data string
			flags            uint32
		)
		if err := rows.Scan(&name, &kind, &data, &flags); err != nil {
			return nil, nil, &PersistentError{Path: s.path, Op: "load", Err: fmt.Errorf("scan entry: %w", err)}
		}
		v, err := unmarshalValue(kind, data)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("entry %q: %v", name, err))
			continue
		}
		records = append(records, Record{Name: name, Value: v, Flags: flags})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &PersistentError{Path: s.path, Op: "load", Err: fmt.Errorf("iterate entries: %w", err)}
	}

	return records, warnings, nil
}

// ReadMeta returns a snapshot attribute, or "" when it was never written.
func (s *Store) ReadMeta(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &PersistentError{Path: s.path, Op: "load", Err: fmt.Errorf("read meta %q: %w", key, err)}
	}
	return val, nil
}
