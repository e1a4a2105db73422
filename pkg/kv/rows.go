package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Row access primitives. Each issues a single parameterized statement on
// a borrowed connection; table names are validated and interpolated
// because they cannot be bound as parameters.

// ensureTable issues a conditional create. Idempotent: creating a table
// that already exists with the expected shape is a no-op. The value
// column is NOT NULL so a partial (key, no value) row cannot exist.
func (s *Store) ensureTable(ctx context.Context, conn *Conn, quoted string) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value %s NOT NULL)",
		quoted, s.dialect.blobType(),
	)
	if _, err := conn.sc.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", quoted, err)
	}
	return nil
}

// normalizeBlob maps a nil encoding to the empty blob. database/sql
// binds a nil []byte as SQL NULL, which the NOT NULL value column
// rejects; an absent encoding and an empty one store identically.
func normalizeBlob(blob []byte) []byte {
	if blob == nil {
		return []byte{}
	}
	return blob
}

// upsert inserts a row or overwrites the value of an existing row with
// the same key. Single statement, atomic at the row level.
func (s *Store) upsert(ctx context.Context, conn *Conn, quoted, key string, blob []byte) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES (%s, %s) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		quoted, s.dialect.placeholder(1), s.dialect.placeholder(2),
	)
	if _, err := conn.sc.ExecContext(ctx, stmt, key, normalizeBlob(blob)); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", quoted, err)
	}
	return nil
}

// insertIfAbsent atomically inserts the row only when no row with that
// key exists, reporting whether the insert happened. Concurrent first
// writers race inside the database; exactly one wins.
func (s *Store) insertIfAbsent(ctx context.Context, conn *Conn, quoted, key string, blob []byte) (bool, error) {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES (%s, %s) ON CONFLICT (key) DO NOTHING",
		quoted, s.dialect.placeholder(1), s.dialect.placeholder(2),
	)
	res, err := conn.sc.ExecContext(ctx, stmt, key, normalizeBlob(blob))
	if err != nil {
		return false, fmt.Errorf("failed conditional insert into %s: %w", quoted, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// selectValue performs a point lookup, returning at most one row's value.
func (s *Store) selectValue(ctx context.Context, conn *Conn, quoted, table, key string) ([]byte, error) {
	stmt := fmt.Sprintf("SELECT value FROM %s WHERE key = %s", quoted, s.dialect.placeholder(1))
	var blob []byte
	err := conn.sc.QueryRowContext(ctx, stmt, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missingKey("select", table, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", quoted, err)
	}
	// Drivers scan an empty blob as nil; the NOT NULL column rules out
	// actual NULLs, so a nil scan is an empty value.
	return normalizeBlob(blob), nil
}

// deleteKey removes the row with that key if present. Deleting an
// absent key is a no-op.
func (s *Store) deleteKey(ctx context.Context, conn *Conn, quoted, key string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE key = %s", quoted, s.dialect.placeholder(1))
	if _, err := conn.sc.ExecContext(ctx, stmt, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", quoted, err)
	}
	return nil
}

// countRows returns the number of rows currently in the table.
func (s *Store) countRows(ctx context.Context, conn *Conn, quoted string) (int64, error) {
	var n int64
	stmt := "SELECT COUNT(*) FROM " + quoted
	if err := conn.sc.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", quoted, err)
	}
	return n, nil
}

// openCursor acquires a connection and starts streaming every row of
// the table in unspecified order. The cursor owns the connection lease
// until exhausted or closed; see Cursor.
func (s *Store) openCursor(ctx context.Context, quoted string) (*Cursor, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT key, value FROM " + quoted
	rows, err := conn.sc.QueryContext(ctx, stmt)
	if err != nil {
		s.pool.Release(conn)
		return nil, fmt.Errorf("failed to open cursor on %s: %w", quoted, err)
	}
	return &Cursor{rows: rows, conn: conn, pool: s.pool}, nil
}
