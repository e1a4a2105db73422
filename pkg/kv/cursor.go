package kv

import "database/sql"

// Cursor streams the rows of one table in unspecified order. It is
// finite, forward-only and single-pass: it cannot be restarted.
//
// Resource ownership: a cursor holds its pooled connection for its
// entire lifetime, including while the caller processes rows between
// Next calls — a slow consumer holds a pool slot. The lease is released
// when the stream is exhausted or on Close; abandoning a cursor without
// closing it leaks a slot, so callers must defer Close.
type Cursor struct {
	rows *sql.Rows
	conn *Conn
	pool *Pool

	key    string
	value  []byte
	err    error
	closed bool
}

// Next advances to the next row, reporting whether one is available.
// It returns false at the end of the stream or on error, releasing the
// cursor's connection either way; check Err after the loop.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.Close()
		return false
	}
	var key string
	var value []byte
	if err := c.rows.Scan(&key, &value); err != nil {
		c.err = err
		c.Close()
		return false
	}
	// An empty blob scans as nil; normalize so Row never yields nil.
	if value == nil {
		value = []byte{}
	}
	c.key, c.value = key, value
	return true
}

// Row returns the current row. Valid only after a true Next.
func (c *Cursor) Row() (key string, value []byte) {
	return c.key, c.value
}

// Err returns the first error encountered while streaming, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor's connection back to the pool. Idempotent;
// safe to call after exhaustion.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	c.pool.Release(c.conn)
	c.conn = nil
	return err
}
