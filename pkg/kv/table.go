package kv

import (
	"context"
)

// Table is a handle to a named collection of key->value rows. The value
// type is fixed by the codec the table was opened with; the storage
// engine itself never interprets stored bytes. Handles are cheap and
// safe for concurrent use; every operation is a fresh round-trip.
type Table[V any] struct {
	store  *Store
	name   string
	quoted string
	codec  Codec[V]
}

// OpenTable ensures the backing table exists and returns a handle to
// it. Opening the same name repeatedly is idempotent and always yields
// a usable handle to the same logical table.
func OpenTable[V any](ctx context.Context, s *Store, name string, codec Codec[V]) (*Table[V], error) {
	quoted, err := quoteTable(name)
	if err != nil {
		return nil, err
	}
	err = s.pool.WithConn(ctx, func(conn *Conn) error {
		return s.ensureTable(ctx, conn, quoted)
	})
	if err != nil {
		return nil, err
	}
	return &Table[V]{store: s, name: name, quoted: quoted, codec: codec}, nil
}

// Name returns the table's logical name.
func (t *Table[V]) Name() string { return t.name }

// Get reads and decodes the value stored under key. It fails with a
// missing-key error (see IsMissingKey) when no row exists.
func (t *Table[V]) Get(ctx context.Context, key string) (V, error) {
	var value V
	ctx, done := t.store.instrument(ctx, "table.get", t.name)
	err := t.store.pool.WithConn(ctx, func(conn *Conn) error {
		blob, err := t.store.selectValue(ctx, conn, t.quoted, t.name, key)
		if err != nil {
			return err
		}
		value, err = t.codec.Decode(blob)
		if err != nil {
			return malformedRow("get", t.name, key, err)
		}
		return nil
	})
	done(err)
	return value, err
}

// Put encodes value and inserts or overwrites the row under key.
// Last writer wins on concurrent puts to the same key.
func (t *Table[V]) Put(ctx context.Context, key string, value V) error {
	ctx, done := t.store.instrument(ctx, "table.put", t.name)
	blob, err := t.codec.Encode(value)
	if err == nil {
		err = t.store.pool.WithConn(ctx, func(conn *Conn) error {
			return t.store.upsert(ctx, conn, t.quoted, key, blob)
		})
	}
	done(err)
	return err
}

// PutIfAbsent stores value under key only when no row exists; an
// existing value is left untouched. The check and insert are one
// atomic statement, so of several concurrent first writers exactly one
// wins and the others are silently discarded.
func (t *Table[V]) PutIfAbsent(ctx context.Context, key string, value V) error {
	ctx, done := t.store.instrument(ctx, "table.put_if_absent", t.name)
	blob, err := t.codec.Encode(value)
	if err == nil {
		err = t.store.pool.WithConn(ctx, func(conn *Conn) error {
			_, err := t.store.insertIfAbsent(ctx, conn, t.quoted, key, blob)
			return err
		})
	}
	done(err)
	return err
}

// Remove deletes the row under key. Removing an absent key is a no-op.
func (t *Table[V]) Remove(ctx context.Context, key string) error {
	ctx, done := t.store.instrument(ctx, "table.remove", t.name)
	err := t.store.pool.WithConn(ctx, func(conn *Conn) error {
		return t.store.deleteKey(ctx, conn, t.quoted, key)
	})
	done(err)
	return err
}

// Size returns the number of rows currently in the table.
func (t *Table[V]) Size(ctx context.Context) (int64, error) {
	var n int64
	ctx, done := t.store.instrument(ctx, "table.size", t.name)
	err := t.store.pool.WithConn(ctx, func(conn *Conn) error {
		var err error
		n, err = t.store.countRows(ctx, conn, t.quoted)
		return err
	})
	done(err)
	return n, err
}

// Cursor streams the table's raw rows. The caller owns the cursor and
// must close it; see Cursor for the connection-lease contract.
func (t *Table[V]) Cursor(ctx context.Context) (*Cursor, error) {
	return t.store.openCursor(ctx, t.quoted)
}

// ForEach invokes visitor once per row, decoding each value. Iteration
// order is unspecified; the visitor's effects must be safe against any
// permutation. A visitor error stops the iteration and is returned.
func (t *Table[V]) ForEach(ctx context.Context, visitor func(key string, value V) error) error {
	ctx, done := t.store.instrument(ctx, "table.for_each", t.name)
	err := t.visit(ctx, visitor)
	done(err)
	return err
}

func (t *Table[V]) visit(ctx context.Context, visitor func(key string, value V) error) error {
	cur, err := t.Cursor(ctx)
	if err != nil {
		return err
	}
	defer cur.Close()
	for cur.Next() {
		key, blob := cur.Row()
		value, err := t.codec.Decode(blob)
		if err != nil {
			return malformedRow("for_each", t.name, key, err)
		}
		if err := visitor(key, value); err != nil {
			return err
		}
	}
	return cur.Err()
}

// Fold threads combine sequentially over every row, starting from
// initial. The combine step may itself perform I/O; its result strictly
// determines the next accumulator and no two invocations run
// concurrently within one fold. The final accumulator is returned.
func Fold[V, A any](ctx context.Context, t *Table[V], initial A, combine func(ctx context.Context, key string, value V, acc A) (A, error)) (A, error) {
	acc := initial
	ctx, done := t.store.instrument(ctx, "table.fold", t.name)
	err := t.visit(ctx, func(key string, value V) error {
		var err error
		acc, err = combine(ctx, key, value, acc)
		return err
	})
	done(err)
	return acc, err
}
