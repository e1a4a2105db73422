package kv

import (
	"context"
	"fmt"
)

// Cell is a handle to a single named, store-scoped persistent value:
// one row in the table named by the cell's store, keyed by the cell's
// name. A cell never caches; every read and write round-trips to the
// backing table. Cell operations never delete the underlying row.
type Cell[V any] struct {
	table *Table[V]
	name  string
}

// OpenCell opens the cell named cellName in the table storeName,
// ensuring the table exists. When the row is absent at open time,
// computeDefault is invoked (at most once per open) and its value is
// persisted atomically as the row's initial value; a concurrent first
// opener's default may win instead, in which case the local default is
// discarded and the stored value governs. When the row already exists,
// computeDefault is not invoked and the stored value is kept regardless
// of what default would now be computed. computeDefault must not be nil.
func OpenCell[V any](ctx context.Context, s *Store, storeName, cellName string, codec Codec[V], computeDefault func() (V, error)) (*Cell[V], error) {
	if computeDefault == nil {
		return nil, configError("open cell", fmt.Errorf("computeDefault must not be nil"))
	}
	t, err := OpenTable[V](ctx, s, storeName, codec)
	if err != nil {
		return nil, err
	}
	ctx, done := s.instrument(ctx, "cell.open", storeName)
	err = s.pool.WithConn(ctx, func(conn *Conn) error {
		_, err := s.selectValue(ctx, conn, t.quoted, t.name, cellName)
		if err == nil {
			return nil
		}
		if !IsMissingKey(err) {
			return err
		}
		value, err := computeDefault()
		if err != nil {
			return fmt.Errorf("failed to compute default for cell %s: %w", cellName, err)
		}
		blob, err := t.codec.Encode(value)
		if err != nil {
			return err
		}
		_, err = s.insertIfAbsent(ctx, conn, t.quoted, cellName, blob)
		return err
	})
	done(err)
	if err != nil {
		return nil, err
	}
	return &Cell[V]{table: t, name: cellName}, nil
}

// Name returns the cell's name within its store.
func (c *Cell[V]) Name() string { return c.name }

// Get reads and decodes the cell's current value. It fails with a
// missing-key error if the row was deleted out of band after creation.
func (c *Cell[V]) Get(ctx context.Context) (V, error) {
	return c.table.Get(ctx, c.name)
}

// Set overwrites the cell's value unconditionally. It upserts, so a
// write to a cell whose row disappeared out of band is persisted rather
// than silently dropped.
func (c *Cell[V]) Set(ctx context.Context, value V) error {
	return c.table.Put(ctx, c.name, value)
}
