package kv

import (
	"context"
	"fmt"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "sessions", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	if err := table.Put(ctx, "u1", "alice"); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	got, err := table.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "alice" {
		t.Errorf("expected alice, got %q", got)
	}

	if err := table.Remove(ctx, "u1"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}

	if _, err := table.Get(ctx, "u1"); !IsMissingKey(err) {
		t.Errorf("expected missing-key error, got %v", err)
	}

	n, err := table.Size(ctx)
	if err != nil {
		t.Fatalf("failed to size: %v", err)
	}
	if n != 0 {
		t.Errorf("expected size 0, got %d", n)
	}
}

func TestEmptyValueRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "blank", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	if err := table.Put(ctx, "k", ""); err != nil {
		t.Fatalf("failed to put empty string: %v", err)
	}
	got, err := table.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after put of empty string failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string back, got %q", got)
	}

	// Iteration must survive rows whose value is empty.
	visited := 0
	err = table.ForEach(ctx, func(key, value string) error {
		visited++
		if value != "" {
			t.Errorf("key %s: expected empty value, got %q", key, value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("for_each over empty value failed: %v", err)
	}
	if visited != 1 {
		t.Errorf("expected 1 row visited, got %d", visited)
	}

	cur, err := table.Cursor(ctx)
	if err != nil {
		t.Fatalf("failed to open cursor: %v", err)
	}
	defer cur.Close()
	if !cur.Next() {
		t.Fatalf("cursor yielded no rows, err: %v", cur.Err())
	}
	if _, value := cur.Row(); value == nil {
		t.Error("cursor yielded a nil value for an empty blob")
	}
}

func TestNilBytesRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "rawnil", Bytes())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	// A nil slice encodes to nil; it must be stored as an empty value,
	// never as a NULL that poisons later reads.
	if err := table.Put(ctx, "k", nil); err != nil {
		t.Fatalf("failed to put nil bytes: %v", err)
	}
	got, err := table.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after put of nil bytes failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty value back, got %v", got)
	}

	if err := table.PutIfAbsent(ctx, "k2", nil); err != nil {
		t.Fatalf("failed conditional put of nil bytes: %v", err)
	}
	if _, err := table.Get(ctx, "k2"); err != nil {
		t.Fatalf("get after conditional put of nil bytes failed: %v", err)
	}
}

func TestGetAbsentKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "absent", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	_, err = table.Get(ctx, "nothing")
	if !IsMissingKey(err) {
		t.Fatalf("expected missing-key error, got %v", err)
	}
}

func TestOpenTableIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := OpenTable(ctx, store, "idem", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	if err := first.Put(ctx, "k", "v"); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	second, err := OpenTable(ctx, store, "idem", String())
	if err != nil {
		t.Fatalf("failed to reopen table: %v", err)
	}
	got, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("failed to get through second handle: %v", err)
	}
	if got != "v" {
		t.Errorf("expected v, got %q", got)
	}
}

func TestOpenTableRejectsBadName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := OpenTable(ctx, store, "no such table", String()); !IsConfig(err) {
		t.Errorf("expected config error for invalid name, got %v", err)
	}
	if _, err := OpenTable(ctx, store, `x";drop`, String()); !IsConfig(err) {
		t.Errorf("expected config error for quoted name, got %v", err)
	}
}

func TestPutIfAbsentFirstWriterWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "claims", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	if err := table.PutIfAbsent(ctx, "k", "v1"); err != nil {
		t.Fatalf("first put_if_absent failed: %v", err)
	}
	if err := table.PutIfAbsent(ctx, "k", "v2"); err != nil {
		t.Fatalf("second put_if_absent failed: %v", err)
	}

	got, err := table.Get(ctx, "k")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got != "v1" {
		t.Errorf("expected v1 to survive, got %q", got)
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "noop", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	if err := table.Remove(ctx, "never-there"); err != nil {
		t.Errorf("expected no error removing absent key, got %v", err)
	}
}

func TestSizeTracksPutsAndRemoves(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "sizes", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := table.Put(ctx, key, "v"); err != nil {
			t.Fatalf("failed to put %s: %v", key, err)
		}
	}
	// Overwriting must not change the count.
	if err := table.Put(ctx, "k0", "v2"); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}
	if err := table.Remove(ctx, "k1"); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}

	n, err := table.Size(ctx)
	if err != nil {
		t.Fatalf("failed to size: %v", err)
	}
	if n != 4 {
		t.Errorf("expected size 4, got %d", n)
	}
}

func TestForEachVisitsEveryRowOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "visits", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if err := table.Put(ctx, k, v); err != nil {
			t.Fatalf("failed to put %s: %v", k, err)
		}
	}

	seen := map[string]string{}
	err = table.ForEach(ctx, func(key, value string) error {
		if _, dup := seen[key]; dup {
			t.Errorf("key %s visited twice", key)
		}
		seen[key] = value
		return nil
	})
	if err != nil {
		t.Fatalf("for_each failed: %v", err)
	}

	if len(seen) != len(want) {
		t.Fatalf("expected %d rows visited, got %d", len(want), len(seen))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Errorf("key %s: expected %q, got %q", k, v, seen[k])
		}
	}
}

func TestForEachStopsOnVisitorError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "stopping", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := table.Put(ctx, fmt.Sprintf("k%d", i), "v"); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
	}

	wantErr := fmt.Errorf("stop here")
	calls := 0
	err = table.ForEach(ctx, func(string, string) error {
		calls++
		return wantErr
	})
	if err == nil || err.Error() != wantErr.Error() {
		t.Fatalf("expected visitor error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected visitor called once, got %d", calls)
	}

	// The abandoned cursor's slot must be back: the table stays usable.
	if _, err := table.Size(ctx); err != nil {
		t.Errorf("table unusable after aborted iteration: %v", err)
	}
}

func TestDecodeFailureIsMalformedRow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	raw, err := OpenTable(ctx, store, "mixed", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}
	if err := raw.Put(ctx, "k", "{not json"); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	typed, err := OpenTable(ctx, store, "mixed", JSONCodec[int]{})
	if err != nil {
		t.Fatalf("failed to reopen table: %v", err)
	}
	if _, err := typed.Get(ctx, "k"); !IsMalformedRow(err) {
		t.Errorf("expected malformed-row error from get, got %v", err)
	}
	err = typed.ForEach(ctx, func(string, int) error { return nil })
	if !IsMalformedRow(err) {
		t.Errorf("expected malformed-row error from for_each, got %v", err)
	}
}

func TestFoldAccumulates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "totals", JSONCodec[int]{})
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	const rows = 10
	want := 0
	for i := 1; i <= rows; i++ {
		if err := table.Put(ctx, fmt.Sprintf("k%d", i), i); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
		want += i
	}

	calls := 0
	sum, err := Fold(ctx, table, 0, func(_ context.Context, _ string, value, acc int) (int, error) {
		calls++
		return acc + value, nil
	})
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if calls != rows {
		t.Errorf("expected combine invoked %d times, got %d", rows, calls)
	}
	if sum != want {
		t.Errorf("expected sum %d, got %d", want, sum)
	}
}

func TestFoldEmptyTable(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "empty", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	got, err := Fold(ctx, table, "seed", func(_ context.Context, _, _, acc string) (string, error) {
		t.Error("combine must not run for an empty table")
		return acc, nil
	})
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if got != "seed" {
		t.Errorf("expected initial accumulator back, got %q", got)
	}
}
