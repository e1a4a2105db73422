package kv

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPoolBlocksWhenExhausted(t *testing.T) {
	store := setupTestStoreSize(t, 2)
	pool := store.Pool()
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("failed to acquire first connection: %v", err)
	}
	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("failed to acquire second connection: %v", err)
	}

	acquired := make(chan *Conn)
	go func() {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			t.Errorf("blocked acquire failed: %v", err)
		}
		acquired <- conn
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire succeeded while pool was exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Release(first)

	select {
	case conn := <-acquired:
		pool.Release(conn)
	case <-time.After(2 * time.Second):
		t.Fatal("third acquire did not unblock after release")
	}

	pool.Release(second)
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	store := setupTestStoreSize(t, 1)
	pool := store.Pool()

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("failed to acquire: %v", err)
	}
	defer pool.Release(held)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !IsConnection(err) {
		t.Errorf("expected connection error on expired context, got %v", err)
	}
}

func TestPoolReusesIdleConnections(t *testing.T) {
	store := setupTestStoreSize(t, 1)
	pool := store.Pool()
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("failed to acquire: %v", err)
	}
	pool.Release(first)

	second, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("failed to re-acquire: %v", err)
	}
	defer pool.Release(second)

	if second != first {
		t.Error("expected the released connection to be handed out again")
	}
}

func TestWithConnReleasesOnError(t *testing.T) {
	store := setupTestStoreSize(t, 1)
	pool := store.Pool()
	ctx := context.Background()

	wantErr := fmt.Errorf("operation failed")
	if err := pool.WithConn(ctx, func(*Conn) error { return wantErr }); err != wantErr {
		t.Fatalf("expected operation error back, got %v", err)
	}

	// The single slot must be free again.
	err := pool.WithConn(ctx, func(*Conn) error { return nil })
	if err != nil {
		t.Fatalf("pool slot not released after failed operation: %v", err)
	}
}

func TestPoolSerializesConcurrentOperations(t *testing.T) {
	store := setupTestStoreSize(t, 2)
	ctx := context.Background()

	table, err := OpenTable(ctx, store, "concurrent", String())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			key := fmt.Sprintf("w%d", i)
			if err := table.Put(ctx, key, "v"); err != nil {
				errs <- err
				return
			}
			_, err := table.Get(ctx, key)
			errs <- err
		}(i)
	}
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("worker failed: %v", err)
		}
	}

	n, err := table.Size(ctx)
	if err != nil {
		t.Fatalf("failed to size: %v", err)
	}
	if n != workers {
		t.Errorf("expected %d rows, got %d", workers, n)
	}
}
