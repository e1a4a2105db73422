package kv

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/quarrydb/quarry/pkg/telemetry"
)

// Conn is an opaque handle to a live database session. A connection is
// owned by the pool while idle and lent to exactly one in-flight
// operation at a time; callers never hold one across operations.
type Conn struct {
	sc *sql.Conn
}

// Pool manages a bounded set of database connections. Connections are
// established lazily on first miss, validated for liveness on each
// checkout and silently replaced when found dead. Acquisition blocks
// when all slots are lent out until a connection is returned.
type Pool struct {
	db       *sql.DB
	capacity int
	sem      chan struct{}
	log      *telemetry.Logger
	metrics  *telemetry.Metrics

	mu     sync.Mutex
	idle   []*Conn
	closed bool
}

func newPool(db *sql.DB, capacity int, log *telemetry.Logger, metrics *telemetry.Metrics) *Pool {
	return &Pool{
		db:       db,
		capacity: capacity,
		sem:      make(chan struct{}, capacity),
		log:      log,
		metrics:  metrics,
	}
}

// Acquire borrows a connection for the duration of one operation,
// blocking while the pool is exhausted. A previously idle connection is
// ping-validated first; a dead one is discarded and replaced with a
// freshly established connection rather than surfacing an error. An
// error is returned only when no connection can be obtained at all.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, connectionError("acquire connection", ctx.Err())
	}
	p.metrics.ObservePoolWait(time.Since(start))

	for {
		conn := p.popIdle()
		if conn == nil {
			break
		}
		if err := conn.sc.PingContext(ctx); err == nil {
			p.metrics.PoolCheckout()
			return conn, nil
		}
		_ = conn.sc.Close()
		p.log.Debug("discarding dead pooled connection")
		p.metrics.PoolReplacement()
	}

	sc, err := p.db.Conn(ctx)
	if err != nil {
		<-p.sem
		p.metrics.PoolAcquireFailure()
		return nil, connectionError("establish connection", err)
	}
	p.metrics.PoolCheckout()
	return &Conn{sc: sc}, nil
}

// Release returns a borrowed connection to the idle set and wakes one
// waiter, if any.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.sc.Close()
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.metrics.PoolCheckin()
	<-p.sem
}

// WithConn runs f with a borrowed connection and guarantees release on
// every exit path, including failure of f.
func (p *Pool) WithConn(ctx context.Context, f func(*Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return f(conn)
}

// Close discards all idle connections. Connections currently lent out
// are closed as they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()
	for _, conn := range idle {
		_ = conn.sc.Close()
	}
	return nil
}

func (p *Pool) popIdle() *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.idle) == 0 {
		return nil
	}
	conn := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	return conn
}
