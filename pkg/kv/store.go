package kv

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarrydb/quarry/pkg/telemetry"
)

// Store is the root of the storage layer: it owns the connection pool
// and the dialect, and hands out tables and cells. Connection
// parameters are fixed at construction; there are no per-call overrides.
type Store struct {
	cfg     Config
	dialect dialect
	db      *sql.DB
	pool    *Pool
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures optional store collaborators.
type Option func(*Store)

// WithLogger attaches a structured logger to the store.
func WithLogger(log *telemetry.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics attaches a metrics collector to the store.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithTracer attaches a tracer; store operations are then wrapped in
// spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// New validates the configuration and creates a store. No connection is
// established until Init.
func New(cfg Config, opts ...Option) (*Store, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	s := &Store{
		cfg:     cfg,
		dialect: d,
		log:     telemetry.Nop(),
		metrics: telemetry.NopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init opens the database and builds the pool. The first real
// connections are still established lazily, on first pool miss.
func (s *Store) Init(ctx context.Context) error {
	db, err := sql.Open(s.dialect.driverName(), s.dialect.dsn(s.cfg))
	if err != nil {
		return connectionError("open database", err)
	}
	// The pool bounds concurrency itself; database/sql only dials.
	db.SetMaxOpenConns(0)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return connectionError("ping database", err)
	}

	s.db = db
	s.pool = newPool(db, s.cfg.PoolSize, s.log.NewComponentLogger("pool"), s.metrics)
	s.log.WithField("driver", s.cfg.Driver).
		WithField("pool_size", s.cfg.PoolSize).
		Info("store initialized")
	return nil
}

// Close releases all idle connections and shuts the database down.
func (s *Store) Close() error {
	if s.pool != nil {
		_ = s.pool.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return connectionError("health check", fmt.Errorf("store not initialized"))
	}
	if err := s.db.PingContext(ctx); err != nil {
		return connectionError("health check", err)
	}
	return nil
}

// Pool exposes the store's connection pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// instrument wraps one operation with a span, a duration metric and a
// debug log line. The returned func must be called with the operation's
// final error.
func (s *Store) instrument(ctx context.Context, op, table string) (context.Context, func(error)) {
	start := time.Now()
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartSpan(ctx, op, attribute.String("kv.table", table))
	}
	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			if IsMissingKey(err) {
				status = "missing"
			}
		}
		s.metrics.RecordOp(op, status, time.Since(start))
		if span != nil {
			telemetry.RecordError(span, err)
			span.End()
		}
		s.log.WithField("op", op).
			WithField("table", table).
			WithField("status", status).
			Debug("operation finished")
	}
}
