// Package metrics exports write and statement statistics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shrek82/jpersist/persist"
	"github.com/shrek82/jpersist/pool"
	"github.com/shrek82/jpersist/store"
)

// Metrics holds the collectors of one engine. It is a persist.Observer and
// provides a statement middleware for the store.
type Metrics struct {
	Writes            *prometheus.CounterVec
	Objects           *prometheus.CounterVec
	Rows              *prometheus.CounterVec
	WriteDuration     *prometheus.HistogramVec
	Statements        *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec
}

var _ persist.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jpersist_writes_total",
			Help: "The total number of write calls by record and result",
		}, []string{"record", "result"}),

		Objects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jpersist_objects_total",
			Help: "The total number of JSON objects written, nested ones included",
		}, []string{"record"}),

		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jpersist_rows_total",
			Help: "The total number of rows changed by committed writes",
		}, []string{"record", "op"}),

		WriteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jpersist_write_duration_seconds",
			Help:    "Time taken by a write call, transaction included",
			Buckets: prometheus.DefBuckets,
		}, []string{"record"}),

		Statements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jpersist_statements_total",
			Help: "The total number of SQL statements by operation, table and result",
		}, []string{"op", "table", "result"}),

		StatementDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jpersist_statement_duration_seconds",
			Help:    "Time taken by a single SQL statement",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// ObserveWrite records the outcome of one write call.
func (m *Metrics) ObserveWrite(s persist.Stats) {
	m.WriteDuration.WithLabelValues(s.Record).Observe(s.Duration.Seconds())
	if s.Err != nil {
		m.Writes.WithLabelValues(s.Record, "error").Inc()
		return
	}
	m.Writes.WithLabelValues(s.Record, "ok").Inc()
	m.Objects.WithLabelValues(s.Record).Add(float64(s.Objects))
	m.Rows.WithLabelValues(s.Record, "inserted").Add(float64(s.Inserted))
	m.Rows.WithLabelValues(s.Record, "updated").Add(float64(s.Updated))
	m.Rows.WithLabelValues(s.Record, "deleted").Add(float64(s.Deleted))
}

// Middleware returns a store middleware timing every statement.
func (m *Metrics) Middleware() store.Middleware {
	return &statementMetrics{m: m}
}

type statementMetrics struct {
	m *Metrics
}

func (s *statementMetrics) Name() string {
	return "Metrics"
}

func (s *statementMetrics) Process(ctx context.Context, stmt *store.Statement, next store.ExecFunc) (*store.Result, error) {
	start := time.Now()
	res, err := next(ctx, stmt)
	s.m.StatementDuration.WithLabelValues(stmt.Op).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.m.Statements.WithLabelValues(stmt.Op, stmt.Table, result).Inc()
	return res, err
}

// RegisterPool exports the connection statistics of p as gauges.
func RegisterPool(reg prometheus.Registerer, p pool.Pool) {
	factory := promauto.With(reg)
	gauge := func(name, help string, fn func() float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
	}
	gauge("jpersist_pool_open_connections", "The number of established connections, in use or idle",
		func() float64 { return float64(p.Stats().OpenConnections) })
	gauge("jpersist_pool_in_use_connections", "The number of connections currently in use",
		func() float64 { return float64(p.Stats().InUse) })
	gauge("jpersist_pool_idle_connections", "The number of idle connections",
		func() float64 { return float64(p.Stats().Idle) })
	gauge("jpersist_pool_wait_count", "The total number of connections waited for",
		func() float64 { return float64(p.Stats().WaitCount) })
}
