package backend

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"looped/infrastructure"
)

type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "looped_backend_calls_total",
			Help: "Backend calls by operation, table and result.",
		}, []string{"op", "table", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "looped_backend_call_duration_seconds",
			Help:    "Latency of backend calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "table"}),
	}
	registry.MustRegister(m.calls, m.duration)
	return m
}

// Instrumented records every call made through the wrapped Backend.
type Instrumented struct {
	Backend
	metrics *Metrics
}

func NewInstrumented(inner Backend, metrics *Metrics) *Instrumented {
	return &Instrumented{Backend: inner, metrics: metrics}
}

func (i *Instrumented) Insert(ctx context.Context, table Table, row Row) error {
	start := time.Now()
	err := i.Backend.Insert(ctx, table, row)
	i.observe(OperationInsert, table, start, err)
	return err
}

func (i *Instrumented) Update(ctx context.Context, table Table, match Filter, set Row) (int64, error) {
	start := time.Now()
	n, err := i.Backend.Update(ctx, table, match, set)
	i.observe(OperationUpdate, table, start, err)
	return n, err
}

func (i *Instrumented) Delete(ctx context.Context, table Table, match Filter) (int64, error) {
	start := time.Now()
	n, err := i.Backend.Delete(ctx, table, match)
	i.observe(OperationDelete, table, start, err)
	return n, err
}

func (i *Instrumented) Select(ctx context.Context, table Table, filter Filter, opts SelectOptions) ([]Row, error) {
	start := time.Now()
	rows, err := i.Backend.Select(ctx, table, filter, opts)
	i.observe(OperationSelect, table, start, err)
	return rows, err
}

func (i *Instrumented) observe(op Operation, table Table, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, infrastructure.ErrConflict):
		result = "conflict"
	case err != nil:
		result = "error"
	}
	i.metrics.calls.WithLabelValues(string(op), string(table), result).Inc()
	i.metrics.duration.WithLabelValues(string(op), string(table)).Observe(time.Since(start).Seconds())
}
