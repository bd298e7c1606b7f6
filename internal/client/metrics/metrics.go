// Package metrics records batch submission outcomes.
//
// Recorder is the hook used by the service layer. Nop discards everything;
// Prometheus keeps counters and histograms in a private registry that can be
// pushed to a Pushgateway at the end of a CLI run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder observes chunk submissions and reconciliation results.
type Recorder interface {
	ChunkSubmitted(entity, op string, rows int, elapsed time.Duration, err error)
	Reconciled(entity, op string, saved, missed int)
}

// Nop is a Recorder that does nothing.
type Nop struct{}

func (Nop) ChunkSubmitted(string, string, int, time.Duration, error) {}
func (Nop) Reconciled(string, string, int, int)                       {}

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	reg        *prometheus.Registry
	chunks     *prometheus.CounterVec
	rows       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	reconciled *prometheus.CounterVec
}

// NewPrometheus registers the collectors in a fresh registry.
func NewPrometheus() (*Prometheus, error) {
	p := &Prometheus{
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amocrm",
			Subsystem: "batch",
			Name:      "chunks_total",
			Help:      "Batch chunks submitted, by outcome.",
		}, []string{"entity", "op", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amocrm",
			Subsystem: "batch",
			Name:      "rows_total",
			Help:      "Rows sent in batch chunks.",
		}, []string{"entity", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amocrm",
			Subsystem: "batch",
			Name:      "chunk_duration_seconds",
			Help:      "Round-trip time of a batch chunk.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "op"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amocrm",
			Subsystem: "batch",
			Name:      "reconciled_models_total",
			Help:      "Models matched or missed during reconciliation.",
		}, []string{"entity", "op", "result"}),
	}
	p.reg = prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{p.chunks, p.rows, p.duration, p.reconciled} {
		if err := p.reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return p, nil
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.reg
}

func (p *Prometheus) ChunkSubmitted(entity, op string, rows int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.chunks.WithLabelValues(entity, op, status).Inc()
	p.rows.WithLabelValues(entity, op).Add(float64(rows))
	p.duration.WithLabelValues(entity, op).Observe(elapsed.Seconds())
}

func (p *Prometheus) Reconciled(entity, op string, saved, missed int) {
	p.reconciled.WithLabelValues(entity, op, "saved").Add(float64(saved))
	p.reconciled.WithLabelValues(entity, op, "missed").Add(float64(missed))
}

// Push sends the current values to a Pushgateway under job.
func (p *Prometheus) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(p.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
