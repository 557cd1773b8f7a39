package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the metrics namespace used when none is given.
const DefaultNamespace = "tagsched"

// Prometheus implements Collector backed by Prometheus metrics.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	operations      *prometheus.CounterVec
	activeIntervals prometheus.Gauge
	subscriptions   prometheus.Gauge
	pending         prometheus.Gauge
	dispatches      *prometheus.CounterVec
	batchSize       prometheus.Histogram
}

// Compile-time interface satisfaction check.
var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a Prometheus-backed collector.
// A nil registerer selects prometheus.DefaultRegisterer; an empty namespace
// selects DefaultNamespace.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	p := &Prometheus{reg: reg, namespace: namespace}
	p.ensureRegistered()
	return p
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "operations_total",
			Help:      "Per-element outcomes of scheduler operations by op and result.",
		}, []string{"op", "result"})

		p.activeIntervals = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "active_intervals",
			Help:      "Number of distinct polling intervals with at least one subscription.",
		})
		p.subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "subscriptions",
			Help:      "Number of committed subscriptions across all tags and rates.",
		})
		p.pending = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "pending_subscriptions",
			Help:      "Number of subscriptions awaiting transport confirmation.",
		})

		p.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "dispatcher",
			Name:      "reads_total",
			Help:      "Periodic value reads by outcome (ok, error).",
		}, []string{"outcome"})
		p.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "dispatcher",
			Name:      "batch_size",
			Help:      "Number of tags read per interval tick.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
		})

		p.reg.MustRegister(
			p.operations,
			p.activeIntervals,
			p.subscriptions,
			p.pending,
			p.dispatches,
			p.batchSize,
		)
	})
}

// RecordOperation increments the operations counter.
func (p *Prometheus) RecordOperation(op, result string) {
	p.operations.WithLabelValues(op, result).Inc()
}

// SetActiveIntervals sets the active intervals gauge.
func (p *Prometheus) SetActiveIntervals(n int) {
	p.activeIntervals.Set(float64(n))
}

// SetSubscriptions sets the committed subscriptions gauge.
func (p *Prometheus) SetSubscriptions(n int) {
	p.subscriptions.Set(float64(n))
}

// SetPending sets the pending subscriptions gauge.
func (p *Prometheus) SetPending(n int) {
	p.pending.Set(float64(n))
}

// RecordDispatch counts one read and observes its batch size.
func (p *Prometheus) RecordDispatch(_ time.Duration, batchSize int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.dispatches.WithLabelValues(outcome).Inc()
	p.batchSize.Observe(float64(batchSize))
}
