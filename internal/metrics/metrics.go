// Package metrics exposes ledger and RPC counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/angganurf/wunderland-sol/internal/domains/contracts"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wunderland"

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
)

// Recorder owns one registry. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rejections  *prometheus.CounterVec
	slot        prometheus.Gauge
	rpcRequests *prometheus.CounterVec
	rpcLimited  prometheus.Counter
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Ledger transaction duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Rejected ledger operations by error category and name.",
			},
			[]string{"operation", "category", "error_name"},
		),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "slot",
			Help:      "Slot of the last committed transaction.",
		}),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and result code.",
			},
			[]string{"method", "code"},
		),
		rpcLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "rate_limited_total",
			Help:      "HTTP requests refused by the per-client limiter.",
		}),
	}
	r.registry.MustRegister(
		r.operations, r.duration, r.rejections, r.slot, r.rpcRequests, r.rpcLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveOperation records one ledger transaction. slot is the committed slot
// and is ignored for rejected operations.
func (r *Recorder) ObserveOperation(operation string, elapsed time.Duration, slot uint64, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err == nil {
		r.operations.WithLabelValues(operation, OutcomeCommitted).Inc()
		r.slot.Set(float64(slot))
		return
	}
	r.operations.WithLabelValues(operation, OutcomeRejected).Inc()
	name := "Internal"
	if ledgerErr, ok := contracts.AsLedgerError(err); ok {
		name = ledgerErr.Name
	}
	r.rejections.WithLabelValues(operation, string(contracts.CategoryOf(err)), name).Inc()
}

func (r *Recorder) ObserveRPC(method string, code int) {
	if r == nil {
		return
	}
	r.rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (r *Recorder) ObserveRateLimited() {
	if r == nil {
		return
	}
	r.rpcLimited.Inc()
}
