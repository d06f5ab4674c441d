package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics records RPC activity and vault engine outcomes.
type VaultMetrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	claims        prometheus.Counter
	distributions prometheus.Counter
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *VaultMetrics
)

// Metrics returns the lazily-initialised metrics registry used to record
// vault RPC activity.
func Metrics() *VaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "benevault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "benevault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "benevault",
				Subsystem: "vaults",
				Name:      "claims_total",
				Help:      "Count of successfully settled reward claims.",
			}),
			distributions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "benevault",
				Subsystem: "vaults",
				Name:      "distributions_total",
				Help:      "Count of completed reward distribution rounds.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.requests,
			vaultRegistry.latency,
			vaultRegistry.claims,
			vaultRegistry.distributions,
		)
	})
	return vaultRegistry
}

// ObserveRequest records the outcome and duration of one RPC call.
func (m *VaultMetrics) ObserveRequest(method, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

// ClaimSettled increments the successful claim counter.
func (m *VaultMetrics) ClaimSettled() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

// DistributionCompleted increments the distribution round counter.
func (m *VaultMetrics) DistributionCompleted() {
	if m == nil {
		return
	}
	m.distributions.Inc()
}
