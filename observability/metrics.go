package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// ApplyMetrics tracks state transitions executed by the processor.
type ApplyMetrics struct {
	applies  *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	applyMetricsOnce sync.Once
	applyRegistry    *ApplyMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gotsol",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by rate limiting or replay protection.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is the JSON-RPC error
// code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" or "replay".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Apply returns the singleton registry for processor applies.
func Apply() *ApplyMetrics {
	applyMetricsOnce.Do(func() {
		applyRegistry = &ApplyMetrics{
			applies: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "processor",
				Name:      "applies_total",
				Help:      "Count of state transitions segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "processor",
				Name:      "failures_total",
				Help:      "Count of rejected state transitions segmented by operation and error class.",
			}, []string{"operation", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gotsol",
				Subsystem: "processor",
				Name:      "apply_duration_seconds",
				Help:      "Latency distribution for state transitions including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
		}
		prometheus.MustRegister(applyRegistry.applies, applyRegistry.failures, applyRegistry.latency)
	})
	return applyRegistry
}

// Observe records a state transition outcome. class is empty on success.
func (m *ApplyMetrics) Observe(operation, class string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "committed"
	if class != "" {
		outcome = "rejected"
		m.failures.WithLabelValues(operation, class).Inc()
	}
	m.applies.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}
