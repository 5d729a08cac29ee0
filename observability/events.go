package observability

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"gotsol/core/types"
	"gotsol/observability/metrics"
)

type eventMetrics struct {
	events *prometheus.CounterVec
	volume *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed audit events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed audit events segmented by type.",
			}, []string{"type"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gotsol",
				Subsystem: "events",
				Name:      "amount_total",
				Help:      "Sum of base units moved by committed events segmented by type and asset.",
			}, []string{"type", "asset"}),
		}
		prometheus.MustRegister(eventRegistry.events, eventRegistry.volume)
	})
	return eventRegistry
}

// Record counts evt and, when it carries an amount, adds it to the volume.
func (m *eventMetrics) Record(evt types.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(evt.Type).Inc()
	raw, ok := evt.Attributes["amount"]
	if !ok {
		return
	}
	amount, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	asset := strings.TrimSpace(evt.Attributes["asset"])
	if asset == "" {
		asset = strings.TrimSpace(evt.Attributes["mint"])
	}
	if asset == "" {
		asset = "unknown"
	}
	m.volume.WithLabelValues(evt.Type, asset).Add(float64(amount))
}

// HandleEvents lets the registry act as a processor event sink. Custody
// counters are fed from the same stream.
func (m *eventMetrics) HandleEvents(_ context.Context, evts []types.Event) error {
	custody := metrics.Custody()
	for _, evt := range evts {
		m.Record(evt)
		custody.Observe(evt)
	}
	return nil
}
