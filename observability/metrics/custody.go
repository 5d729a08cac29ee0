package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"gotsol/core/types"
)

// CustodyMetrics tracks value movements that leave or stay in merchant custody.
type CustodyMetrics struct {
	withdrawn    *prometheus.CounterVec
	refunded     *prometheus.CounterVec
	deposited    *prometheus.CounterVec
	roundingDust *prometheus.CounterVec
	merchants    prometheus.Gauge
}

var (
	custodyOnce     sync.Once
	custodyRegistry *CustodyMetrics
)

func Custody() *CustodyMetrics {
	custodyOnce.Do(func() {
		custodyRegistry = &CustodyMetrics{
			withdrawn: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gotsol_custody_withdrawn_total",
				Help: "Base units withdrawn from custody by asset and recipient role.",
			}, []string{"asset", "role"}),
			refunded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gotsol_custody_refunded_total",
				Help: "Base units refunded from custody by asset.",
			}, []string{"asset"}),
			deposited: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gotsol_custody_deposited_total",
				Help: "Base units paid into custody by asset.",
			}, []string{"asset"}),
			roundingDust: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "gotsol_custody_rounding_dust_total",
				Help: "Split rounding remainder retained in custody by asset.",
			}, []string{"asset"}),
			merchants: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "gotsol_custody_merchants",
				Help: "Merchants created minus merchants closed since process start.",
			}),
		}
		prometheus.MustRegister(
			custodyRegistry.withdrawn,
			custodyRegistry.refunded,
			custodyRegistry.deposited,
			custodyRegistry.roundingDust,
			custodyRegistry.merchants,
		)
	})
	return custodyRegistry
}

var withdrawnRoles = []string{"owner", "house", "compliance"}

// Observe folds a committed merchant event into the custody counters.
func (m *CustodyMetrics) Observe(evt types.Event) {
	if m == nil {
		return
	}
	asset := evt.Attributes["asset"]
	if asset == "" {
		asset = "unknown"
	}
	switch evt.Type {
	case "merchant.created":
		m.merchants.Inc()
	case "merchant.closed":
		m.merchants.Dec()
	case "merchant.withdrawn":
		for _, role := range withdrawnRoles {
			if v, ok := parseAmount(evt.Attributes[role+"Amount"]); ok {
				m.withdrawn.WithLabelValues(asset, role).Add(v)
			}
		}
		if v, ok := parseAmount(evt.Attributes["remainder"]); ok {
			m.roundingDust.WithLabelValues(asset).Add(v)
		}
	case "merchant.refunded":
		if v, ok := parseAmount(evt.Attributes["amount"]); ok {
			m.refunded.WithLabelValues(asset).Add(v)
		}
	case "merchant.payment":
		if v, ok := parseAmount(evt.Attributes["amount"]); ok {
			m.deposited.WithLabelValues(asset).Add(v)
		}
	}
}

func parseAmount(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(v), true
}
