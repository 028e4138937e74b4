// Package metrics exposes prometheus instruments for the commission
// engine and the monthly batch scheduler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics captures commission pipeline health signals.
type EngineMetrics struct {
	purchasesProcessed prometheus.Counter
	bonusRows          *prometheus.CounterVec
	amountDistributed  *prometheus.CounterVec
	compressionApplied prometheus.Counter
	uplineCycles       prometheus.Counter
}

var (
	engineOnce sync.Once
	engine     *EngineMetrics
)

// Engine returns the singleton engine metrics registry.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engine = newEngineMetrics(prometheus.DefaultRegisterer)
	})
	return engine
}

func newEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &EngineMetrics{
		purchasesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upline_purchases_processed_total",
			Help: "Purchases that completed commission processing.",
		}),
		bonusRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upline_bonus_rows_total",
			Help: "Bonus ledger rows written by commission type.",
		}, []string{"type"}),
		amountDistributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upline_amount_distributed_total",
			Help: "Total monetary amount distributed by commission type.",
		}, []string{"type"}),
		compressionApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upline_compression_applied_total",
			Help: "Payouts that absorbed a compressed inactive band.",
		}),
		uplineCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upline_upline_cycles_detected_total",
			Help: "Corrupted upline references detected during chain walks.",
		}),
	}

	registerer.MustRegister(
		m.purchasesProcessed,
		m.bonusRows,
		m.amountDistributed,
		m.compressionApplied,
		m.uplineCycles,
	)
	return m
}

func (m *EngineMetrics) IncPurchaseProcessed() {
	if m == nil {
		return
	}
	m.purchasesProcessed.Inc()
}

func (m *EngineMetrics) RecordBonus(commissionType string, amount float64) {
	if m == nil {
		return
	}
	m.bonusRows.WithLabelValues(commissionType).Inc()
	m.amountDistributed.WithLabelValues(commissionType).Add(amount)
}

func (m *EngineMetrics) IncCompressionApplied() {
	if m == nil {
		return
	}
	m.compressionApplied.Inc()
}

func (m *EngineMetrics) IncUplineCycle() {
	if m == nil {
		return
	}
	m.uplineCycles.Inc()
}
