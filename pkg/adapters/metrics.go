package adapters

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - счетчики выполнения запросов
// nil *Metrics допустим и ничего не делает
type Metrics struct {
	// statementsTotal counts executed statements by dialect, tier and outcome.
	statementsTotal *prometheus.CounterVec

	// statementDuration tracks statement latency by dialect and tier.
	statementDuration *prometheus.HistogramVec

	// reconnectsTotal counts connections reopened by Recreate.
	reconnectsTotal *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		statementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eavsql_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"dialect", "tier", "outcome"},
		),
		statementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eavsql_statement_duration_seconds",
				Help:    "Statement execution latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dialect", "tier"},
		),
		reconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eavsql_reconnects_total",
				Help: "Total number of reopened connections",
			},
			[]string{"dialect"},
		),
	}
}

func (m *Metrics) observe(dialect, tier, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statementsTotal.WithLabelValues(dialect, tier, outcome).Inc()
	m.statementDuration.WithLabelValues(dialect, tier).Observe(elapsed.Seconds())
}

func (m *Metrics) reconnected(dialect string) {
	if m == nil {
		return
	}
	m.reconnectsTotal.WithLabelValues(dialect).Inc()
}
