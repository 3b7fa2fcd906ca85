// Package metrics содержит Prometheus-метрики движка бронирования.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lab_reservations"

// Metrics набор коллекторов. Методы безопасны для nil-получателя,
// чтобы сервисы работали и без метрик.
type Metrics struct {
	admissions  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	promotions  prometheus.Counter
	txConflicts *prometheus.CounterVec
	txDuration  *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Reservation requests by admission outcome",
			},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Status transitions by action and result",
			},
			[]string{"action", "result"},
		),
		promotions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "promotions_total",
				Help:      "Waitlisted reservations promoted to pending",
			},
		),
		txConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_conflicts_total",
				Help:      "Transactions aborted with a retryable conflict",
			},
			[]string{"operation"},
		),
		txDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tx_duration_seconds",
				Help:      "Duration of engine operations including retries",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(m.admissions, m.transitions, m.promotions, m.txConflicts, m.txDuration)
	return m
}

// Admission учитывает исход заявки: pending, waitlisted, refused, error
func (m *Metrics) Admission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

// Transition учитывает смену статуса
func (m *Metrics) Transition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Promotion() {
	if m == nil {
		return
	}
	m.promotions.Inc()
}

func (m *Metrics) TxConflict(operation string) {
	if m == nil {
		return
	}
	m.txConflicts.WithLabelValues(operation).Inc()
}

// ObserveTx записывает длительность операции, начатой в start
func (m *Metrics) ObserveTx(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
