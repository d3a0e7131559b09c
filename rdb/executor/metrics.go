package executor

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 语句执行的 prometheus 指标
type Metrics struct {
	statementCounter  *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	activeStatements  *prometheus.GaugeVec
	rowsHistogram     *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标，同名指标已注册时复用已有的收集器
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		statementCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_statements_total",
				Help: "Total number of executed sql statements",
			},
			[]string{"operation", "status"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_statement_duration_seconds",
				Help:    "Duration of sql statements in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		activeStatements: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_statements",
				Help: "Number of sql statements holding a connection",
			},
			[]string{"operation"},
		),
		rowsHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_statement_rows",
				Help:    "Rows returned by queries or affected by mutations",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
	}

	var err error
	if m.statementCounter, err = register(registerer, m.statementCounter); err != nil {
		return nil, err
	}
	if m.statementDuration, err = register(registerer, m.statementDuration); err != nil {
		return nil, err
	}
	if m.activeStatements, err = register(registerer, m.activeStatements); err != nil {
		return nil, err
	}
	if m.rowsHistogram, err = register(registerer, m.rowsHistogram); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "failed to register metrics")
	}
	return c, nil
}

func (m *Metrics) observe(operation string, status string, seconds float64, rows int64) {
	m.statementCounter.WithLabelValues(operation, status).Inc()
	m.statementDuration.WithLabelValues(operation).Observe(seconds)
	if status == "success" {
		m.rowsHistogram.WithLabelValues(operation).Observe(float64(rows))
	}
}
