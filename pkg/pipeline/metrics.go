package pipeline

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hed1ad/wqguard/pkg/water"
)

// Metrics counts pipeline runs. A nil *Metrics records nothing.
type Metrics struct {
	runs      *prometheus.CounterVec
	rows      prometheus.Counter
	anomalies *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wqguard_pipeline_runs_total",
			Help: "Total number of detection runs by model variant and outcome.",
		}, []string{"variant", "outcome"}),
		rows: f.NewCounter(prometheus.CounterOpts{
			Name: "wqguard_pipeline_rows_scored_total",
			Help: "Total number of samples scored.",
		}),
		anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wqguard_pipeline_anomalies_total",
			Help: "Total number of anomalous samples by summary key.",
		}, []string{"key"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "wqguard_pipeline_run_duration_seconds",
			Help:    "Duration of a full detection run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
	}
}

func (m *Metrics) observe(variant water.Variant, seconds float64, summary water.AnomalySummary, rows int, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(variant.String(), outcome(err)).Inc()
	m.duration.Observe(seconds)
	if err != nil {
		return
	}
	m.rows.Add(float64(rows))
	for _, c := range summary {
		m.anomalies.WithLabelValues(c.Key).Add(float64(c.Count))
	}
}

func outcome(err error) string {
	var (
		mce *water.MissingColumnsError
		iie *water.InvalidInputError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &mce):
		return "missing_columns"
	case errors.As(err, &iie):
		return "invalid_input"
	case errors.Is(err, water.ErrEmptyTable):
		return "empty"
	default:
		return "error"
	}
}
