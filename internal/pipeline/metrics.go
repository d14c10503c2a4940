package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dealflow/internal/impute"
)

// Metrics records pipeline activity. A nil *Metrics is a no-op.
type Metrics struct {
	runs           *prometheus.CounterVec
	steps          *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	filled         *prometheus.CounterVec
	cleared        *prometheus.CounterVec
	remaining      *prometheus.GaugeVec
	lookups        *prometheus.CounterVec
	lookupDuration prometheus.Histogram
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealflow",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealflow",
			Name:      "pipeline_steps_total",
			Help:      "Pipeline steps executed by status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dealflow",
			Name:      "pipeline_step_duration_seconds",
			Help:      "Wall time per pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		filled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealflow",
			Name:      "imputed_cells_total",
			Help:      "Cells filled by imputation.",
		}, []string{"step", "column"}),
		cleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealflow",
			Name:      "cleared_cells_total",
			Help:      "Cells nulled by validation.",
		}, []string{"step", "column"}),
		remaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dealflow",
			Name:      "remaining_nulls",
			Help:      "Null cells left after the most recent step.",
		}, []string{"step", "column"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealflow",
			Name:      "backfill_lookups_total",
			Help:      "Founding-date lookups by outcome.",
		}, []string{"outcome"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dealflow",
			Name:      "backfill_lookup_duration_seconds",
			Help:      "Wall time per founding-date lookup.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40},
		}),
	}
	reg.MustRegister(m.runs, m.steps, m.stepDuration, m.filled, m.cleared, m.remaining, m.lookups, m.lookupDuration)
	return m
}

func (m *Metrics) observeRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) observeStep(step string, took time.Duration, err error, reps []impute.Report) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.steps.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(took.Seconds())
	for _, r := range reps {
		m.filled.WithLabelValues(r.Step, r.Column).Add(float64(r.Filled))
		m.cleared.WithLabelValues(r.Step, r.Column).Add(float64(r.Cleared))
		m.remaining.WithLabelValues(r.Step, r.Column).Set(float64(r.Remaining))
	}
}

// ObserveLookup matches backfill.Backfiller.OnLookup.
func (m *Metrics) ObserveLookup(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
	m.lookupDuration.Observe(took.Seconds())
}
