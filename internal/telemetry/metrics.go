package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus instruments, registered on their own
// registry so the admin endpoint only exposes what this process owns.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ArticlesInRun  prometheus.Histogram
	TokensUsed     prometheus.Counter
	CostUSD        prometheus.Counter
	DeliveryErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moat_runs_total",
			Help: "Pipeline runs by terminal status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moat_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		ArticlesInRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moat_articles_per_run",
			Help:    "Articles fetched per run.",
			Buckets: prometheus.LinearBuckets(0, 25, 10),
		}),
		TokensUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moat_llm_tokens_total",
			Help: "Total inference tokens consumed.",
		}),
		CostUSD: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moat_llm_cost_usd_total",
			Help: "Total estimated inference spend in USD.",
		}),
		DeliveryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moat_delivery_errors_total",
			Help: "Digest delivery failures.",
		}),
	}
	reg.MustRegister(m.RunsTotal, m.StageDuration, m.ArticlesInRun, m.TokensUsed, m.CostUSD, m.DeliveryErrors)
	return m
}
