// Package metrics provides Prometheus metrics instrumentation for the harvester.
//
// It exposes operational metrics about source fetch behavior, batch quality,
// and pacing decisions. All metrics are exposed via the /metrics HTTP endpoint
// for Prometheus scraping.
//
// Metrics exposed:
//   - harvest_source_requests_total: Counter of source fetches by source and status
//   - harvest_source_fetch_duration_seconds: Histogram of source fetch durations
//   - harvest_source_fallbacks_total: Counter of sources benched for alternates
//   - harvest_cycles_total: Counter of completed collection cycles
//   - harvest_batch_quality_score: Gauge of the latest batch quality score
//   - harvest_delay_multiplier: Gauge of the current pacing multiplier
//   - harvest_dataset_records: Gauge of records accumulated in the dataset
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SourceRequestsTotal *prometheus.CounterVec
	SourceFetchDuration *prometheus.HistogramVec
	SourceFallbacks     *prometheus.CounterVec
	CyclesTotal         prometheus.Counter
	BatchQualityScore   prometheus.Gauge
	DelayMultiplier     prometheus.Gauge
	DatasetRecords      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_source_requests_total",
			Help: "Total number of source fetches by source and status",
		}, []string{"source", "status"}),

		SourceFetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_source_fetch_duration_seconds",
			Help:    "Duration of source fetches by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),

		SourceFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_source_fallbacks_total",
			Help: "Total number of sources benched in favor of their alternates",
		}, []string{"source"}),

		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvest_cycles_total",
			Help: "Total number of completed collection cycles",
		}),

		BatchQualityScore: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_batch_quality_score",
			Help: "Quality score of the most recent validated batch",
		}),

		DelayMultiplier: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_delay_multiplier",
			Help: "Current pacing delay multiplier",
		}),

		DatasetRecords: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_dataset_records",
			Help: "Number of records accumulated in the dataset",
		}),
	}
}

func (m *Metrics) RecordSourceRequest(source, status string) {
	m.SourceRequestsTotal.WithLabelValues(source, status).Inc()
}

func (m *Metrics) ObserveSourceFetch(source string, seconds float64) {
	m.SourceFetchDuration.WithLabelValues(source).Observe(seconds)
}

func (m *Metrics) RecordFallback(source string) {
	m.SourceFallbacks.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordCycle() {
	m.CyclesTotal.Inc()
}

func (m *Metrics) SetBatchQuality(score float64) {
	m.BatchQualityScore.Set(score)
}

func (m *Metrics) SetDelayMultiplier(multiplier float64) {
	m.DelayMultiplier.Set(multiplier)
}

func (m *Metrics) SetDatasetRecords(n int) {
	m.DatasetRecords.Set(float64(n))
}
