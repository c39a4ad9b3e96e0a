package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"

	"reviewscraper/pkg/models"
	"reviewscraper/pkg/normalize"
)

// MetricsObserver counts run events in its own Prometheus registry. A
// one-shot run has nothing to scrape it, so the registry is written out in
// the node exporter textfile format instead.
type MetricsObserver struct {
	registry *prometheus.Registry

	pages          *prometheus.CounterVec
	recordsDropped *prometheus.CounterVec
	reviewsKept    *prometheus.GaugeVec
	sourceStatus   *prometheus.GaugeVec
	sourceDuration *prometheus.GaugeVec
}

// NewMetricsObserver creates an observer with a fresh registry
func NewMetricsObserver() *MetricsObserver {
	m := &MetricsObserver{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewscraper_pages_total",
			Help: "Pages processed per source, by result",
		}, []string{"source", "result"}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewscraper_records_dropped_total",
			Help: "Records that did not become reviews, by reason",
		}, []string{"source", "reason"}),
		reviewsKept: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reviewscraper_reviews_kept",
			Help: "Reviews kept per source in the last run",
		}, []string{"source"}),
		sourceStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reviewscraper_source_status",
			Help: "Set to 1 for the final status of each source",
		}, []string{"source", "status"}),
		sourceDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reviewscraper_source_duration_seconds",
			Help: "Wall time spent on each source",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.pages,
		m.recordsDropped,
		m.reviewsKept,
		m.sourceStatus,
		m.sourceDuration,
	)
	return m
}

// Registry exposes the registry for gathering or testing
func (m *MetricsObserver) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics to path atomically
func (m *MetricsObserver) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *MetricsObserver) SourceStarted(models.Source) {}

func (m *MetricsObserver) PageFetched(src models.Source, _, _ int) {
	m.pages.WithLabelValues(string(src), "fetched").Inc()
}

func (m *MetricsObserver) PageSkipped(src models.Source, _ int, _ error) {
	m.pages.WithLabelValues(string(src), "skipped").Inc()
}

func (m *MetricsObserver) RecordDropped(src models.Source, reason normalize.DropReason) {
	m.recordsDropped.WithLabelValues(string(src), string(reason)).Inc()
}

func (m *MetricsObserver) SourceFailed(models.Source, error) {}

func (m *MetricsObserver) SourceFinished(r models.SourceReport) {
	src := string(r.Source)
	m.reviewsKept.WithLabelValues(src).Set(float64(r.ReviewsKept))
	m.sourceStatus.WithLabelValues(src, string(r.Status)).Set(1)
	m.sourceDuration.WithLabelValues(src).Set(r.Duration.Seconds())
}
