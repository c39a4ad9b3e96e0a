package aggregator

import (
	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
	"reviewscraper/pkg/normalize"
	"reviewscraper/pkg/paginator"
)

// Observer receives run events. Implementations are called from every
// source chain and must be safe for concurrent use.
type Observer interface {
	paginator.Observer
	SourceStarted(src models.Source)
	RecordDropped(src models.Source, reason normalize.DropReason)
	SourceFailed(src models.Source, err error)
	SourceFinished(report models.SourceReport)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) SourceStarted(models.Source)                       {}
func (NopObserver) PageFetched(models.Source, int, int)               {}
func (NopObserver) PageSkipped(models.Source, int, error)             {}
func (NopObserver) RecordDropped(models.Source, normalize.DropReason) {}
func (NopObserver) SourceFailed(models.Source, error)                 {}
func (NopObserver) SourceFinished(models.SourceReport)                {}

// LogObserver writes run events to a logger
type LogObserver struct {
	log logger.Logger
}

// NewLogObserver creates an observer logging through log
func NewLogObserver(log logger.Logger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) SourceStarted(src models.Source) {
	o.log.InfoWithFields("scraping source", map[string]interface{}{
		"source": src.DisplayName(),
	})
}

func (o *LogObserver) PageFetched(src models.Source, page, records int) {
	o.log.DebugWithFields("page processed", map[string]interface{}{
		"source":  src.DisplayName(),
		"page":    page,
		"records": records,
	})
}

func (o *LogObserver) PageSkipped(src models.Source, page int, err error) {
	o.log.WithError(err).WarnWithFields("page skipped", map[string]interface{}{
		"source": src.DisplayName(),
		"page":   page,
	})
}

func (o *LogObserver) RecordDropped(src models.Source, reason normalize.DropReason) {
	o.log.DebugWithFields("record dropped", map[string]interface{}{
		"source": src.DisplayName(),
		"reason": string(reason),
	})
}

func (o *LogObserver) SourceFailed(src models.Source, err error) {
	l := o.log
	if err != nil {
		l = l.WithError(err)
	}
	l.ErrorWithFields("source failed", map[string]interface{}{
		"source": src.DisplayName(),
	})
}

func (o *LogObserver) SourceFinished(r models.SourceReport) {
	o.log.InfoWithFields("source finished", map[string]interface{}{
		"source":          r.Source.DisplayName(),
		"status":          string(r.Status),
		"pages_fetched":   r.PagesFetched,
		"pages_skipped":   r.PagesSkipped,
		"reviews_kept":    r.ReviewsKept,
		"records_dropped": r.RecordsDropped,
		"stop_reason":     r.StopReason,
		"duration_ms":     r.Duration.Milliseconds(),
	})
}

// MultiObserver forwards every event to each observer in order
type MultiObserver []Observer

func (m MultiObserver) SourceStarted(src models.Source) {
	for _, o := range m {
		o.SourceStarted(src)
	}
}

func (m MultiObserver) PageFetched(src models.Source, page, records int) {
	for _, o := range m {
		o.PageFetched(src, page, records)
	}
}

func (m MultiObserver) PageSkipped(src models.Source, page int, err error) {
	for _, o := range m {
		o.PageSkipped(src, page, err)
	}
}

func (m MultiObserver) RecordDropped(src models.Source, reason normalize.DropReason) {
	for _, o := range m {
		o.RecordDropped(src, reason)
	}
}

func (m MultiObserver) SourceFailed(src models.Source, err error) {
	for _, o := range m {
		o.SourceFailed(src, err)
	}
}

func (m MultiObserver) SourceFinished(r models.SourceReport) {
	for _, o := range m {
		o.SourceFinished(r)
	}
}
