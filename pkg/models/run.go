package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatus is the outcome of one platform within a run
type SourceStatus string

const (
	// StatusSuccess means pagination ended normally; zero reviews is still success
	StatusSuccess SourceStatus = "success"
	// StatusPartial means some pages were processed before the source stopped on an error
	StatusPartial SourceStatus = "partial"
	// StatusFailed means no page of the source could be processed
	StatusFailed SourceStatus = "failed"
	// StatusCancelled means the run was cancelled while the source was active
	StatusCancelled SourceStatus = "cancelled"
)

// SourceReport describes what happened to one platform during a run
type SourceReport struct {
	Source         Source        `json:"source" yaml:"source"`
	Status         SourceStatus  `json:"status" yaml:"status"`
	PagesFetched   int           `json:"pages_fetched" yaml:"pages_fetched"`
	PagesSkipped   int           `json:"pages_skipped" yaml:"pages_skipped"`
	RecordsSeen    int           `json:"records_seen" yaml:"records_seen"`
	ReviewsKept    int           `json:"reviews_kept" yaml:"reviews_kept"`
	RecordsDropped int           `json:"records_dropped" yaml:"records_dropped"`
	Duplicates     int           `json:"duplicates" yaml:"duplicates"`
	StopReason     string        `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Error          string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration       time.Duration `json:"-" yaml:"-"`
}

// RunMetadata summarises one invocation
type RunMetadata struct {
	RunID          string
	Company        string
	SourceSelector string
	Window         DateWindow
	TotalReviews   int
	ScrapedAt      time.Time
	Duration       time.Duration
	Cancelled      bool
	Sources        []SourceReport
}

// NewRunMetadata starts the metadata for a run with a fresh run ID
func NewRunMetadata(company, selector string, window DateWindow) RunMetadata {
	return RunMetadata{
		RunID:          uuid.NewString(),
		Company:        company,
		SourceSelector: selector,
		Window:         window,
	}
}

// Report returns the report for one platform
func (m RunMetadata) Report(src Source) (SourceReport, bool) {
	for _, r := range m.Sources {
		if r.Source == src {
			return r, true
		}
	}
	return SourceReport{}, false
}

// Failed lists the platforms whose status is failed
func (m RunMetadata) Failed() []Source {
	var out []Source
	for _, r := range m.Sources {
		if r.Status == StatusFailed {
			out = append(out, r.Source)
		}
	}
	return out
}
