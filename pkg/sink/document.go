package sink

import (
	"time"

	"reviewscraper/pkg/aggregator"
	"reviewscraper/pkg/models"
)

// Document is the serialized form of a run
type Document struct {
	RunID        string                `json:"run_id" yaml:"run_id"`
	Company      string                `json:"company" yaml:"company"`
	Source       string                `json:"source" yaml:"source"`
	DateRange    DateRange             `json:"date_range" yaml:"date_range"`
	TotalReviews int                   `json:"total_reviews" yaml:"total_reviews"`
	ScrapedAt    string                `json:"scraped_at" yaml:"scraped_at"`
	Duration     string                `json:"duration" yaml:"duration"`
	Cancelled    bool                  `json:"cancelled" yaml:"cancelled"`
	Sources      []models.SourceReport `json:"sources" yaml:"sources"`
	Reviews      []Review              `json:"reviews" yaml:"reviews"`
}

// DateRange is the requested window as calendar dates
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Review is the serialized form of a review
type Review struct {
	Title             string  `json:"title" yaml:"title"`
	Description       string  `json:"description" yaml:"description"`
	Date              string  `json:"date" yaml:"date"`
	Rating            float64 `json:"rating" yaml:"rating"`
	Source            string  `json:"source" yaml:"source"`
	ReviewerName      string  `json:"reviewer_name" yaml:"reviewer_name"`
	VerifiedPurchaser bool    `json:"verified_purchaser" yaml:"verified_purchaser"`
	HelpfulCount      uint    `json:"helpful_count" yaml:"helpful_count"`
}

// NewDocument converts a run result for serialization
func NewDocument(res *aggregator.Result) Document {
	meta := res.Metadata
	doc := Document{
		RunID:   meta.RunID,
		Company: meta.Company,
		Source:  meta.SourceSelector,
		DateRange: DateRange{
			Start: meta.Window.Start().Format(models.DateLayout),
			End:   meta.Window.End().Format(models.DateLayout),
		},
		TotalReviews: meta.TotalReviews,
		ScrapedAt:    meta.ScrapedAt.Format(time.RFC3339),
		Duration:     meta.Duration.Round(time.Millisecond).String(),
		Cancelled:    meta.Cancelled,
		Sources:      meta.Sources,
		Reviews:      make([]Review, 0, len(res.Reviews)),
	}
	if doc.Sources == nil {
		doc.Sources = []models.SourceReport{}
	}
	for _, r := range res.Reviews {
		doc.Reviews = append(doc.Reviews, Review{
			Title:             r.Title,
			Description:       r.Description,
			Date:              r.Date.Format(models.DateLayout),
			Rating:            r.Rating,
			Source:            r.Source.DisplayName(),
			ReviewerName:      r.ReviewerName,
			VerifiedPurchaser: r.VerifiedPurchaser,
			HelpfulCount:      r.HelpfulCount,
		})
	}
	return doc
}
