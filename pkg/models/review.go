package models

import "time"

// Review is the canonical review record shared by all platforms.
// Reviews are produced by the normalizer and never mutated afterwards.
type Review struct {
	Title             string
	Description       string
	Date              time.Time
	Rating            float64
	Source            Source
	ReviewerName      string
	VerifiedPurchaser bool
	HelpfulCount      uint
}

// DedupKey identifies duplicate reviews
type DedupKey struct {
	Source       Source
	ReviewerName string
	Date         string
	Title        string
}

// Key returns the identity used for cross-page deduplication
func (r Review) Key() DedupKey {
	return DedupKey{
		Source:       r.Source,
		ReviewerName: r.ReviewerName,
		Date:         r.Date.Format(DateLayout),
		Title:        r.Title,
	}
}
