// Package normalize turns adapter candidates into canonical reviews.
//
// Records that cannot become a valid review are dropped, never returned as
// errors: a missing title or date, an unparseable date, a date outside the
// requested window, or a rating that falls outside 0..5 once rescaled.
package normalize

import (
	"html"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
)

// DropReason explains why a candidate did not become a review
type DropReason string

const (
	ReasonMissingTitle DropReason = "missing_title"
	ReasonMissingDate  DropReason = "missing_date"
	ReasonBadDate      DropReason = "bad_date"
	ReasonOutOfWindow  DropReason = "out_of_window"
	ReasonBadRating    DropReason = "bad_rating"
	// ReasonUnmappable is recorded by callers when an adapter cannot map a record at all
	ReasonUnmappable DropReason = "unmappable"
)

// AnonymousReviewer replaces empty reviewer names
const AnonymousReviewer = "Anonymous"

// dateLayouts are tried in order. RFC3339Nano also accepts values without
// fractional seconds.
var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339Nano,
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
		policy.AddSpaceWhenStrippingTag(true)
	})
	return policy
}

// Stats counts normalization outcomes for one source
type Stats struct {
	Kept    int
	Dropped map[DropReason]int
}

// TotalDropped sums drops over all reasons
func (s Stats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// Normalizer validates candidates from one source against one window.
// It is not safe for concurrent use; each source chain owns its own.
type Normalizer struct {
	source models.Source
	window models.DateWindow
	log    logger.Logger
	stats  Stats
}

// New creates a Normalizer. A nil logger discards output.
func New(src models.Source, w models.DateWindow, log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Normalizer{
		source: src,
		window: w,
		log:    log.WithField("source", string(src)),
		stats:  Stats{Dropped: make(map[DropReason]int)},
	}
}

// Normalize converts a candidate. The returned reason is empty when the
// review was kept.
func (n *Normalizer) Normalize(c models.Candidate) (models.Review, DropReason) {
	r, reason := normalize(c, n.source, n.window)
	if reason == "" {
		n.stats.Kept++
		return r, ""
	}

	n.Count(reason)
	switch reason {
	case ReasonOutOfWindow:
	case ReasonBadRating:
		n.log.WarnWithFields("dropping review with out of range rating", map[string]interface{}{
			"title":  c.Title,
			"rating": c.Rating,
			"scale":  c.RatingScale,
		})
	default:
		n.log.DebugWithFields("dropping record", map[string]interface{}{
			"reason": string(reason),
			"title":  c.Title,
			"date":   c.Date,
		})
	}
	return models.Review{}, reason
}

// Count records a drop decided outside Normalize
func (n *Normalizer) Count(reason DropReason) {
	n.stats.Dropped[reason]++
}

// Stats returns a snapshot of the counts so far
func (n *Normalizer) Stats() Stats {
	out := Stats{Kept: n.stats.Kept, Dropped: make(map[DropReason]int, len(n.stats.Dropped))}
	for k, v := range n.stats.Dropped {
		out.Dropped[k] = v
	}
	return out
}

// Normalize converts a single candidate without keeping statistics.
func Normalize(c models.Candidate, src models.Source, w models.DateWindow) (models.Review, bool) {
	r, reason := normalize(c, src, w)
	return r, reason == ""
}

func normalize(c models.Candidate, src models.Source, w models.DateWindow) (models.Review, DropReason) {
	title := CleanText(c.Title)
	if title == "" {
		return models.Review{}, ReasonMissingTitle
	}

	raw := strings.TrimSpace(c.Date)
	if raw == "" {
		return models.Review{}, ReasonMissingDate
	}
	date, ok := ParseDate(raw)
	if !ok {
		return models.Review{}, ReasonBadDate
	}
	if !w.Contains(date) {
		return models.Review{}, ReasonOutOfWindow
	}

	rating, ok := Rescale(c.Rating, c.RatingScale)
	if !ok {
		return models.Review{}, ReasonBadRating
	}

	reviewer := CleanText(c.ReviewerName)
	if reviewer == "" {
		reviewer = AnonymousReviewer
	}
	helpful := c.HelpfulCount
	if helpful < 0 {
		helpful = 0
	}

	return models.Review{
		Title:             title,
		Description:       CleanParagraphs(c.Description),
		Date:              date,
		Rating:            rating,
		Source:            src,
		ReviewerName:      reviewer,
		VerifiedPurchaser: c.Verified,
		HelpfulCount:      uint(helpful),
	}, ""
}

// ParseDate reads a platform date and returns the calendar date it names,
// at midnight UTC. Timestamps keep the calendar date written in their own
// offset.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// Rescale maps a rating on a 0..scale range onto 0..5, rounded to one
// decimal. A zero scale means the rating is already on a 5 point scale.
func Rescale(rating, scale float64) (float64, bool) {
	if scale == 0 {
		scale = 5
	}
	if scale < 0 || math.IsNaN(rating) || rating < 0 || rating > scale {
		return 0, false
	}
	// adding zero turns a rounded -0 into 0
	return math.Round(rating*5/scale*10)/10 + 0, true
}

// CleanText strips markup, decodes entities and collapses all whitespace.
func CleanText(s string) string {
	return strings.Join(strings.Fields(sanitize(s)), " ")
}

// CleanParagraphs is CleanText that keeps paragraph breaks: whitespace is
// collapsed within each line and runs of blank lines become one.
func CleanParagraphs(s string) string {
	lines := strings.Split(sanitize(s), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// sanitize decodes entities first so escaped markup is stripped too, then
// decodes what the sanitizer re-escaped.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return html.UnescapeString(strictPolicy().Sanitize(html.UnescapeString(s)))
}
