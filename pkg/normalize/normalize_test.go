package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
)

func window(t *testing.T, start, end string) models.DateWindow {
	t.Helper()
	w, err := models.ParseDateWindow(start, end)
	require.NoError(t, err)
	return w
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeKeepsValidCandidate(t *testing.T) {
	w := window(t, "2024-01-01", "2024-12-31")
	c := models.Candidate{
		Title:        "  Solid   CRM ",
		Description:  "<p>The pipeline view &amp; reporting.</p>",
		Date:         "2024-03-04",
		Rating:       4.5,
		RatingScale:  5,
		ReviewerName: "Jane D.",
		Verified:     true,
		HelpfulCount: 7,
	}

	got, ok := Normalize(c, models.SourceG2, w)
	require.True(t, ok)

	want := models.Review{
		Title:             "Solid CRM",
		Description:       "The pipeline view & reporting.",
		Date:              date(2024, time.March, 4),
		Rating:            4.5,
		Source:            models.SourceG2,
		ReviewerName:      "Jane D.",
		VerifiedPurchaser: true,
		HelpfulCount:      7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-04", date(2024, time.March, 4), true},
		{"2024-05-20T14:03:00.000Z", date(2024, time.May, 20), true},
		{"2024-06-01T00:00:00Z", date(2024, time.June, 1), true},
		{"2024-06-01T23:30:00-05:00", date(2024, time.June, 1), true},
		{"Jun 12, 2024", date(2024, time.June, 12), true},
		{"June 12, 2024", date(2024, time.June, 12), true},
		{"06/12/2024", date(2024, time.June, 12), true},
		{" 2024-03-04 ", date(2024, time.March, 4), true},
		{"12 June 2024", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name          string
		rating, scale float64
		want          float64
		ok            bool
	}{
		{"five point", 4, 5, 4, true},
		{"zero scale means five", 3.5, 0, 3.5, true},
		{"ten point", 9, 10, 4.5, true},
		{"ten point rounding", 7, 10, 3.5, true},
		{"hundred point", 88, 100, 4.4, true},
		{"upper bound", 5, 5, 5, true},
		{"lower bound", 0, 5, 0, true},
		{"above scale", 6, 5, 0, false},
		{"negative", -1, 5, 0, false},
		{"negative scale", 3, -5, 0, false},
		{"just above five", 5.04, 5, 0, false},
		{"just above ten", 10.09, 10, 0, false},
		{"just below zero", -0.04, 5, 0, false},
		{"negative zero", math.Copysign(0, -1), 5, 0, true},
		{"infinite", math.Inf(1), 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Rescale(tt.rating, tt.scale)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.Signbit(got), "rescaled rating must not be negative zero")
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"plain":                            "plain",
		"  spaced \t out\n text ":          "spaced out text",
		"<b>bold</b> claim":                "bold claim",
		"Tom &amp; Jerry":                  "Tom & Jerry",
		"a < b":                            "a < b",
		"it&#39;s":                         "it's",
		"<p>one</p><p>two</p>":             "one two",
		"&lt;script&gt;x&lt;/script&gt;ok": "ok",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanText(in), in)
	}
}

func TestCleanParagraphs(t *testing.T) {
	assert.Equal(t, "Price\n\nSupport hours", CleanParagraphs("Price\n\nSupport hours"))
	assert.Equal(t, "first line\nsecond\n\nthird", CleanParagraphs("  first   line\r\nsecond\n\n\n\n third  \n\n"))
	assert.Equal(t, "", CleanParagraphs(""))
}

func TestNormalizeDrops(t *testing.T) {
	w := window(t, "2024-01-01", "2024-06-30")
	base := models.Candidate{Title: "Fine", Date: "2024-03-01", Rating: 4, RatingScale: 5}

	tests := []struct {
		name   string
		mutate func(*models.Candidate)
		reason DropReason
	}{
		{"missing title", func(c *models.Candidate) { c.Title = "" }, ReasonMissingTitle},
		{"markup only title", func(c *models.Candidate) { c.Title = "<br/>" }, ReasonMissingTitle},
		{"missing date", func(c *models.Candidate) { c.Date = "  " }, ReasonMissingDate},
		{"bad date", func(c *models.Candidate) { c.Date = "last week" }, ReasonBadDate},
		{"before window", func(c *models.Candidate) { c.Date = "2023-12-31" }, ReasonOutOfWindow},
		{"after window", func(c *models.Candidate) { c.Date = "2024-07-01" }, ReasonOutOfWindow},
		{"rating over scale", func(c *models.Candidate) { c.Rating = 11; c.RatingScale = 10 }, ReasonBadRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			n := New(models.SourceCapterra, w, nil)
			_, reason := n.Normalize(c)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, 1, n.Stats().Dropped[tt.reason])
			assert.Zero(t, n.Stats().Kept)
		})
	}
}

func TestNormalizeWindowBoundsInclusive(t *testing.T) {
	w := window(t, "2024-01-01", "2024-01-31")
	for _, d := range []string{"2024-01-01", "2024-01-31", "2024-01-31T23:59:59Z"} {
		_, ok := Normalize(models.Candidate{Title: "t", Date: d, Rating: 3}, models.SourceG2, w)
		assert.True(t, ok, d)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	w := window(t, "2024-01-01", "2024-12-31")
	got, ok := Normalize(models.Candidate{
		Title:        "No name",
		Date:         "2024-02-02",
		Rating:       8,
		RatingScale:  10,
		ReviewerName: "   ",
		HelpfulCount: -3,
	}, models.SourceTrustRadius, w)

	require.True(t, ok)
	assert.Equal(t, AnonymousReviewer, got.ReviewerName)
	assert.Zero(t, got.HelpfulCount)
	assert.Equal(t, 4.0, got.Rating)
	assert.Equal(t, models.SourceTrustRadius, got.Source)
}

func TestNormalizerLogging(t *testing.T) {
	w := window(t, "2024-01-01", "2024-12-31")
	log := logger.NewTestLogger()
	n := New(models.SourceG2, w, log)

	n.Normalize(models.Candidate{Title: "old", Date: "2020-01-01", Rating: 3})
	n.Normalize(models.Candidate{Title: "loud", Date: "2024-01-02", Rating: 9})
	n.Normalize(models.Candidate{Date: "2024-01-02", Rating: 3})
	_, reason := n.Normalize(models.Candidate{Title: "kept", Date: "2024-01-02", Rating: 3})
	n.Count(ReasonUnmappable)

	assert.Empty(t, reason)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, log.GetMessagesByLevel("DEBUG"), 1)
	assert.False(t, log.HasMessage("out_of_window"))

	stats := n.Stats()
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 4, stats.TotalDropped())
	assert.Equal(t, map[DropReason]int{
		ReasonOutOfWindow:  1,
		ReasonBadRating:    1,
		ReasonMissingTitle: 1,
		ReasonUnmappable:   1,
	}, stats.Dropped)
}
