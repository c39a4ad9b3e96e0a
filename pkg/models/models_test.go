package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "reviewscraper/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseDateWindow(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		sentinel error
	}{
		{name: "valid", start: "2024-01-01", end: "2024-12-31"},
		{name: "single day", start: "2024-03-15", end: "2024-03-15"},
		{name: "bad start", start: "2024/01/01", end: "2024-12-31", sentinel: errs.ErrInvalidDateFormat},
		{name: "bad end", start: "2024-01-01", end: "tomorrow", sentinel: errs.ErrInvalidDateFormat},
		{name: "impossible date", start: "2024-02-30", end: "2024-03-01", sentinel: errs.ErrInvalidDateFormat},
		{name: "inverted", start: "2024-06-01", end: "2024-01-01", sentinel: errs.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseDateWindow(tt.start, tt.end)
			if tt.sentinel == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.start, w.Start().Format(DateLayout))
				assert.Equal(t, tt.end, w.End().Format(DateLayout))
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))
		})
	}
}

func TestDateWindowContains(t *testing.T) {
	w, err := ParseDateWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	tests := []struct {
		date time.Time
		want bool
	}{
		{day("2023-12-31"), false},
		{day("2024-01-01"), true},
		{day("2024-01-15"), true},
		{day("2024-01-31"), true},
		{time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), true},
		{day("2024-02-01"), false},
		{day("2024-02-05"), false},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format(time.RFC3339), func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.date))
		})
	}
}

func TestDateWindowContainsBoundaryProperty(t *testing.T) {
	start, end := day("2024-03-10"), day("2024-03-20")
	w, err := NewDateWindow(start, end)
	require.NoError(t, err)

	for d := start.AddDate(0, 0, -5); d.Before(end.AddDate(0, 0, 6)); d = d.AddDate(0, 0, 1) {
		want := !d.Before(start) && !d.After(end)
		assert.Equal(t, want, w.Contains(d), d.Format(DateLayout))
	}
	assert.Equal(t, 11, w.Days())
}

func TestDateWindowEndsAfter(t *testing.T) {
	w, err := ParseDateWindow("2024-01-01", "2024-06-30")
	require.NoError(t, err)

	assert.True(t, w.EndsAfter(day("2024-06-29")))
	assert.False(t, w.EndsAfter(time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-01..2024-06-30", w.String())
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    []Source
		wantErr bool
	}{
		{in: "all", want: AllSources},
		{in: "ALL", want: AllSources},
		{in: "g2", want: []Source{SourceG2}},
		{in: "b", want: []Source{SourceCapterra}},
		{in: "trustradius, g2", want: []Source{SourceTrustRadius, SourceG2}},
		{in: "g2,a", want: []Source{SourceG2}},
		{in: "yelp", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSelector(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrUnknownSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "all", SelectorString(AllSources))
	assert.Equal(t, "capterra,g2", SelectorString([]Source{SourceCapterra, SourceG2}))
}

func TestSourceDisplayName(t *testing.T) {
	assert.Equal(t, "G2", SourceG2.DisplayName())
	assert.Equal(t, "Capterra", SourceCapterra.DisplayName())
	assert.Equal(t, "TrustRadius", SourceTrustRadius.DisplayName())
}

func TestReviewKey(t *testing.T) {
	a := Review{Source: SourceG2, ReviewerName: "Jo", Date: day("2024-05-01"), Title: "Great", Rating: 5}
	b := a
	b.Rating = 1
	b.Description = "different body"
	c := a
	c.Source = SourceCapterra

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestRunMetadata(t *testing.T) {
	w, err := ParseDateWindow("2024-01-01", "2024-12-31")
	require.NoError(t, err)

	m := NewRunMetadata("Acme", "all", w)
	assert.NotEmpty(t, m.RunID)
	assert.NotEqual(t, m.RunID, NewRunMetadata("Acme", "all", w).RunID)

	m.Sources = []SourceReport{
		{Source: SourceG2, Status: StatusSuccess},
		{Source: SourceCapterra, Status: StatusFailed},
	}
	r, ok := m.Report(SourceCapterra)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, []Source{SourceCapterra}, m.Failed())

	_, ok = m.Report(SourceTrustRadius)
	assert.False(t, ok)
}
