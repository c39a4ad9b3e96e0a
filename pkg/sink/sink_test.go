package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"reviewscraper/pkg/aggregator"
	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/logger"
	"reviewscraper/pkg/models"
)

func testResult(t *testing.T) *aggregator.Result {
	t.Helper()
	w, err := models.ParseDateWindow("2024-01-01", "2024-12-31")
	require.NoError(t, err)

	meta := models.NewRunMetadata("Acme", "all", w)
	meta.ScrapedAt = time.Date(2024, 7, 1, 12, 30, 0, 0, time.UTC)
	meta.Duration = 1500 * time.Millisecond
	meta.TotalReviews = 1
	meta.Sources = []models.SourceReport{{Source: models.SourceG2, Status: models.StatusSuccess, PagesFetched: 1, ReviewsKept: 1}}

	return &aggregator.Result{
		Reviews: []models.Review{{
			Title:             "Tom & Jerry <3",
			Description:       "Ünïcode stays as is",
			Date:              time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Rating:            4.5,
			Source:            models.SourceG2,
			ReviewerName:      "Jane D.",
			VerifiedPurchaser: true,
			HelpfulCount:      7,
		}},
		Metadata: meta,
	}
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testResult(t), FormatJSON, true))

	out := buf.String()
	assert.Contains(t, out, `"title": "Tom & Jerry <3"`, "HTML is not escaped")
	assert.Contains(t, out, "Ünïcode stays as is")
	assert.Contains(t, out, "\n  \"company\": \"Acme\"")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Acme", doc["company"])
	assert.Equal(t, "all", doc["source"])
	assert.Equal(t, map[string]interface{}{"start": "2024-01-01", "end": "2024-12-31"}, doc["date_range"])
	assert.Equal(t, 1.0, doc["total_reviews"])
	assert.Equal(t, "2024-07-01T12:30:00Z", doc["scraped_at"])
	assert.Equal(t, "1.5s", doc["duration"])

	reviews := doc["reviews"].([]interface{})
	require.Len(t, reviews, 1)
	assert.Equal(t, map[string]interface{}{
		"title":              "Tom & Jerry <3",
		"description":        "Ünïcode stays as is",
		"date":               "2024-03-04",
		"rating":             4.5,
		"source":             "G2",
		"reviewer_name":      "Jane D.",
		"verified_purchaser": true,
		"helpful_count":      7.0,
	}, reviews[0])
}

func TestEncodeCompactJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testResult(t), FormatJSON, false))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testResult(t), FormatYAML, true))

	var doc Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Acme", doc.Company)
	assert.Equal(t, "2024-12-31", doc.DateRange.End)
	require.Len(t, doc.Reviews, 1)
	assert.Equal(t, "G2", doc.Reviews[0].Source)
	require.Len(t, doc.Sources, 1)
	assert.Equal(t, models.StatusSuccess, doc.Sources[0].Status)
}

func TestEncodeUnknownFormat(t *testing.T) {
	assert.Error(t, Encode(&bytes.Buffer{}, testResult(t), "xml", false))
}

func TestEmptyResultEncodesEmptyArrays(t *testing.T) {
	res := testResult(t)
	res.Reviews = nil
	res.Metadata.Sources = nil

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, res, FormatJSON, false))
	assert.Contains(t, buf.String(), `"reviews":[]`)
	assert.Contains(t, buf.String(), `"sources":[]`)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("out.yaml", FormatJSON))
	assert.Equal(t, FormatYAML, FormatForPath("OUT.YML", FormatJSON))
	assert.Equal(t, FormatJSON, FormatForPath("out.json", FormatYAML))
	assert.Equal(t, FormatYAML, FormatForPath("out", FormatYAML))
	assert.Equal(t, FormatJSON, FormatForPath("out", ""))
}

func TestDefaultFilename(t *testing.T) {
	at := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	assert.Equal(t, "reviews_Acme_all_20240131_154500.json", DefaultFilename("Acme", "all", FormatJSON, at))
	assert.Equal(t, "reviews_Big_Co_g2,capterra_20240131_154500.yaml", DefaultFilename(" Big Co ", "g2,capterra", FormatYAML, at))
	assert.Equal(t, "reviews_A_B_g2_20240131_154500.json", DefaultFilename("A/B", "g2", "", at))
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "reviews.json")
	s := NewFileSink(path, FormatYAML, true)
	assert.Equal(t, FormatJSON, s.Format)

	require.NoError(t, s.Write(context.Background(), testResult(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.TotalReviews)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is renamed into place")
}

func TestFileSinkOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old: true\n"), 0644))

	require.NoError(t, NewFileSink(path, "", true).Write(context.Background(), testResult(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old: true")
	assert.Contains(t, string(data), "company: Acme")
}

func TestFileSinkUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := NewFileSink(filepath.Join(blocker, "reviews.json"), "", true).Write(context.Background(), testResult(t))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeSink, errs.TypeOf(err))
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := &WriterSink{W: &buf, Format: FormatJSON}
	require.NoError(t, s.Write(context.Background(), testResult(t)))
	assert.Contains(t, buf.String(), `"company":"Acme"`)
}

func TestMemorySink(t *testing.T) {
	s := &MemorySink{}
	assert.Nil(t, s.Last())

	res := testResult(t)
	require.NoError(t, s.Write(context.Background(), res))
	assert.Same(t, res, s.Last())
	assert.Equal(t, 1, s.Writes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, res), context.Canceled)
}

// flakySink fails the first n writes
type flakySink struct {
	failures int
	calls    int
}

func (s *flakySink) Write(context.Context, *aggregator.Result) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("disk full")
	}
	return nil
}

func TestDeliver(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		s := &flakySink{}
		require.NoError(t, Deliver(context.Background(), s, testResult(t), nil))
		assert.Equal(t, 1, s.calls)
	})

	t.Run("retries once", func(t *testing.T) {
		log := logger.NewTestLogger()
		s := &flakySink{failures: 1}
		require.NoError(t, Deliver(context.Background(), s, testResult(t), log))
		assert.Equal(t, 2, s.calls)
		assert.True(t, log.HasMessage("writing result failed, retrying once"))
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		log := logger.NewTestLogger()
		s := &flakySink{failures: 5}
		res := testResult(t)

		err := Deliver(context.Background(), s, res, log)
		require.Error(t, err)
		assert.Equal(t, 2, s.calls)
		assert.Equal(t, errs.ErrorTypeSink, errs.TypeOf(err))
		assert.Contains(t, err.Error(), "disk full")
		assert.Len(t, log.GetMessagesByLevel("ERROR"), 1)
		assert.Len(t, res.Reviews, 1, "result is untouched")
	})
}
