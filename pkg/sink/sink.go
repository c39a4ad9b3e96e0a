package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"reviewscraper/pkg/aggregator"
	errs "reviewscraper/pkg/errors"
	"reviewscraper/pkg/logger"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Sink receives the result of a run
type Sink interface {
	Write(ctx context.Context, res *aggregator.Result) error
}

// Encode serializes a result in the given format. JSON is written as UTF-8
// without HTML escaping; pretty indents it by two spaces.
func Encode(w io.Writer, res *aggregator.Result, format string, pretty bool) error {
	doc := NewDocument(res)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if pretty {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatForPath picks the format from a file extension, falling back to
// the given default.
func FormatForPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	if fallback == "" {
		return FormatJSON
	}
	return fallback
}

// DefaultFilename names an output file after the company, the source
// selector and the time of the run.
func DefaultFilename(company, selector, format string, at time.Time) string {
	ext := ".json"
	if format == FormatYAML {
		ext = ".yaml"
	}
	return fmt.Sprintf("reviews_%s_%s_%s%s", fileSafe(company), fileSafe(selector), at.Format("20060102_150405"), ext)
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}

// FileSink writes the result to a file. The file is written to a
// temporary name in the same directory and renamed into place.
type FileSink struct {
	Path   string
	Format string
	Pretty bool
}

// NewFileSink creates a file sink whose format follows the path extension
func NewFileSink(path, defaultFormat string, pretty bool) *FileSink {
	return &FileSink{Path: path, Format: FormatForPath(path, defaultFormat), Pretty: pretty}
}

func (s *FileSink) Write(ctx context.Context, res *aggregator.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, res, s.Format, s.Pretty); err != nil {
		return errs.Wrap(errs.ErrorTypeSink, err, "encode result")
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeSink, err, "failed to create output directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeSink, err, "failed to create temporary file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(buf.Bytes())
	if err == nil {
		err = tmp.Chmod(0644)
	}
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.ErrorTypeSink, err, "failed to write output")
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.ErrorTypeSink, closeErr, "failed to close file")
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.ErrorTypeSink, err, "failed to rename temporary file")
	}
	return nil
}

// WriterSink streams the result to a writer, such as stdout
type WriterSink struct {
	W      io.Writer
	Format string
	Pretty bool
}

func (s *WriterSink) Write(ctx context.Context, res *aggregator.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Encode(s.W, res, s.Format, s.Pretty); err != nil {
		return errs.Wrap(errs.ErrorTypeSink, err, "write result")
	}
	return nil
}

// MemorySink keeps the last result written to it
type MemorySink struct {
	mu     sync.Mutex
	last   *aggregator.Result
	writes int
}

func (s *MemorySink) Write(ctx context.Context, res *aggregator.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = res
	s.writes++
	return nil
}

// Last returns the most recent result, or nil
func (s *MemorySink) Last() *aggregator.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Writes returns how many results were written
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Deliver writes res to s, retrying once on failure. The result stays with
// the caller either way so nothing collected is lost.
func Deliver(ctx context.Context, s Sink, res *aggregator.Result, log logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}

	err := s.Write(ctx, res)
	if err == nil {
		return nil
	}
	log.WithError(err).Warn("writing result failed, retrying once")

	if err := s.Write(ctx, res); err != nil {
		log.WithError(err).Error("writing result failed")
		if errs.IsType(err, errs.ErrorTypeSink) {
			return err
		}
		return errs.Wrap(errs.ErrorTypeSink, err, "deliver result")
	}
	return nil
}
