package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"reviewscraper/pkg/models"
	"reviewscraper/pkg/normalize"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

type sourceProgress struct {
	pages   int
	skipped int
	records int
	dropped int
	started time.Time
}

// ConsoleObserver prints one progress line per event for each source.
// It is safe for concurrent use.
type ConsoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	maxPages int
	debug    bool
	sources  map[models.Source]*sourceProgress
	now      func() time.Time
}

// NewConsoleObserver creates a console observer. maxPages scales the
// progress bar; debug also prints every dropped record.
func NewConsoleObserver(out io.Writer, maxPages int, debug bool) *ConsoleObserver {
	if out == nil {
		out = Output
	}
	return &ConsoleObserver{
		out:      out,
		maxPages: maxPages,
		debug:    debug,
		sources:  make(map[models.Source]*sourceProgress),
		now:      time.Now,
	}
}

func (c *ConsoleObserver) progress(src models.Source) *sourceProgress {
	p, ok := c.sources[src]
	if !ok {
		p = &sourceProgress{started: c.now()}
		c.sources[src] = p
	}
	return p
}

func (c *ConsoleObserver) SourceStarted(src models.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress(src)
	fmt.Fprintf(c.out, "%s %s\n", Magenta("[SCANNING]"), Cyan(src.DisplayName()))
}

func (c *ConsoleObserver) PageFetched(src models.Source, page, records int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress(src)
	p.pages++
	p.records += records
	fmt.Fprintf(c.out, "  %s [%s] page %d • %d records\n",
		Cyan(fmt.Sprintf("%-11s", src.DisplayName())),
		c.bar(p.pages+p.skipped),
		page,
		records)
}

func (c *ConsoleObserver) PageSkipped(src models.Source, page int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress(src)
	p.skipped++
	fmt.Fprintf(c.out, "  %s [%s] page %d • %s\n",
		Cyan(fmt.Sprintf("%-11s", src.DisplayName())),
		c.bar(p.pages+p.skipped),
		page,
		Red(fmt.Sprintf("skipped: %v", err)))
}

func (c *ConsoleObserver) RecordDropped(src models.Source, reason normalize.DropReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress(src).dropped++
	if c.debug {
		fmt.Fprintf(c.out, "  %s %s\n", Dim(src.DisplayName()), Dim("dropped record: "+string(reason)))
	}
}

func (c *ConsoleObserver) SourceFailed(src models.Source, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := "no pages could be processed"
	if err != nil {
		msg = err.Error()
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", Red("✗"), src.DisplayName(), Red(msg))
}

func (c *ConsoleObserver) SourceFinished(r models.SourceReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress(r.Source)
	elapsed := c.now().Sub(p.started).Round(time.Millisecond)

	mark := Green("✓")
	switch r.Status {
	case models.StatusPartial, models.StatusCancelled:
		mark = Yellow("!")
	case models.StatusFailed:
		mark = Red("✗")
	}
	fmt.Fprintf(c.out, "%s %s: %d reviews from %d pages (%s) • %s\n",
		mark, r.Source.DisplayName(), r.ReviewsKept, r.PagesFetched, r.Status, Dim(elapsed.String()))
}

func (c *ConsoleObserver) bar(done int) string {
	if c.maxPages <= 0 {
		return strings.Repeat(ProgressEmpty, barWidth)
	}
	filled := done * barWidth / c.maxPages
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
}
