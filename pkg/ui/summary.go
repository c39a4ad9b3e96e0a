package ui

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"reviewscraper/pkg/models"
)

// RenderSummary writes a per-source table for a finished run
func RenderSummary(out io.Writer, meta models.RunMetadata) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Source", "Status", "Pages", "Skipped", "Records", "Dropped", "Duplicates", "Reviews", "Stop reason"})

	for _, r := range meta.Sources {
		t.AppendRow(table.Row{
			r.Source.DisplayName(),
			statusText(r.Status),
			r.PagesFetched,
			r.PagesSkipped,
			r.RecordsSeen,
			r.RecordsDropped,
			r.Duplicates,
			r.ReviewsKept,
			r.StopReason,
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", "", "", "", "", strconv.Itoa(meta.TotalReviews), ""})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func statusText(s models.SourceStatus) string {
	switch s {
	case models.StatusSuccess:
		return Green(string(s))
	case models.StatusFailed:
		return Red(string(s))
	default:
		return Yellow(string(s))
	}
}
