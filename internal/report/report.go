// Package report renders replay data as terminal or Markdown tables.
package report

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/history"
	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
	"github.com/crimson-sun/machwatch/internal/pipeline"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// PreviewRows is the number of rows shown by a dataset preview.
const PreviewRows = 5

const timeLayout = "2006-01-02 15:04:05.000"

func newTable(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	w.Style().Format.Header = text.FormatDefault
	w.Style().Format.Footer = text.FormatDefault
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// Preview renders the first n rows of ds with every column, indexed from 0.
func Preview(ds *dataset.Dataset, n int, m Mode) string {
	w := newTable(m)
	header := table.Row{""}
	for _, h := range ds.Header {
		header = append(header, h)
	}
	w.AppendHeader(header)

	n = min(n, ds.Len())
	for i := range n {
		row := table.Row{i}
		for _, cell := range ds.Record(i) {
			row = append(row, cell)
		}
		w.AppendRow(row)
	}
	w.SetCaption("%d of %d rows", n, ds.Len())
	return render(w, m)
}

// Summary renders the totals of one replay.
func Summary(s pipeline.Summary, m Mode) string {
	w := newTable(m)
	w.AppendHeader(table.Row{"Source", "Rows", "Normal", "Failures", "First failure", "Elapsed"})
	first := "-"
	if s.FirstFailure > 0 {
		first = fmt.Sprintf("row %d", s.FirstFailure)
	}
	w.AppendRow(table.Row{s.Source, s.Rows, s.Normals(), s.Failures, first, s.Elapsed.Round(time.Millisecond)})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return render(w, m)
}

// Logs renders log sink lines. Lines that do not parse are shown verbatim.
func Logs(lines []string, m Mode) string {
	w := newTable(m)
	w.AppendHeader(table.Row{"Time", "Temperature", "Rotational speed", "Torque", "Prediction"})
	failures := 0
	for _, line := range lines {
		rec, err := output.ParseLogLine(line)
		if err != nil {
			w.AppendRow(table.Row{line})
			continue
		}
		if rec.Label == model.Failure {
			failures++
		}
		w.AppendRow(table.Row{
			rec.Timestamp.Local().Format(timeLayout),
			fmt.Sprintf("%.2f", rec.Temperature),
			output.Whole(rec.RotationalSpeed),
			output.ShortFloat(rec.Torque),
			rec.Label.String(),
		})
	}
	w.AppendFooter(table.Row{fmt.Sprintf("%d lines", len(lines)), "", "", "failures", failures})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return render(w, m)
}

// Runs renders recorded replays, newest first as given.
func Runs(runs []history.Run, m Mode) string {
	w := newTable(m)
	w.AppendHeader(table.Row{"Run", "Source", "Model", "Started", "Status", "Rows", "Failures"})
	for _, r := range runs {
		w.AppendRow(table.Row{
			shortID(r.ID),
			r.Source,
			r.Model,
			r.StartedAt.Local().Format(timeLayout),
			r.Status,
			r.Rows,
			r.Failures,
		})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 40},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return render(w, m)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
