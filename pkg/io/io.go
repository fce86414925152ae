// Package io provides input/output contracts for detection runs.
package io

import (
	"encoding/json"
	"fmt"
	stdio "io"
	"strings"
	"text/tabwriter"

	"github.com/hed1ad/wqguard/pkg/pipeline"
	"github.com/hed1ad/wqguard/pkg/water"
)

// TableReader is the interface for reading an uploaded table.
type TableReader interface {
	// ReadTable returns the header and every record.
	ReadTable() (water.RawTable, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing detection results.
type Writer interface {
	Write(res *pipeline.Result) error
}

// JSONWriter writes the full result as one JSON document.
type JSONWriter struct {
	w      stdio.Writer
	indent bool
}

// NewJSONWriter creates a JSON writer; indent pretty-prints the output.
func NewJSONWriter(w stdio.Writer, indent bool) *JSONWriter {
	return &JSONWriter{w: w, indent: indent}
}

func (j *JSONWriter) Write(res *pipeline.Result) error {
	enc := json.NewEncoder(j.w)
	if j.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

// TextWriter renders a result for terminals: the preview, the anomaly
// summary and the flagged samples of every parameter.
type TextWriter struct {
	w stdio.Writer
}

// NewTextWriter creates a text writer.
func NewTextWriter(w stdio.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (t *TextWriter) Write(res *pipeline.Result) error {
	tw := tabwriter.NewWriter(t.w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (%s model, %d samples)\n\n", res.RunID, res.Variant, res.Table.Len())

	fmt.Fprintln(tw, "Preview")
	fmt.Fprintln(tw, strings.Join(res.Preview.Columns, "\t"))
	for _, row := range res.Preview.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	fmt.Fprintln(tw, "\nAnomaly summary")
	fmt.Fprintln(tw, "KEY\tANOMALIES\tRATE")
	for _, c := range res.Report.Summary {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", c.Key, c.Count, 100*res.Report.AnomalyRate[c.Key])
	}

	for _, s := range res.Report.Series {
		if len(s.Anomalies) == 0 {
			continue
		}
		fmt.Fprintf(tw, "\n%s anomalies (mean %.3f, std %.3f)\n", s.Parameter, s.Stats.Mean, s.Stats.Std)
		fmt.Fprintln(tw, "INDEX\tVALUE")
		for _, p := range s.Anomalies {
			fmt.Fprintf(tw, "%d\t%g\n", p.Index, p.Value)
		}
	}

	return tw.Flush()
}
