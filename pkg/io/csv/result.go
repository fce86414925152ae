package csv

import (
	"io"

	"github.com/hed1ad/wqguard/pkg/pipeline"
)

// ResultWriter writes the annotated table of a run.
type ResultWriter struct {
	w io.Writer
}

// NewResultWriter creates a writer emitting CSV to w.
func NewResultWriter(w io.Writer) *ResultWriter {
	return &ResultWriter{w: w}
}

func (r *ResultWriter) Write(res *pipeline.Result) error {
	return WriteAnnotated(r.w, res.Table)
}
