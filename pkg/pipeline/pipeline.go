// Package pipeline runs one upload through normalization, scoring and
// reporting.
package pipeline

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hed1ad/wqguard/pkg/report"
	"github.com/hed1ad/wqguard/pkg/scoring"
	"github.com/hed1ad/wqguard/pkg/water"
)

// DefaultPreviewRows matches the head of the table shown before a run.
const DefaultPreviewRows = 5

// Options configure a Pipeline.
type Options struct {
	Mode        water.Mode
	PreviewRows int
	Logger      *log.Logger
	Metrics     *Metrics
}

// Pipeline is safe for concurrent use: runs share only the read-only models.
type Pipeline struct {
	models      scoring.Models
	normalizer  *water.Normalizer
	engine      *scoring.Engine
	previewRows int
	logger      *log.Logger
	metrics     *Metrics
}

// New creates a pipeline over loaded models.
func New(models scoring.Models, opts Options) *Pipeline {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		models:      models,
		normalizer:  water.NewNormalizer(opts.Mode),
		engine:      scoring.NewEngine(models),
		previewRows: opts.PreviewRows,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Result is the full output of one run.
type Result struct {
	RunID     string                `json:"run_id"`
	Variant   water.Variant         `json:"variant"`
	Preview   water.Preview         `json:"preview"`
	Table     *water.AnnotatedTable `json:"table"`
	Report    *report.Report        `json:"report"`
	ElapsedMS float64               `json:"elapsed_ms"`
}

// Summary returns the anomaly counts of the run.
func (r *Result) Summary() water.AnomalySummary {
	return r.Report.Summary
}

// Variant returns the active model layout.
func (p *Pipeline) Variant() water.Variant {
	return p.models.Variant()
}

// Preview validates the upload and returns its first rows without scoring.
func (p *Pipeline) Preview(raw water.RawTable) (water.Preview, error) {
	t, err := p.normalizer.Normalize(raw)
	if err != nil {
		return water.Preview{}, err
	}
	return t.Preview(p.previewRows), nil
}

// Run scores raw and builds the report. On error nothing partial is returned.
func (p *Pipeline) Run(ctx context.Context, raw water.RawTable) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	variant := p.models.Variant()

	res, err := p.run(ctx, raw)
	elapsed := time.Since(start)

	var (
		summary water.AnomalySummary
		rows    int
	)
	if res != nil {
		summary, rows = res.Summary(), res.Table.Len()
	}
	p.metrics.observe(variant, elapsed.Seconds(), summary, rows, err)

	if err != nil {
		p.logger.Printf("run %s failed (%s): %v", runID, variant, err)
		return nil, err
	}

	res.RunID = runID
	res.ElapsedMS = float64(elapsed.Microseconds()) / 1000
	p.logger.Printf("run %s completed: variant=%s rows=%d anomalies=%d headers=%s (%.1fms)",
		runID, variant, rows, summary.Total(), p.normalizer.Mode(), res.ElapsedMS)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, raw water.RawTable) (*Result, error) {
	t, err := p.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	annotated, err := p.engine.Score(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Result{
		Variant: annotated.Variant(),
		Preview: t.Preview(p.previewRows),
		Table:   annotated,
		Report:  report.Build(annotated),
	}, nil
}
