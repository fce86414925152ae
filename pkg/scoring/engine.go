// Package scoring applies the registered models to a validated sensor table.
package scoring

import (
	"context"
	"fmt"

	"github.com/hed1ad/wqguard/pkg/detectors"
	"github.com/hed1ad/wqguard/pkg/water"
)

// Models is the read-only view of the model registry the engine needs.
type Models interface {
	Variant() water.Variant
	Model(p water.Parameter) (detectors.Model, bool)
	Joint() detectors.Model
}

// Engine scores sensor tables. It keeps no state between calls.
type Engine struct {
	models Models
}

// NewEngine creates an engine over a loaded registry.
func NewEngine(models Models) *Engine {
	return &Engine{models: models}
}

// Score parses every required column, then runs the models and returns the
// annotated table. Any invalid column or model failure aborts the whole run.
func (e *Engine) Score(ctx context.Context, t *water.SensorTable) (*water.AnnotatedTable, error) {
	if t.Len() == 0 {
		return nil, water.ErrEmptyTable
	}

	values := make(map[water.Parameter][]float64)
	for _, p := range water.Parameters() {
		v, err := t.Numeric(p)
		if err != nil {
			return nil, err
		}
		values[p] = v
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		cols []water.ScoredColumn
		err  error
	)
	switch v := e.models.Variant(); v {
	case water.PerParameter:
		cols, err = e.scorePerParameter(values)
	case water.Joint:
		cols, err = e.scoreJoint(values, t.Len())
	default:
		err = fmt.Errorf("unsupported model variant %s", v)
	}
	if err != nil {
		return nil, err
	}

	return water.NewAnnotatedTable(e.models.Variant(), values, cols)
}

func (e *Engine) scorePerParameter(values map[water.Parameter][]float64) ([]water.ScoredColumn, error) {
	cols := make([]water.ScoredColumn, 0, len(values))
	for _, p := range water.Parameters() {
		m, ok := e.models.Model(p)
		if !ok {
			return nil, fmt.Errorf("no model registered for %s", p)
		}
		col, err := run(m, detectors.Column(values[p]), water.LabelColumn(p))
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", p, err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (e *Engine) scoreJoint(values map[water.Parameter][]float64, rows int) ([]water.ScoredColumn, error) {
	m := e.models.Joint()
	if m == nil {
		return nil, fmt.Errorf("no joint model registered")
	}
	params := water.Parameters()
	matrix := make([][]float64, rows)
	for i := range matrix {
		row := make([]float64, len(params))
		for j, p := range params {
			row[j] = values[p][i]
		}
		matrix[i] = row
	}
	col, err := run(m, matrix, water.AnomalyColumn)
	if err != nil {
		return nil, fmt.Errorf("score joint model: %w", err)
	}
	return []water.ScoredColumn{col}, nil
}

func run(m detectors.Model, data [][]float64, key string) (water.ScoredColumn, error) {
	raw, err := m.Classify(data)
	if err != nil {
		return water.ScoredColumn{}, err
	}
	if len(raw) != len(data) {
		return water.ScoredColumn{}, fmt.Errorf("model returned %d labels for %d samples", len(raw), len(data))
	}
	scores, err := m.Predict(data)
	if err != nil {
		return water.ScoredColumn{}, err
	}
	if len(scores) != len(data) {
		return water.ScoredColumn{}, fmt.Errorf("model returned %d scores for %d samples", len(scores), len(data))
	}
	return water.ScoredColumn{Key: key, Labels: translate(raw), Scores: scores}, nil
}

// translate maps the sentinel labels onto water.Label; only
// detectors.LabelAnomaly is an anomaly.
func translate(raw []int) []water.Label {
	labels := make([]water.Label, len(raw))
	for i, v := range raw {
		if v == detectors.LabelAnomaly {
			labels[i] = water.Anomaly
		}
	}
	return labels
}
