package water

import (
	"math"
	"strconv"
	"strings"
)

// RawTable is delimited tabular input as read from an upload: a header row
// followed by records in upload order.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// SensorTable is a validated table keyed by canonical parameter. Cells are
// kept as uploaded; Numeric converts a column on demand.
type SensorTable struct {
	columns map[Parameter][]string
	// source records the raw header each parameter was taken from.
	source map[Parameter]string
	rows   int
}

// Len returns the number of samples.
func (t *SensorTable) Len() int {
	return t.rows
}

// Parameters returns the table's columns in declaration order.
func (t *SensorTable) Parameters() []Parameter {
	out := make([]Parameter, 0, len(t.columns))
	for _, p := range Parameters() {
		if _, ok := t.columns[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// SourceColumn returns the raw header name that was mapped to p.
func (t *SensorTable) SourceColumn(p Parameter) string {
	return t.source[p]
}

// Numeric parses column p. Empty cells, NaN and anything strconv cannot
// parse are rejected with an InvalidInputError listing every bad row.
func (t *SensorTable) Numeric(p Parameter) ([]float64, error) {
	cells, ok := t.columns[p]
	if !ok {
		return nil, &MissingColumnsError{Missing: []Parameter{p}, Required: Parameters()}
	}
	values := make([]float64, len(cells))
	var bad []int
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			bad = append(bad, i)
			continue
		}
		values[i] = v
	}
	if len(bad) > 0 {
		return nil, &InvalidInputError{Parameter: p, Rows: bad}
	}
	return values, nil
}

// Preview returns up to n rows of the validated table, columns in
// declaration order.
func (t *SensorTable) Preview(n int) Preview {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	params := t.Parameters()
	pv := Preview{Columns: make([]string, len(params)), Rows: make([][]string, n)}
	for j, p := range params {
		pv.Columns[j] = string(p)
	}
	for i := 0; i < n; i++ {
		row := make([]string, len(params))
		for j, p := range params {
			row[j] = t.columns[p][i]
		}
		pv.Rows[i] = row
	}
	return pv
}

// Preview is the head of a validated table.
type Preview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
