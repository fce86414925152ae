// Package report derives anomaly counts, chart series and descriptive
// statistics from an annotated table.
package report

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/wqguard/pkg/water"
)

// Point is one flagged sample of a series.
type Point struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Stats summarizes the values of one parameter.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Series is a parameter's full time series paired with its anomaly subset.
type Series struct {
	Parameter water.Parameter `json:"parameter"`
	LabelKey  string          `json:"label_key"`
	Values    []float64       `json:"values"`
	Anomalies []Point         `json:"anomalies"`
	Stats     Stats           `json:"stats"`
}

// Report is everything the presentation layer renders for one run.
type Report struct {
	Variant water.Variant        `json:"variant"`
	Rows    int                  `json:"rows"`
	Summary water.AnomalySummary `json:"summary"`
	// AnomalyRate is anomalies / rows per summary key.
	AnomalyRate map[string]float64 `json:"anomaly_rate"`
	Series      []Series           `json:"series"`
}

// Build aggregates t. It is a pure function of t.
func Build(t *water.AnnotatedTable) *Report {
	r := &Report{
		Variant:     t.Variant(),
		Rows:        t.Len(),
		AnomalyRate: make(map[string]float64),
	}

	for _, key := range t.LabelKeys() {
		n := Count(t.Labels(key))
		k := SummaryKey(key)
		r.Summary = append(r.Summary, water.AnomalyCount{Key: k, Count: n})
		if r.Rows > 0 {
			r.AnomalyRate[k] = float64(n) / float64(r.Rows)
		}
	}

	for _, p := range water.Parameters() {
		key := t.LabelKeyFor(p)
		values := t.Values(p)
		r.Series = append(r.Series, Series{
			Parameter: p,
			LabelKey:  key,
			Values:    values,
			Anomalies: AnomalyPoints(values, t.Labels(key)),
			Stats:     Describe(values),
		})
	}
	return r
}

// SummaryKey maps a label column key to its summary key: the parameter
// identifier for per-parameter columns, "Anomaly" for the joint column.
func SummaryKey(labelKey string) string {
	for _, p := range water.Parameters() {
		if labelKey == water.LabelColumn(p) {
			return string(p)
		}
	}
	return labelKey
}

// Count returns the number of anomaly labels.
func Count(labels []water.Label) int {
	n := 0
	for _, l := range labels {
		if l == water.Anomaly {
			n++
		}
	}
	return n
}

// AnomalyPoints pairs every anomalous row with its value, ascending by index.
func AnomalyPoints(values []float64, labels []water.Label) []Point {
	points := []Point{}
	for i, l := range labels {
		if l == water.Anomaly && i < len(values) {
			points = append(points, Point{Index: i, Value: values[i]})
		}
	}
	return points
}

// Describe computes min, max, mean and sample standard deviation. Values
// are scaled by their largest magnitude first so readings near the float64
// limit cannot overflow the sums; a deviation that still does not fit is
// capped at math.MaxFloat64.
func Describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	lo, hi := floats.Min(values), floats.Max(values)
	scale := math.Max(math.Abs(lo), math.Abs(hi))
	if scale == 0 {
		return Stats{}
	}

	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v / scale
	}
	mean, std := stat.MeanStdDev(scaled, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Stats{
		Min:  lo,
		Max:  hi,
		Mean: mean * scale,
		Std:  math.Min(std*scale, math.MaxFloat64),
	}
}

// SeriesFor returns the series of parameter p, if present.
func (r *Report) SeriesFor(p water.Parameter) (Series, bool) {
	for _, s := range r.Series {
		if s.Parameter == p {
			return s, true
		}
	}
	return Series{}, false
}
