package report

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/wqguard/pkg/water"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func phTable(t *testing.T) *water.AnnotatedTable {
	t.Helper()
	values := map[water.Parameter][]float64{
		water.PH:               {7.0, 7.1, 14.0, 7.2, 6.9},
		water.Flowrate:         flat(5, 10),
		water.WaterLevel:       {2, 2, 2, 9, 2},
		water.Turbidity:        flat(5, 1),
		water.WaterTemperature: flat(5, 18),
	}
	n, a := water.Normal, water.Anomaly
	cols := []water.ScoredColumn{
		{Key: "pH_Anomaly", Labels: []water.Label{n, n, a, n, n}},
		{Key: "Flowrate_Anomaly", Labels: []water.Label{n, n, n, n, n}},
		{Key: "WaterLevel_Anomaly", Labels: []water.Label{n, n, n, a, n}},
		{Key: "Turbidity_Anomaly", Labels: []water.Label{n, n, n, n, n}},
		{Key: "WaterTemperature_Anomaly", Labels: []water.Label{n, n, n, n, n}},
	}
	table, err := water.NewAnnotatedTable(water.PerParameter, values, cols)
	require.NoError(t, err)
	return table
}

func TestBuildPerParameter(t *testing.T) {
	table := phTable(t)
	r := Build(table)

	assert.Equal(t, water.PerParameter, r.Variant)
	assert.Equal(t, 5, r.Rows)
	assert.Equal(t, water.AnomalySummary{
		{Key: "pH", Count: 1},
		{Key: "Flowrate", Count: 0},
		{Key: "WaterLevel", Count: 1},
		{Key: "Turbidity", Count: 0},
		{Key: "WaterTemperature", Count: 0},
	}, r.Summary)
	assert.Equal(t, 1, r.Summary.Count("pH"))
	assert.InDelta(t, 0.2, r.AnomalyRate["pH"], 1e-12)

	ph, ok := r.SeriesFor(water.PH)
	require.True(t, ok)
	assert.Equal(t, "pH_Anomaly", ph.LabelKey)
	assert.Equal(t, []Point{{Index: 2, Value: 14.0}}, ph.Anomalies)
	assert.Equal(t, []float64{7.0, 7.1, 14.0, 7.2, 6.9}, ph.Values)
	assert.Equal(t, 6.9, ph.Stats.Min)
	assert.Equal(t, 14.0, ph.Stats.Max)
	assert.InDelta(t, 8.44, ph.Stats.Mean, 1e-9)

	flow, ok := r.SeriesFor(water.Flowrate)
	require.True(t, ok)
	assert.Empty(t, flow.Anomalies)
	assert.NotNil(t, flow.Anomalies)
	assert.Zero(t, flow.Stats.Std)
}

func TestSummaryMatchesLabels(t *testing.T) {
	table := phTable(t)
	r := Build(table)

	for _, key := range table.LabelKeys() {
		want := 0
		for _, l := range table.Labels(key) {
			if l == water.Anomaly {
				want++
			}
		}
		assert.Equal(t, want, r.Summary.Count(SummaryKey(key)), key)
	}
}

func TestBuildJoint(t *testing.T) {
	values := map[water.Parameter][]float64{}
	for _, p := range water.Parameters() {
		values[p] = []float64{1, 2, 3}
	}
	n := water.Normal
	table, err := water.NewAnnotatedTable(water.Joint, values, []water.ScoredColumn{
		{Key: water.AnomalyColumn, Labels: []water.Label{n, n, n}},
	})
	require.NoError(t, err)

	r := Build(table)
	assert.Equal(t, water.AnomalySummary{{Key: "Anomaly", Count: 0}}, r.Summary)
	assert.Zero(t, r.Summary.Total())
	require.Len(t, r.Series, 5)
	for _, s := range r.Series {
		assert.Equal(t, water.AnomalyColumn, s.LabelKey)
		assert.Empty(t, s.Anomalies)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	table := phTable(t)
	assert.Equal(t, Build(table), Build(table))
}

func TestAnomalyPoints(t *testing.T) {
	a, n := water.Anomaly, water.Normal
	points := AnomalyPoints([]float64{5, 6, 7, 8}, []water.Label{a, n, a, a})
	assert.Equal(t, []Point{{0, 5}, {2, 7}, {3, 8}}, points)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, Stats{}, Describe(nil))
	assert.Equal(t, Stats{Min: 4, Max: 4, Mean: 4}, Describe([]float64{4}))

	s := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.138, s.Std, 1e-3)
}

func TestDescribeNearFloatLimit(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		mean   float64
		std    float64
	}{
		{"equal huge values", []float64{1.7e308, 1.7e308}, 1.7e308, 0},
		{"huge and small", []float64{1.7e308, 0}, 0.85e308, 1.7e308 / math.Sqrt2},
		{"opposite huge values", []float64{-1.7e308, 1.7e308}, 0, math.MaxFloat64},
		{"all zero", []float64{0, 0, 0}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Describe(tt.values)
			assert.False(t, math.IsInf(s.Mean, 0) || math.IsNaN(s.Mean))
			assert.False(t, math.IsInf(s.Std, 0) || math.IsNaN(s.Std))
			assert.InDelta(t, tt.mean, s.Mean, math.Abs(tt.mean)*1e-9)
			assert.InDelta(t, tt.std, s.Std, math.Abs(tt.std)*1e-9)
		})
	}
}

func TestBuildEncodesHugeValues(t *testing.T) {
	values := map[water.Parameter][]float64{}
	for _, p := range water.Parameters() {
		values[p] = flat(2, 7)
	}
	values[water.Flowrate] = flat(2, 1.7e308)
	table, err := water.NewAnnotatedTable(water.Joint, values, []water.ScoredColumn{
		{Key: water.AnomalyColumn, Labels: []water.Label{water.Normal, water.Anomaly}},
	})
	require.NoError(t, err)

	r := Build(table)
	flow, ok := r.SeriesFor(water.Flowrate)
	require.True(t, ok)
	assert.Equal(t, 1.7e308, flow.Stats.Mean)

	_, err = json.Marshal(r)
	assert.NoError(t, err)
}
