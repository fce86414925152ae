package iforest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/wqguard/pkg/detectors"
)

func TestNewIsolationForest(t *testing.T) {
	tests := []struct {
		name          string
		opts          []Option
		wantNTrees    int
		wantThreshold float64
	}{
		{
			name:          "default configuration",
			opts:          nil,
			wantNTrees:    100,
			wantThreshold: 0.5,
		},
		{
			name:          "custom trees",
			opts:          []Option{WithTrees(50)},
			wantNTrees:    50,
			wantThreshold: 0.5,
		},
		{
			name:          "shared config",
			opts:          []Option{WithConfig(detectors.Config{Contamination: 0.05, Threshold: 0.6, RandomSeed: 7})},
			wantNTrees:    100,
			wantThreshold: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
			assert.Equal(t, tt.wantThreshold, f.Threshold())
		})
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr bool
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: true,
		},
		{
			name:    "no features",
			data:    [][]float64{{}},
			wantErr: true,
		},
		{
			name:    "ragged rows",
			data:    [][]float64{{1, 2}, {3}},
			wantErr: true,
		},
		{
			name:    "single sample",
			data:    [][]float64{{1.0, 2.0, 3.0}},
			wantErr: false,
		},
		{
			name:    "normal data",
			data:    generateTestData(100, 5),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.True(t, f.trained)
				assert.Len(t, f.trees, f.nTrees)
				assert.Equal(t, len(tt.data[0]), f.NumFeatures())
			}
		})
	}
}

func TestPredict(t *testing.T) {
	// Train on normal data
	trainData := generateTestData(500, 5)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("predict on normal data", func(t *testing.T) {
		testData := generateTestData(100, 5)
		scores, err := f.Predict(testData)

		require.NoError(t, err)
		assert.Len(t, scores, len(testData))

		// All scores should be in [0, 1]
		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("predict on anomalies", func(t *testing.T) {
		// Anomalous data: very different from training
		anomalies := [][]float64{
			{1000, 1000, 1000, 1000, 1000},
			{-500, -500, -500, -500, -500},
		}
		scores, err := f.Predict(anomalies)

		require.NoError(t, err)
		for _, score := range scores {
			assert.Greater(t, score, 0.4, "anomalies should have high scores")
		}
	})

	t.Run("wrong feature count", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.Error(t, err)
	})

	t.Run("predict before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Predict(trainData)
		assert.ErrorIs(t, err, detectors.ErrNotTrained)
	})
}

func TestClassify(t *testing.T) {
	trainData := generateTestData(500, 1)
	f := New(WithTrees(100), WithSampleSize(128), WithContamination(0.01), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	labels, err := f.Classify([][]float64{{0.0}, {0.1}, {25.0}, {-0.2}})
	require.NoError(t, err)

	assert.Equal(t, []int{
		detectors.LabelNormal,
		detectors.LabelNormal,
		detectors.LabelAnomaly,
		detectors.LabelNormal,
	}, labels)

	t.Run("classify before fit", func(t *testing.T) {
		_, err := New().Classify([][]float64{{1}})
		assert.ErrorIs(t, err, detectors.ErrNotTrained)
	})
}

func TestClassifyIsRepeatable(t *testing.T) {
	f := New(WithTrees(20), WithSeed(3))
	require.NoError(t, f.Fit(generateTestData(200, 3)))

	data := generateTestData(50, 3)
	first, err := f.Classify(data)
	require.NoError(t, err)
	second, err := f.Classify(data)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSaveLoad(t *testing.T) {
	trainData := generateTestData(200, 4)
	original := New(WithTrees(30), WithContamination(0.15), WithSeed(42))
	require.NoError(t, original.Fit(trainData))

	// Get predictions before save
	testData := generateTestData(50, 4)
	originalScores, err := original.Predict(testData)
	require.NoError(t, err)
	originalLabels, err := original.Classify(testData)
	require.NoError(t, err)

	// Save
	data, err := original.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// Load into new instance
	loaded := New()
	require.NoError(t, loaded.Load(data))

	// Predictions should match
	loadedScores, err := loaded.Predict(testData)
	require.NoError(t, err)
	assert.Equal(t, originalScores, loadedScores)

	loadedLabels, err := loaded.Classify(testData)
	require.NoError(t, err)
	assert.Equal(t, originalLabels, loadedLabels)

	assert.Equal(t, original.Threshold(), loaded.Threshold())
	assert.Equal(t, 4, loaded.NumFeatures())
}

func TestSaveUntrained(t *testing.T) {
	_, err := New().Save()
	assert.ErrorIs(t, err, detectors.ErrNotTrained)
}

func TestLoadRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not gob", data: []byte("definitely not a model")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			assert.Error(t, f.Load(tt.data))
			assert.False(t, f.trained)
		})
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	root := &node{
		splitFeature: 1,
		splitValue:   0.5,
		left:         &node{size: 3},
		right: &node{
			splitFeature: 0,
			splitValue:   -1,
			left:         &node{size: 1},
			right:        &node{size: 2},
		},
	}

	flat := flatten(root, nil)
	require.Len(t, flat, 5)

	back, err := unflatten(flat, 2)
	require.NoError(t, err)
	assert.Equal(t, root, back)

	_, err = unflatten(flat, 1)
	assert.Error(t, err, "split feature out of range must be rejected")
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 0.5, New().Threshold())

	data := generateTestData(500, 2)
	f := New(WithTrees(50), WithContamination(0.1), WithSeed(42))
	require.NoError(t, f.Fit(data))

	threshold := f.Threshold()
	assert.Greater(t, threshold, 0.0)
	assert.Less(t, threshold, 1.0)

	labels, err := f.Classify(data)
	require.NoError(t, err)
	flagged := 0
	for _, l := range labels {
		if l == detectors.LabelAnomaly {
			flagged++
		}
	}
	assert.InDelta(t, 50, flagged, 10, "about contamination * n training samples exceed the threshold")
}

func TestQuantile(t *testing.T) {
	assert.Equal(t, 0.0, quantile(nil, 0.9))
	assert.Equal(t, 9.0, quantile([]float64{5, 1, 9, 3, 7}, 0.9))
	assert.Equal(t, 1.0, quantile([]float64{5, 1, 9, 3, 7}, 0.1))
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 10)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(5000, 10)
	testData := generateTestData(1000, 10)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(testData)
	}
}

func generateTestData(n, features int) [][]float64 {
	rng := rand.New(rand.NewSource(int64(n*31 + features)))
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}
