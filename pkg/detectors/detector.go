// Package detectors provides unsupervised anomaly detection models.
package detectors

import "errors"

// Sentinel labels returned by Classify, matching the outlier-model convention
// the pre-trained artifacts were produced with.
const (
	LabelAnomaly = -1
	LabelNormal  = 1
)

// ErrNotTrained is returned when a model is used before Fit or Load.
var ErrNotTrained = errors.New("model not trained")

// Model is the scoring capability consumed by the pipeline. Models are
// read-only once trained or loaded and safe for concurrent use.
type Model interface {
	// Classify returns one sentinel label per sample: LabelAnomaly or LabelNormal.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Classify(data [][]float64) ([]int, error)

	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// NumFeatures is the number of columns the model was trained on.
	NumFeatures() int
}

// Detector is a Model that can be trained and serialized as an artifact.
type Detector interface {
	Model

	// Fit trains the detector on historical data.
	Fit(data [][]float64) error

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64
	// Threshold is the score threshold for classifying anomalies.
	Threshold float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.1,
		Threshold:     0.5,
		RandomSeed:    42,
	}
}

// Column turns a single feature column into the row-major layout models expect.
func Column(values []float64) [][]float64 {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return rows
}
