// Package detectors provides reconstruction-based anomaly detection for
// network-flow records.
package detectors

import "context"

// Detector is the common interface for trained anomaly detectors.
// Scores are reconstruction errors: higher values indicate anomalies.
type Detector interface {
	// Score returns the anomaly score for a single sample.
	Score(sample []float64) (float64, error)

	// ScoreBatch returns anomaly scores for the given samples.
	ScoreBatch(data [][]float64) ([]float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// StreamDetector extends Detector with streaming capabilities.
type StreamDetector interface {
	Detector

	// ScoreStream scores samples from a channel against a fixed threshold.
	ScoreStream(ctx context.Context, threshold float64, input <-chan []float64, output chan<- Score) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the per-record reconstruction error.
	Value float64
	// IsAnomaly indicates if the score exceeds the threshold.
	IsAnomaly bool
	// Features contains the original input features.
	Features []float64
	// Metadata contains additional information.
	Metadata map[string]any
}

