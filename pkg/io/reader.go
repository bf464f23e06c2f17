// Package io provides input/output utilities for flow-record ingestion and
// detection results.
package io

import "context"

// Reader is the interface for reading unlabeled feature vectors.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([][]float64, error)

	// Stream returns a channel of samples for real-time processing.
	Stream(ctx context.Context) (<-chan []float64, error)

	// Close releases resources.
	Close() error
}

// LabeledReader reads datasets that carry ground-truth labels.
type LabeledReader interface {
	// ReadLabeled returns feature vectors, parallel {0,1} labels, and the
	// feature column names.
	ReadLabeled() (features [][]float64, labels []int, header []string, err error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing detection results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close releases resources.
	Close() error
}

// Result represents an anomaly detection result.
type Result struct {
	Timestamp int64          `json:"timestamp"`
	Score     float64        `json:"score"`
	IsAnomaly bool           `json:"is_anomaly"`
	Features  []float64      `json:"features,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
