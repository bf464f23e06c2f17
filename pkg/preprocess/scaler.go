// Package preprocess provides dataset partitioning and feature
// standardization for flow records.
package preprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// scaleEpsilon keeps every scale component strictly positive so that
// transforms never divide by zero, even for constant features.
const scaleEpsilon = 1e-6

// Scaler standardizes feature vectors with statistics fitted on training
// data. Immutable after fitting.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-feature mean and population standard deviation
// (divisor N) over the rows, with an epsilon floor added to every scale.
func FitScaler(rows [][]float64) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, errors.New("preprocess: cannot fit scaler on zero rows")
	}

	width := len(rows[0])
	mean := make([]float64, width)
	std := make([]float64, width)
	n := float64(len(rows))

	for _, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("preprocess: row width %d, want %d", len(row), width)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j]/n) + scaleEpsilon
	}

	return &Scaler{Mean: mean, Std: std}, nil
}

// Transform returns the standardized copy of a row. Pure; the input is not
// mutated.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll standardizes every row.
func (s *Scaler) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.Transform(row)
	}
	return out
}

// Save writes the scaler statistics as JSON.
func (s *Scaler) Save(path string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("preprocess: encoding scaler: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("preprocess: writing scaler file: %w", err)
	}
	return nil
}

// LoadScaler reads scaler statistics written by Save.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preprocess: reading scaler file: %w", err)
	}

	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("preprocess: decoding scaler file: %w", err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return nil, errors.New("preprocess: scaler file has mismatched statistics")
	}

	return &s, nil
}
