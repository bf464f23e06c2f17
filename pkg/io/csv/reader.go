// Package csv reads network-flow datasets from CSV files.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// defaultDropColumns matches identifier and timestamp columns that carry no
// numeric signal. Matching is case-insensitive on substrings.
var defaultDropColumns = []string{
	"flow id",
	"src ip",
	"source ip",
	"dst ip",
	"destination ip",
	"timestamp",
	"simillarhttp",
	"unnamed",
}

// Reader reads labeled or unlabeled flow records from CSV files.
type Reader struct {
	file   *os.File
	reader *csv.Reader

	labelColumn string
	benignToken string
	dropColumns []string

	header   []string
	labelIdx int
	keepIdx  []int
	features []string
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithLabelColumn sets the name of the ground-truth label column.
func WithLabelColumn(name string) Option {
	return func(r *Reader) {
		r.labelColumn = name
	}
}

// WithBenignToken sets the label value treated as benign. Any other label
// value is malicious.
func WithBenignToken(token string) Option {
	return func(r *Reader) {
		r.benignToken = token
	}
}

// WithDropColumns replaces the default identifier/timestamp column patterns.
func WithDropColumns(patterns ...string) Option {
	return func(r *Reader) {
		r.dropColumns = patterns
	}
}

// NewReader opens a CSV flow dataset and resolves its header.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:        file,
		reader:      csv.NewReader(file),
		labelColumn: "Label",
		benignToken: "BENIGN",
		dropColumns: defaultDropColumns,
		labelIdx:    -1,
	}
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	header, err := r.reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("csv: reading header: %w", err)
	}
	r.header = header

	for i, name := range header {
		clean := strings.ToLower(strings.TrimSpace(name))
		if clean == strings.ToLower(r.labelColumn) {
			r.labelIdx = i
			continue
		}
		if matchesAny(clean, r.dropColumns) {
			continue
		}
		r.keepIdx = append(r.keepIdx, i)
		r.features = append(r.features, strings.TrimSpace(name))
	}

	if len(r.keepIdx) == 0 {
		file.Close()
		return nil, errors.New("csv: no feature columns left after dropping identifiers")
	}

	return r, nil
}

// FeatureNames returns the names of the feature columns, in order.
func (r *Reader) FeatureNames() []string {
	return r.features
}

// ReadLabeled returns all records as feature vectors with parallel {0,1}
// labels. A record is benign (0) iff its label field case-insensitively
// equals the benign token. Non-finite feature values are replaced with 0.
func (r *Reader) ReadLabeled() ([][]float64, []int, []string, error) {
	if r.labelIdx < 0 {
		return nil, nil, nil, fmt.Errorf("csv: label column %q not found", r.labelColumn)
	}

	var features [][]float64
	var labels []int

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("csv: reading record: %w", err)
		}

		row, ok := r.parseFeatures(record)
		if !ok {
			continue // Skip malformed rows
		}

		label := 1
		if strings.EqualFold(strings.TrimSpace(record[r.labelIdx]), r.benignToken) {
			label = 0
		}

		features = append(features, row)
		labels = append(labels, label)
	}

	if len(features) == 0 {
		return nil, nil, nil, errors.New("csv: dataset contains no parseable records")
	}

	return features, labels, r.features, nil
}

// Read returns all records as unlabeled feature vectors. The label column,
// if present, is ignored.
func (r *Reader) Read() ([][]float64, error) {
	var data [][]float64

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: reading record: %w", err)
		}

		row, ok := r.parseFeatures(record)
		if !ok {
			continue
		}
		data = append(data, row)
	}

	return data, nil
}

// Stream returns a channel of rows for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	out := make(chan []float64, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				record, err := r.reader.Read()
				if err != nil {
					return
				}

				row, ok := r.parseFeatures(record)
				if !ok {
					continue
				}

				select {
				case out <- row:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseFeatures extracts the kept columns, neutralizing non-finite values.
func (r *Reader) parseFeatures(record []string) ([]float64, bool) {
	row := make([]float64, len(r.keepIdx))
	for j, idx := range r.keepIdx {
		if idx >= len(record) {
			return nil, false
		}

		f, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return nil, false
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		row[j] = f
	}
	return row, true
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
