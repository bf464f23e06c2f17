package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Calibration is the outcome of a threshold grid search.
type Calibration struct {
	Threshold  float64
	Percentile float64
	F1         float64
	// Fallback is set when no candidate produced a positive F1 and the
	// maximum validation error was chosen instead.
	Fallback bool
}

// Calibrate grid-searches a reconstruction-error threshold over the
// percentiles 0.900 through 0.999 of the benign validation errors, scoring
// each candidate by F1 against the labeled test errors. The strictly highest
// F1 wins; ties keep the first candidate found. When every candidate scores
// 0, the maximum validation error is returned as the most conservative
// threshold.
func Calibrate(valErrors, testErrors []float64, testLabels []int) (*Calibration, error) {
	if len(valErrors) == 0 {
		return nil, errors.New("evaluation: no validation errors to calibrate on")
	}
	if len(testErrors) != len(testLabels) {
		return nil, fmt.Errorf("evaluation: %d test errors but %d labels", len(testErrors), len(testLabels))
	}

	sorted := make([]float64, len(valErrors))
	copy(sorted, valErrors)
	sort.Float64s(sorted)

	best := &Calibration{F1: 0}
	found := false

	for i := 900; i <= 999; i++ {
		p := float64(i) / 1000
		idx := int(p * float64(len(sorted)))
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		tau := sorted[idx]

		f1 := Confusion(testErrors, testLabels, tau).F1()
		if f1 > best.F1 {
			best = &Calibration{Threshold: tau, Percentile: p, F1: f1}
			found = true
		}
	}

	if !found {
		return &Calibration{
			Threshold: sorted[len(sorted)-1],
			F1:        0,
			Fallback:  true,
		}, nil
	}

	return best, nil
}

// thresholdFile is the persisted artifact schema.
type thresholdFile struct {
	Threshold float64 `json:"threshold"`
}

// SaveThreshold writes the chosen threshold as JSON.
func SaveThreshold(path string, tau float64) error {
	data, err := json.Marshal(thresholdFile{Threshold: tau})
	if err != nil {
		return fmt.Errorf("evaluation: encoding threshold: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("evaluation: writing threshold file: %w", err)
	}
	return nil
}

// LoadThreshold reads a threshold written by SaveThreshold.
func LoadThreshold(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("evaluation: reading threshold file: %w", err)
	}

	var f thresholdFile
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("evaluation: decoding threshold file: %w", err)
	}
	return f.Threshold, nil
}
