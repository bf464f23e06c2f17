package training

import "math"

// PlateauScheduler reduces the learning rate when validation loss stops
// improving. It tracks its own best metric and bad-epoch counter,
// independent of the early-stopping state consuming the same signal.
type PlateauScheduler struct {
	factor    float64
	patience  int
	threshold float64

	best        float64
	badEpochs   int
	currentLR   float64
	initialized bool
}

// NewPlateauScheduler creates a plateau scheduler starting at initialLR.
// The learning rate is multiplied by factor after patience consecutive
// epochs without an improvement larger than threshold.
func NewPlateauScheduler(initialLR, factor float64, patience int, threshold float64) *PlateauScheduler {
	if factor <= 0 || factor >= 1 {
		factor = 0.5
	}
	if patience <= 0 {
		patience = 5
	}
	if threshold <= 0 {
		threshold = 1e-4
	}
	return &PlateauScheduler{
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		best:      math.Inf(1),
		currentLR: initialLR,
	}
}

// Step consumes one epoch's validation loss and returns the learning rate to
// use for the next epoch.
func (s *PlateauScheduler) Step(metric float64) float64 {
	if !s.initialized {
		s.initialized = true
		s.best = metric
		return s.currentLR
	}

	if s.best-metric > s.threshold {
		s.best = metric
		s.badEpochs = 0
		return s.currentLR
	}

	s.badEpochs++
	if s.badEpochs >= s.patience {
		s.currentLR *= s.factor
		s.badEpochs = 0
	}
	return s.currentLR
}

// LR returns the current learning rate.
func (s *PlateauScheduler) LR() float64 {
	return s.currentLR
}
