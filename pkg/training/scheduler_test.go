package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlateauSchedulerReduces(t *testing.T) {
	s := NewPlateauScheduler(0.1, 0.5, 2, 1e-4)

	assert.Equal(t, 0.1, s.Step(1.0), "first observation is the baseline")
	assert.Equal(t, 0.1, s.Step(1.0))
	assert.Equal(t, 0.05, s.Step(1.0), "second bad epoch triggers the reduction")

	// Counter restarts after a reduction.
	assert.Equal(t, 0.05, s.Step(1.0))
	assert.Equal(t, 0.025, s.Step(1.0))
}

func TestPlateauSchedulerResetOnImprovement(t *testing.T) {
	s := NewPlateauScheduler(0.1, 0.5, 2, 1e-4)

	s.Step(1.0)
	s.Step(1.0) // bad epoch 1

	assert.Equal(t, 0.1, s.Step(0.5), "improvement resets the counter")
	assert.Equal(t, 0.1, s.Step(0.5))
	assert.Equal(t, 0.05, s.Step(0.5))
}

func TestPlateauSchedulerThreshold(t *testing.T) {
	s := NewPlateauScheduler(0.1, 0.5, 2, 0.01)

	s.Step(1.0)
	// Gains below the threshold count as stagnation.
	assert.Equal(t, 0.1, s.Step(0.995))
	assert.Equal(t, 0.05, s.Step(0.991))
}

func TestPlateauSchedulerDefaults(t *testing.T) {
	s := NewPlateauScheduler(0.1, 0, 0, 0)

	assert.Equal(t, 0.5, s.factor)
	assert.Equal(t, 5, s.patience)
	assert.Equal(t, 1e-4, s.threshold)
	assert.Equal(t, 0.1, s.LR())
}
