package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfusionCounts(t *testing.T) {
	errors := []float64{0.1, 0.9, 0.2, 0.8}
	labels := []int{0, 1, 1, 0}

	m := Confusion(errors, labels, 0.5)

	assert.Equal(t, 1, m.TP) // 0.9, malicious
	assert.Equal(t, 1, m.FP) // 0.8, benign
	assert.Equal(t, 1, m.FN) // 0.2, malicious
	assert.Equal(t, 1, m.TN) // 0.1, benign
}

func TestConfusionTotalInvariant(t *testing.T) {
	errors := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}
	labels := []int{0, 1, 0, 1, 0, 1, 0}

	for _, tau := range []float64{-1, 0, 0.3, 0.35, 0.7, 10} {
		m := Confusion(errors, labels, tau)
		assert.Equal(t, len(errors), m.Total(), "tau=%g", tau)
	}
}

func TestConfusionStrictInequality(t *testing.T) {
	// A record with error exactly equal to tau is classified normal.
	m := Confusion([]float64{0.5}, []int{1}, 0.5)

	assert.Equal(t, 0, m.TP)
	assert.Equal(t, 1, m.FN)
}

func TestConfusionLowThresholdFlagsEverything(t *testing.T) {
	errors := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	labels := []int{0, 1, 0, 1, 0}

	m := Confusion(errors, labels, -1)

	assert.Equal(t, 1.0, m.Recall())
	assert.Equal(t, 3, m.FP, "every benign record becomes a false positive")
	assert.Equal(t, 0, m.FN)
	assert.Equal(t, 0, m.TN)
}

func TestMetricZeroDenominators(t *testing.T) {
	// Nothing flagged and nothing malicious: all metrics defined as 0.
	m := Confusion([]float64{0.1, 0.2}, []int{0, 0}, 1.0)

	assert.Equal(t, 0.0, m.Precision())
	assert.Equal(t, 0.0, m.Recall())
	assert.Equal(t, 0.0, m.F1())
	assert.Equal(t, 1.0, m.Accuracy())

	empty := ConfusionMatrix{}
	assert.Equal(t, 0.0, empty.Accuracy())
	assert.Equal(t, 0.0, empty.FalsePositiveRate())
}

func TestDerivedMetrics(t *testing.T) {
	m := ConfusionMatrix{TP: 8, FP: 2, FN: 2, TN: 88}

	assert.InDelta(t, 0.96, m.Accuracy(), 1e-9)
	assert.InDelta(t, 0.8, m.Precision(), 1e-9)
	assert.InDelta(t, 0.8, m.Recall(), 1e-9)
	assert.InDelta(t, 0.8, m.F1(), 1e-9)
	assert.InDelta(t, 2.0/90.0, m.FalsePositiveRate(), 1e-9)
}

func TestThresholdMonotonicity(t *testing.T) {
	// Raising tau never increases tp or fp.
	errors := []float64{0.05, 0.1, 0.15, 0.2, 0.4, 0.6, 0.8, 0.9}
	labels := []int{0, 1, 0, 1, 0, 1, 0, 1}

	prev := Confusion(errors, labels, -1)
	for _, tau := range []float64{0, 0.1, 0.3, 0.5, 0.7, 1.0} {
		m := Confusion(errors, labels, tau)
		assert.LessOrEqual(t, m.TP, prev.TP, "tau=%g", tau)
		assert.LessOrEqual(t, m.FP, prev.FP, "tau=%g", tau)
		prev = m
	}
}
