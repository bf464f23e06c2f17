// Package evaluation computes detection metrics and calibrates the
// reconstruction-error threshold.
package evaluation

import "github.com/hed1ad/flowsentry/pkg/preprocess"

// ConfusionMatrix counts classification outcomes for one threshold. The four
// counts always sum to the size of the evaluated set.
type ConfusionMatrix struct {
	TP int
	FP int
	FN int
	TN int
}

// Confusion classifies each record as anomalous iff its error strictly
// exceeds tau and compares against the true labels.
func Confusion(errors []float64, labels []int, tau float64) ConfusionMatrix {
	var m ConfusionMatrix
	for i, e := range errors {
		anomalous := e > tau
		malicious := labels[i] == preprocess.LabelMalicious

		switch {
		case anomalous && malicious:
			m.TP++
		case anomalous && !malicious:
			m.FP++
		case !anomalous && malicious:
			m.FN++
		default:
			m.TN++
		}
	}
	return m
}

// Total returns the number of evaluated records.
func (m ConfusionMatrix) Total() int {
	return m.TP + m.FP + m.FN + m.TN
}

// Accuracy returns the fraction of correct classifications.
func (m ConfusionMatrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return float64(m.TP+m.TN) / float64(total)
}

// Precision returns tp/(tp+fp), or 0 when nothing was flagged.
func (m ConfusionMatrix) Precision() float64 {
	if m.TP+m.FP == 0 {
		return 0
	}
	return float64(m.TP) / float64(m.TP+m.FP)
}

// Recall returns tp/(tp+fn), or 0 when the set has no positives.
func (m ConfusionMatrix) Recall() float64 {
	if m.TP+m.FN == 0 {
		return 0
	}
	return float64(m.TP) / float64(m.TP+m.FN)
}

// F1 returns the harmonic mean of precision and recall, or 0 when both are 0.
func (m ConfusionMatrix) F1() float64 {
	p := m.Precision()
	r := m.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// FalsePositiveRate returns fp/(fp+tn), or 0 when the set has no negatives.
func (m ConfusionMatrix) FalsePositiveRate() float64 {
	if m.FP+m.TN == 0 {
		return 0
	}
	return float64(m.FP) / float64(m.FP+m.TN)
}
