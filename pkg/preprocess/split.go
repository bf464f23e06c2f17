package preprocess

import (
	"errors"
	"fmt"
	"math/rand"
)

// Labels for the two ground-truth classes.
const (
	LabelBenign    = 0
	LabelMalicious = 1
)

// Split holds disjoint record indices for the three partitions. Test keeps
// the original class mixture; train and val contain benign records only.
type Split struct {
	Train []int
	Val   []int
	Test  []int
}

// SplitIndices deterministically partitions the records. The test set is the
// first testFrac share of a seeded permutation; the benign remainder is
// shuffled again with the same rng, its first valFrac share becoming val and
// the rest train. Same seed and labels always yield the same partition.
//
// An empty train or val partition fails the run: without validation data
// neither early stopping nor calibration can operate.
func SplitIndices(labels []int, testFrac, valFrac float64, seed int64) (*Split, error) {
	n := len(labels)
	if n == 0 {
		return nil, errors.New("preprocess: no records to split")
	}
	if testFrac < 0 || testFrac >= 1 || valFrac < 0 || valFrac >= 1 {
		return nil, fmt.Errorf("preprocess: invalid split fractions test=%g val=%g", testFrac, valFrac)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	nTest := int(float64(n) * testFrac)
	test := append([]int(nil), perm[:nTest]...)

	benign := make([]int, 0, n-nTest)
	for _, idx := range perm[nTest:] {
		if labels[idx] == LabelBenign {
			benign = append(benign, idx)
		}
	}
	if len(benign) == 0 {
		return nil, errors.New("preprocess: no benign records left for training")
	}

	rng.Shuffle(len(benign), func(i, j int) {
		benign[i], benign[j] = benign[j], benign[i]
	})

	nVal := int(float64(len(benign)) * valFrac)
	val := append([]int(nil), benign[:nVal]...)
	train := append([]int(nil), benign[nVal:]...)

	if len(val) == 0 {
		return nil, errors.New("preprocess: validation partition is empty")
	}
	if len(train) == 0 {
		return nil, errors.New("preprocess: training partition is empty")
	}

	return &Split{Train: train, Val: val, Test: test}, nil
}

// Gather selects the rows at the given indices.
func Gather(rows [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = rows[idx]
	}
	return out
}

// GatherLabels selects the labels at the given indices.
func GatherLabels(labels []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = labels[idx]
	}
	return out
}
