package autoencoder

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/flowsentry/pkg/detectors"
	"github.com/hed1ad/flowsentry/pkg/evaluation"
	"github.com/hed1ad/flowsentry/pkg/preprocess"
	"github.com/hed1ad/flowsentry/pkg/training"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		inputs  int
		opts    []Option
		wantErr bool
	}{
		{
			name:   "default configuration",
			inputs: 8,
		},
		{
			name:   "custom hidden layout",
			inputs: 8,
			opts:   []Option{WithHidden(4, 2, 4), WithSeed(123)},
		},
		{
			name:    "zero inputs",
			inputs:  0,
			wantErr: true,
		},
		{
			name:    "invalid hidden size",
			inputs:  8,
			opts:    []Option{WithHidden(4, 0, 4)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.inputs, tt.opts...)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.inputs, a.Inputs())
		})
	}
}

func TestReconstructShape(t *testing.T) {
	a, err := New(5, WithSeed(42))
	require.NoError(t, err)

	out, err := a.Reconstruct([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Len(t, out, 5)

	_, err = a.Reconstruct([]float64{1, 2})
	assert.Error(t, err, "width mismatch must fail")
}

func TestDeterministicInitialization(t *testing.T) {
	a, err := New(6, WithSeed(7))
	require.NoError(t, err)
	b, err := New(6, WithSeed(7))
	require.NoError(t, err)

	row := []float64{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}
	sa, err := a.Score(row)
	require.NoError(t, err)
	sb, err := b.Score(row)
	require.NoError(t, err)

	assert.Equal(t, sa, sb, "same seed must initialize identical networks")
}

func TestTrainBatchReducesLoss(t *testing.T) {
	a, err := New(4, WithHidden(3, 2, 3), WithSeed(42))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	rows := make([][]float64, 64)
	for i := range rows {
		z := rng.NormFloat64()
		rows[i] = []float64{z, 0.5 * z, -z, 0.25 * z}
	}

	before, err := a.Loss(rows)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		_, err := a.TrainBatch(rows, 0.05)
		require.NoError(t, err)
	}

	after, err := a.Loss(rows)
	require.NoError(t, err)
	assert.Less(t, after, before, "training on correlated data must reduce loss")
}

func TestTrainBatchErrors(t *testing.T) {
	a, err := New(3, WithSeed(42))
	require.NoError(t, err)

	_, err = a.TrainBatch(nil, 0.01)
	assert.Error(t, err)

	_, err = a.TrainBatch([][]float64{{1, 2}}, 0.01)
	assert.Error(t, err)

	_, err = a.Loss(nil)
	assert.Error(t, err)
}

func TestScoreBatchMatchesScore(t *testing.T) {
	a, err := New(3, WithSeed(42))
	require.NoError(t, err)

	rows := [][]float64{{1, 0, -1}, {0.5, 0.5, 0.5}}
	scores, err := a.ScoreBatch(rows)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	for i, row := range rows {
		s, err := a.Score(row)
		require.NoError(t, err)
		assert.Equal(t, s, scores[i])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	a, err := New(4, WithHidden(3, 3), WithSeed(42))
	require.NoError(t, err)

	rows := [][]float64{{1, 2, 3, 4}, {4, 3, 2, 1}}
	for i := 0; i < 10; i++ {
		_, err := a.TrainBatch(rows, 0.01)
		require.NoError(t, err)
	}

	blob, err := a.Save()
	require.NoError(t, err)

	restored, err := FromBytes(blob)
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Inputs())

	for _, row := range rows {
		want, err := a.Score(row)
		require.NoError(t, err)
		got, err := restored.Score(row)
		require.NoError(t, err)
		assert.Equal(t, want, got, "restored model must score identically")
	}
}

func TestScoreStream(t *testing.T) {
	a, err := New(2, WithSeed(42))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan []float64, 2)
	output := make(chan detectors.Score, 2)

	input <- []float64{0.1, 0.2}
	input <- []float64{100, -100}
	close(input)

	require.NoError(t, a.ScoreStream(ctx, 1.0, input, output))
	close(output)

	var scores []detectors.Score
	for s := range output {
		scores = append(scores, s)
	}
	require.Len(t, scores, 2)
	assert.True(t, scores[1].IsAnomaly, "extreme input must exceed the threshold")
}

// TestEndToEndDetection trains on synthetic benign flows, calibrates a
// threshold, and verifies that flows with one feature shifted by ten
// standard deviations are separated on the held-out test split.
func TestEndToEndDetection(t *testing.T) {
	features, labels := syntheticFlows(1000, 100)

	split, err := preprocess.SplitIndices(labels, 0.2, 0.1, 42)
	require.NoError(t, err)

	scaler, err := preprocess.FitScaler(preprocess.Gather(features, split.Train))
	require.NoError(t, err)

	trainRows := scaler.TransformAll(preprocess.Gather(features, split.Train))
	valRows := scaler.TransformAll(preprocess.Gather(features, split.Val))
	testRows := scaler.TransformAll(preprocess.Gather(features, split.Test))
	testLabels := preprocess.GatherLabels(labels, split.Test)

	model, err := New(8, WithHidden(6, 3, 6), WithSeed(42))
	require.NoError(t, err)

	cfg := training.DefaultConfig()
	cfg.MaxEpochs = 100
	cfg.BatchSize = 32
	cfg.MinDelta = 1e-5

	res, err := training.Fit(model, trainRows, valRows, training.NewMemoryStore(), cfg)
	require.NoError(t, err)
	assert.Greater(t, res.BestEpoch, 0)

	valErrors, err := model.ScoreBatch(valRows)
	require.NoError(t, err)
	testErrors, err := model.ScoreBatch(testRows)
	require.NoError(t, err)

	cal, err := evaluation.Calibrate(valErrors, testErrors, testLabels)
	require.NoError(t, err)
	require.False(t, cal.Fallback)

	m := evaluation.Confusion(testErrors, testLabels, cal.Threshold)
	assert.Equal(t, len(testRows), m.Total())
	assert.GreaterOrEqual(t, m.Recall(), 0.9, "attack flows must be caught")
	assert.LessOrEqual(t, m.FalsePositiveRate(), 0.1, "benign flows must mostly pass")
}

// syntheticFlows builds benign flows from two latent factors plus noise and
// attack flows with the third feature shifted by ten standard deviations.
func syntheticFlows(benign, attacks int) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(3))

	makeRow := func() []float64 {
		z1 := rng.NormFloat64()
		z2 := rng.NormFloat64()
		noise := func() float64 { return 0.05 * rng.NormFloat64() }
		return []float64{
			z1 + noise(),
			z2 + noise(),
			z1 + z2 + noise(),
			z1 - z2 + noise(),
			0.5*z1 + noise(),
			0.5*z2 + noise(),
			0.3*z1 + 0.3*z2 + noise(),
			0.8*z1 + noise(),
		}
	}

	features := make([][]float64, 0, benign+attacks)
	labels := make([]int, 0, benign+attacks)

	for i := 0; i < benign; i++ {
		features = append(features, makeRow())
		labels = append(labels, 0)
	}

	// Feature 2 is z1+z2 with variance 2: shift by 10 of its std devs.
	shift := 10 * math.Sqrt2
	for i := 0; i < attacks; i++ {
		row := makeRow()
		row[2] += shift
		features = append(features, row)
		labels = append(labels, 1)
	}

	return features, labels
}
