// Package autoencoder implements a dense encoder-decoder network for
// reconstruction-based anomaly detection.
package autoencoder

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/hed1ad/flowsentry/pkg/detectors"
)

var _ detectors.StreamDetector = (*Autoencoder)(nil)

// Autoencoder compresses each input through a bottleneck and reconstructs it.
// Records the network reconstructs poorly score as anomalous.
type Autoencoder struct {
	mu sync.RWMutex

	// Configuration
	inputs int
	hidden []int
	rng    *rand.Rand

	// Parameters: weights[l][out][in] and biases[l][out] for each layer,
	// hidden layers use tanh, the output layer is linear.
	weights [][][]float64
	biases  [][]float64
}

// Option configures an Autoencoder.
type Option func(*Autoencoder)

// WithHidden sets the hidden layer sizes (encoder through decoder).
func WithHidden(sizes ...int) Option {
	return func(a *Autoencoder) {
		a.hidden = sizes
	}
}

// WithSeed sets the random seed for weight initialization.
func WithSeed(seed int64) Option {
	return func(a *Autoencoder) {
		a.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an Autoencoder for feature vectors of the given width.
func New(inputs int, opts ...Option) (*Autoencoder, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("autoencoder: invalid input width %d", inputs)
	}

	a := &Autoencoder{
		inputs: inputs,
		hidden: []int{16, 8, 16},
		rng:    rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, h := range a.hidden {
		if h <= 0 {
			return nil, fmt.Errorf("autoencoder: invalid hidden layer size %d", h)
		}
	}

	a.initWeights()

	return a, nil
}

// FromBytes reconstructs a previously saved model.
func FromBytes(blob []byte) (*Autoencoder, error) {
	a := &Autoencoder{rng: rand.New(rand.NewSource(42))}
	if err := a.Load(blob); err != nil {
		return nil, fmt.Errorf("autoencoder: decoding model blob: %w", err)
	}
	return a, nil
}

// initWeights applies Xavier-uniform initialization with the configured rng.
func (a *Autoencoder) initWeights() {
	sizes := a.layerSizes()
	nLayers := len(sizes) - 1

	a.weights = make([][][]float64, nLayers)
	a.biases = make([][]float64, nLayers)

	for l := 0; l < nLayers; l++ {
		in, out := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(in+out))

		a.weights[l] = make([][]float64, out)
		a.biases[l] = make([]float64, out)
		for o := 0; o < out; o++ {
			a.weights[l][o] = make([]float64, in)
			for i := 0; i < in; i++ {
				a.weights[l][o][i] = (a.rng.Float64()*2 - 1) * limit
			}
		}
	}
}

// layerSizes returns the full layer layout, input through reconstruction.
func (a *Autoencoder) layerSizes() []int {
	sizes := make([]int, 0, len(a.hidden)+2)
	sizes = append(sizes, a.inputs)
	sizes = append(sizes, a.hidden...)
	sizes = append(sizes, a.inputs)
	return sizes
}

// Inputs returns the expected feature-vector width.
func (a *Autoencoder) Inputs() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inputs
}

// forward runs one row through the network and returns the activations of
// every layer, index 0 being the input itself.
func (a *Autoencoder) forward(row []float64) [][]float64 {
	nLayers := len(a.weights)
	acts := make([][]float64, nLayers+1)
	acts[0] = row

	for l := 0; l < nLayers; l++ {
		in := acts[l]
		out := make([]float64, len(a.weights[l]))
		for o := range a.weights[l] {
			sum := a.biases[l][o]
			w := a.weights[l][o]
			for i, x := range in {
				sum += w[i] * x
			}
			if l < nLayers-1 {
				sum = math.Tanh(sum)
			}
			out[o] = sum
		}
		acts[l+1] = out
	}

	return acts
}

// Reconstruct returns the network's reproduction of the row.
func (a *Autoencoder) Reconstruct(row []float64) ([]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(row) != a.inputs {
		return nil, fmt.Errorf("autoencoder: row width %d, want %d", len(row), a.inputs)
	}

	acts := a.forward(row)
	return acts[len(acts)-1], nil
}

// TrainBatch performs one gradient step on the batch and returns the batch's
// mean squared reconstruction loss before the update.
func (a *Autoencoder) TrainBatch(batch [][]float64, lr float64) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(batch) == 0 {
		return 0, errors.New("autoencoder: empty batch")
	}

	sizes := a.layerSizes()
	nLayers := len(a.weights)

	// Gradient accumulators, same shape as the parameters.
	gw := make([][][]float64, nLayers)
	gb := make([][]float64, nLayers)
	for l := 0; l < nLayers; l++ {
		gw[l] = make([][]float64, sizes[l+1])
		gb[l] = make([]float64, sizes[l+1])
		for o := range gw[l] {
			gw[l][o] = make([]float64, sizes[l])
		}
	}

	var totalLoss float64
	d := float64(a.inputs)
	b := float64(len(batch))

	for _, row := range batch {
		if len(row) != a.inputs {
			return 0, fmt.Errorf("autoencoder: row width %d, want %d", len(row), a.inputs)
		}

		acts := a.forward(row)
		out := acts[nLayers]

		// Output delta for the mean-over-all-elements MSE loss.
		delta := make([]float64, a.inputs)
		for j, y := range out {
			diff := y - row[j]
			totalLoss += diff * diff / d
			delta[j] = 2 * diff / (d * b)
		}

		for l := nLayers - 1; l >= 0; l-- {
			in := acts[l]
			for o, dv := range delta {
				gb[l][o] += dv
				g := gw[l][o]
				for i, x := range in {
					g[i] += dv * x
				}
			}

			if l == 0 {
				break
			}

			prev := make([]float64, sizes[l])
			for o, dv := range delta {
				w := a.weights[l][o]
				for i := range prev {
					prev[i] += dv * w[i]
				}
			}
			// Hidden activations are tanh; derivative is 1 - a².
			for i, act := range acts[l] {
				prev[i] *= 1 - act*act
			}
			delta = prev
		}
	}

	for l := 0; l < nLayers; l++ {
		for o := range a.weights[l] {
			a.biases[l][o] -= lr * gb[l][o]
			w := a.weights[l][o]
			for i := range w {
				w[i] -= lr * gw[l][o][i]
			}
		}
	}

	return totalLoss / b, nil
}

// Loss returns the mean squared reconstruction error over the rows without
// updating parameters.
func (a *Autoencoder) Loss(rows [][]float64) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(rows) == 0 {
		return 0, errors.New("autoencoder: empty evaluation set")
	}

	var total float64
	for _, row := range rows {
		if len(row) != a.inputs {
			return 0, fmt.Errorf("autoencoder: row width %d, want %d", len(row), a.inputs)
		}
		total += a.reconstructionError(row)
	}

	return total / float64(len(rows)), nil
}

// Score returns the per-record reconstruction error for a single sample.
func (a *Autoencoder) Score(sample []float64) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(sample) != a.inputs {
		return 0, fmt.Errorf("autoencoder: row width %d, want %d", len(sample), a.inputs)
	}

	return a.reconstructionError(sample), nil
}

// ScoreBatch returns per-record reconstruction errors for the given samples.
func (a *Autoencoder) ScoreBatch(data [][]float64) ([]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	scores := make([]float64, len(data))
	for i, row := range data {
		if len(row) != a.inputs {
			return nil, fmt.Errorf("autoencoder: row width %d, want %d", len(row), a.inputs)
		}
		scores[i] = a.reconstructionError(row)
	}

	return scores, nil
}

func (a *Autoencoder) reconstructionError(row []float64) float64 {
	acts := a.forward(row)
	out := acts[len(acts)-1]

	var sum float64
	for j, y := range out {
		diff := y - row[j]
		sum += diff * diff
	}
	return sum / float64(a.inputs)
}

// ScoreStream scores samples from a channel against a fixed threshold.
func (a *Autoencoder) ScoreStream(ctx context.Context, threshold float64, input <-chan []float64, output chan<- detectors.Score) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-input:
			if !ok {
				return nil
			}

			score, err := a.Score(sample)
			if err != nil {
				continue
			}

			select {
			case output <- detectors.Score{
				Value:     score,
				IsAnomaly: score > threshold,
				Features:  sample,
			}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Save serializes the model parameters.
func (a *Autoencoder) Save() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(a.inputs); err != nil {
		return nil, err
	}
	if err := enc.Encode(a.hidden); err != nil {
		return nil, err
	}
	if err := enc.Encode(a.weights); err != nil {
		return nil, err
	}
	if err := enc.Encode(a.biases); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes model parameters, replacing the current ones.
func (a *Autoencoder) Load(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	if err := dec.Decode(&a.inputs); err != nil {
		return err
	}
	if err := dec.Decode(&a.hidden); err != nil {
		return err
	}
	if err := dec.Decode(&a.weights); err != nil {
		return err
	}
	if err := dec.Decode(&a.biases); err != nil {
		return err
	}

	return nil
}
