// Package training drives mini-batch training of a reconstruction model
// with early stopping, plateau learning-rate reduction, and best-checkpoint
// selection.
package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Model is the trainable boundary the controller drives. Save and Load move
// the full parameter set as an opaque blob, which doubles as the checkpoint
// format.
type Model interface {
	// TrainBatch performs one gradient step and returns the batch loss.
	TrainBatch(batch [][]float64, lr float64) (float64, error)

	// Loss returns the mean reconstruction loss over rows without updating.
	Loss(rows [][]float64) (float64, error)

	// Save serializes the current parameters.
	Save() ([]byte, error)

	// Load replaces the current parameters with a saved snapshot.
	Load(blob []byte) error
}

// Config holds the training hyperparameters.
type Config struct {
	MaxEpochs    int
	BatchSize    int
	LearningRate float64

	// Early stopping: training stops after Patience consecutive epochs
	// whose validation loss fails to improve on the best by more than
	// MinDelta.
	Patience int
	MinDelta float64

	// Plateau learning-rate reduction, tracked independently of early
	// stopping.
	PlateauFactor    float64
	PlateauPatience  int
	PlateauThreshold float64

	// Shuffle enables per-epoch reshuffling of the batch traversal order.
	// Off by default: the fixed sequential order is part of the
	// reproducible contract.
	Shuffle bool
	Seed    int64

	// Logf receives informational per-epoch output. Optional.
	Logf func(format string, args ...any)
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		MaxEpochs:        100,
		BatchSize:        64,
		LearningRate:     0.01,
		Patience:         10,
		MinDelta:         1e-4,
		PlateauFactor:    0.5,
		PlateauPatience:  5,
		PlateauThreshold: 1e-4,
		Seed:             42,
	}
}

// EpochStats records one epoch of the training history.
type EpochStats struct {
	Epoch        int
	TrainLoss    float64
	ValLoss      float64
	LearningRate float64
}

// Result summarizes a completed training run. After Fit returns, the model
// holds the parameters of BestEpoch, not the last-trained ones.
type Result struct {
	Epochs       int
	BestEpoch    int
	BestValLoss  float64
	EarlyStopped bool
	FinalLR      float64
	History      []EpochStats
}

// Fit trains the model until early stop or MaxEpochs, then reloads the best
// checkpoint into the model. The store receives the "best" snapshot on every
// improvement and a "final" snapshot of the last-trained parameters.
func Fit(model Model, train, val [][]float64, store CheckpointStore, cfg Config) (*Result, error) {
	if len(train) == 0 {
		return nil, errors.New("training: empty training set")
	}
	if len(val) == 0 {
		return nil, errors.New("training: empty validation set")
	}
	if store == nil {
		return nil, errors.New("training: nil checkpoint store")
	}
	if cfg.MaxEpochs <= 0 || cfg.BatchSize <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("training: invalid config epochs=%d batch=%d lr=%g",
			cfg.MaxEpochs, cfg.BatchSize, cfg.LearningRate)
	}
	if cfg.Patience <= 0 {
		return nil, fmt.Errorf("training: invalid patience %d", cfg.Patience)
	}

	sched := NewPlateauScheduler(cfg.LearningRate, cfg.PlateauFactor, cfg.PlateauPatience, cfg.PlateauThreshold)
	rng := rand.New(rand.NewSource(cfg.Seed))

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	res := &Result{
		BestValLoss: math.Inf(1),
		FinalLR:     cfg.LearningRate,
	}

	lr := cfg.LearningRate
	badEpochs := 0

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		if cfg.Shuffle {
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		var lossSum float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}

			batch := make([][]float64, end-start)
			for i, idx := range order[start:end] {
				batch[i] = train[idx]
			}

			loss, err := model.TrainBatch(batch, lr)
			if err != nil {
				return nil, fmt.Errorf("training: epoch %d batch at %d: %w", epoch, start, err)
			}
			lossSum += loss * float64(len(batch))
		}
		trainLoss := lossSum / float64(len(train))

		valLoss, err := model.Loss(val)
		if err != nil {
			return nil, fmt.Errorf("training: epoch %d validation: %w", epoch, err)
		}

		nextLR := sched.Step(valLoss)

		improved := res.BestValLoss-valLoss > cfg.MinDelta
		if improved {
			res.BestValLoss = valLoss
			res.BestEpoch = epoch
			badEpochs = 0

			blob, err := model.Save()
			if err != nil {
				return nil, fmt.Errorf("training: snapshotting epoch %d: %w", epoch, err)
			}
			if err := store.Put(CheckpointBest, blob); err != nil {
				return nil, fmt.Errorf("training: persisting best checkpoint: %w", err)
			}
		} else {
			badEpochs++
		}

		res.Epochs = epoch
		res.History = append(res.History, EpochStats{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			ValLoss:      valLoss,
			LearningRate: lr,
		})
		if cfg.Logf != nil {
			cfg.Logf("epoch %d: train_loss=%.6f val_loss=%.6f lr=%.6g", epoch, trainLoss, valLoss, lr)
		}

		lr = nextLR
		res.FinalLR = lr

		if badEpochs >= cfg.Patience {
			res.EarlyStopped = true
			break
		}
	}

	finalBlob, err := model.Save()
	if err != nil {
		return nil, fmt.Errorf("training: snapshotting final parameters: %w", err)
	}
	if err := store.Put(CheckpointFinal, finalBlob); err != nil {
		return nil, fmt.Errorf("training: persisting final checkpoint: %w", err)
	}

	// The model that leaves training is the lowest-validation-loss snapshot,
	// not the last-trained one.
	bestBlob, err := store.Get(CheckpointBest)
	if err != nil {
		return nil, fmt.Errorf("training: reloading best checkpoint: %w", err)
	}
	if err := model.Load(bestBlob); err != nil {
		return nil, fmt.Errorf("training: restoring best checkpoint: %w", err)
	}

	return res, nil
}
