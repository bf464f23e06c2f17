package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hed1ad/flowsentry/pkg/detectors/autoencoder"
	"github.com/hed1ad/flowsentry/pkg/evaluation"
	csvio "github.com/hed1ad/flowsentry/pkg/io/csv"
	"github.com/hed1ad/flowsentry/pkg/preprocess"
	"github.com/hed1ad/flowsentry/pkg/training"
)

const defaultDataset = "data/flows.csv"

type trainOptions struct {
	out      string
	seed     int64
	testFrac float64
	valFrac  float64
	hidden   []int

	epochs          int
	batchSize       int
	learningRate    float64
	patience        int
	minDelta        float64
	plateauPatience int
	plateauFactor   float64
	shuffle         bool

	labelColumn string
	benignToken string
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}

	cmd := &cobra.Command{
		Use:   "train [dataset]",
		Short: "Train a detector on a labeled flow dataset",
		Long: `Train reads a labeled flow CSV, trains the autoencoder on benign flows
only, calibrates the anomaly threshold, and writes the model, scaler, and
threshold artifacts to the output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := defaultDataset
			if len(args) > 0 {
				dataset = args[0]
			}
			return runTrain(dataset, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.out, "out", "o", "artifacts", "output directory for trained artifacts")
	flags.Int64Var(&opts.seed, "seed", 42, "random seed for splitting and initialization")
	flags.Float64Var(&opts.testFrac, "test-frac", 0.2, "fraction of records held out for testing")
	flags.Float64Var(&opts.valFrac, "val-frac", 0.1, "fraction of benign remainder used for validation")
	flags.IntSliceVar(&opts.hidden, "hidden", []int{16, 8, 16}, "hidden layer sizes")
	flags.IntVar(&opts.epochs, "epochs", 100, "maximum training epochs")
	flags.IntVar(&opts.batchSize, "batch-size", 64, "mini-batch size")
	flags.Float64Var(&opts.learningRate, "lr", 0.01, "initial learning rate")
	flags.IntVar(&opts.patience, "patience", 10, "early-stopping patience in epochs")
	flags.Float64Var(&opts.minDelta, "min-delta", 1e-4, "minimum validation-loss improvement")
	flags.IntVar(&opts.plateauPatience, "plateau-patience", 5, "epochs without improvement before halving the learning rate")
	flags.Float64Var(&opts.plateauFactor, "plateau-factor", 0.5, "learning-rate reduction factor")
	flags.BoolVar(&opts.shuffle, "shuffle", false, "reshuffle batch order every epoch")
	flags.StringVar(&opts.labelColumn, "label-column", "Label", "name of the label column")
	flags.StringVar(&opts.benignToken, "benign-token", "BENIGN", "label value treated as benign")

	return cmd
}

func runTrain(dataset string, opts *trainOptions) error {
	reader, err := csvio.NewReader(dataset,
		csvio.WithLabelColumn(opts.labelColumn),
		csvio.WithBenignToken(opts.benignToken),
	)
	if err != nil {
		return fmt.Errorf("opening dataset %s: %w", dataset, err)
	}
	defer reader.Close()

	features, labels, header, err := reader.ReadLabeled()
	if err != nil {
		return fmt.Errorf("loading dataset %s: %w", dataset, err)
	}
	fmt.Printf("loaded %d records with %d features\n", len(features), len(header))

	split, err := preprocess.SplitIndices(labels, opts.testFrac, opts.valFrac, opts.seed)
	if err != nil {
		return err
	}
	fmt.Printf("split: train=%d val=%d test=%d\n", len(split.Train), len(split.Val), len(split.Test))

	scaler, err := preprocess.FitScaler(preprocess.Gather(features, split.Train))
	if err != nil {
		return err
	}

	trainRows := scaler.TransformAll(preprocess.Gather(features, split.Train))
	valRows := scaler.TransformAll(preprocess.Gather(features, split.Val))
	testRows := scaler.TransformAll(preprocess.Gather(features, split.Test))
	testLabels := preprocess.GatherLabels(labels, split.Test)

	model, err := autoencoder.New(len(header),
		autoencoder.WithHidden(opts.hidden...),
		autoencoder.WithSeed(opts.seed),
	)
	if err != nil {
		return err
	}

	store, err := training.NewFileStore(opts.out)
	if err != nil {
		return err
	}

	cfg := training.Config{
		MaxEpochs:        opts.epochs,
		BatchSize:        opts.batchSize,
		LearningRate:     opts.learningRate,
		Patience:         opts.patience,
		MinDelta:         opts.minDelta,
		PlateauFactor:    opts.plateauFactor,
		PlateauPatience:  opts.plateauPatience,
		PlateauThreshold: opts.minDelta,
		Shuffle:          opts.shuffle,
		Seed:             opts.seed,
		Logf: func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		},
	}

	res, err := training.Fit(model, trainRows, valRows, store, cfg)
	if err != nil {
		return err
	}
	if res.EarlyStopped {
		fmt.Printf("early stop after %d epochs, best val_loss=%.6f at epoch %d\n",
			res.Epochs, res.BestValLoss, res.BestEpoch)
	} else {
		fmt.Printf("trained %d epochs, best val_loss=%.6f at epoch %d\n",
			res.Epochs, res.BestValLoss, res.BestEpoch)
	}

	valErrors, err := model.ScoreBatch(valRows)
	if err != nil {
		return fmt.Errorf("scoring validation set: %w", err)
	}
	testErrors, err := model.ScoreBatch(testRows)
	if err != nil {
		return fmt.Errorf("scoring test set: %w", err)
	}

	cal, err := evaluation.Calibrate(valErrors, testErrors, testLabels)
	if err != nil {
		return err
	}
	if cal.Fallback {
		fmt.Printf("no candidate threshold scored above F1=0, using max validation error %.6f\n", cal.Threshold)
	} else {
		fmt.Printf("threshold=%.6f (p=%.3f, F1=%.4f)\n", cal.Threshold, cal.Percentile, cal.F1)
	}

	m := evaluation.Confusion(testErrors, testLabels, cal.Threshold)
	fmt.Printf("test: tp=%d fp=%d fn=%d tn=%d\n", m.TP, m.FP, m.FN, m.TN)
	fmt.Printf("test: accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f\n",
		m.Accuracy(), m.Precision(), m.Recall(), m.F1())

	if err := scaler.Save(filepath.Join(opts.out, "scaler.json")); err != nil {
		return err
	}
	if err := evaluation.SaveThreshold(filepath.Join(opts.out, "threshold.json"), cal.Threshold); err != nil {
		return err
	}

	blob, err := model.Save()
	if err != nil {
		return fmt.Errorf("serializing model: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.out, "model.gob"), blob, 0o644); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}

	fmt.Printf("artifacts written to %s\n", opts.out)
	return nil
}
