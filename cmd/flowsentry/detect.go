package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hed1ad/flowsentry/pkg/detectors"
	"github.com/hed1ad/flowsentry/pkg/detectors/autoencoder"
	"github.com/hed1ad/flowsentry/pkg/evaluation"
	flowio "github.com/hed1ad/flowsentry/pkg/io"
	csvio "github.com/hed1ad/flowsentry/pkg/io/csv"
	pcapio "github.com/hed1ad/flowsentry/pkg/io/pcap"
	"github.com/hed1ad/flowsentry/pkg/preprocess"
)

type detectOptions struct {
	modelDir string
	pcapFile string
	iface    string
	output   string
}

func newDetectCmd() *cobra.Command {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect [input]",
		Short: "Score flows with a trained detector",
		Long: `Detect applies the persisted scaler, model, and threshold to new traffic.
Input is a flow CSV by default; --pcap scores a capture file and --live
scores packets from an interface until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) > 0 {
				input = args[0]
			}
			return runDetect(input, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.modelDir, "model", "m", "artifacts", "directory holding trained artifacts")
	flags.StringVar(&opts.pcapFile, "pcap", "", "score a PCAP file instead of a CSV")
	flags.StringVar(&opts.iface, "live", "", "score live traffic from an interface")
	flags.StringVarP(&opts.output, "output", "w", "", "write JSONL results to a file instead of stdout")

	return cmd
}

func runDetect(input string, opts *detectOptions) error {
	scaler, err := preprocess.LoadScaler(filepath.Join(opts.modelDir, "scaler.json"))
	if err != nil {
		return err
	}

	threshold, err := evaluation.LoadThreshold(filepath.Join(opts.modelDir, "threshold.json"))
	if err != nil {
		return err
	}

	blob, err := os.ReadFile(filepath.Join(opts.modelDir, "model.gob"))
	if err != nil {
		return fmt.Errorf("reading model artifact: %w", err)
	}
	model, err := autoencoder.FromBytes(blob)
	if err != nil {
		return err
	}
	if model.Inputs() != len(scaler.Mean) {
		return fmt.Errorf("model expects %d features but scaler has %d", model.Inputs(), len(scaler.Mean))
	}

	var out *flowio.JSONLWriter
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		out = flowio.NewJSONLWriter(f)
	} else {
		out = flowio.NewJSONLWriter(os.Stdout)
	}
	defer out.Close()

	if opts.iface != "" {
		return detectLive(opts.iface, scaler, model, threshold, out)
	}

	var reader flowio.Reader
	switch {
	case opts.pcapFile != "":
		reader, err = pcapio.NewFileReader(opts.pcapFile)
		if err != nil {
			return fmt.Errorf("opening pcap %s: %w", opts.pcapFile, err)
		}
	case input != "":
		reader, err = csvio.NewReader(input)
		if err != nil {
			return fmt.Errorf("opening dataset %s: %w", input, err)
		}
	default:
		return fmt.Errorf("nothing to score: pass a CSV path, --pcap, or --live")
	}
	defer reader.Close()

	rows, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("input contains no records")
	}
	if len(rows[0]) != model.Inputs() {
		return fmt.Errorf("input has %d features but model expects %d", len(rows[0]), model.Inputs())
	}

	scores, err := model.ScoreBatch(scaler.TransformAll(rows))
	if err != nil {
		return err
	}

	anomalies := 0
	now := time.Now().Unix()
	for i, score := range scores {
		isAnomaly := score > threshold
		if isAnomaly {
			anomalies++
		}
		if err := out.Write(flowio.Result{
			Timestamp: now,
			Score:     score,
			IsAnomaly: isAnomaly,
			Features:  rows[i],
		}); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "%d/%d records flagged anomalous (threshold %.6f)\n",
		anomalies, len(scores), threshold)
	return nil
}

// detectLive scores packets from an interface until interrupted.
func detectLive(iface string, scaler *preprocess.Scaler, model *autoencoder.Autoencoder, threshold float64, out *flowio.JSONLWriter) error {
	// The packet extractor has a fixed feature layout; a model trained on a
	// different schema cannot score live traffic.
	if width := len(pcapio.NewFeatureExtractor().FeatureNames()); width != model.Inputs() {
		return fmt.Errorf("live capture produces %d features but model expects %d", width, model.Inputs())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := pcapio.NewLiveReader(iface, 65535, true, time.Second)
	if err != nil {
		return fmt.Errorf("opening interface %s: %w", iface, err)
	}
	defer reader.Close()

	raw, err := reader.Stream(ctx)
	if err != nil {
		return err
	}

	scaled := make(chan []float64, 100)
	go func() {
		defer close(scaled)
		for row := range raw {
			select {
			case scaled <- scaler.Transform(row):
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make(chan detectors.Score, 100)
	errc := make(chan error, 1)
	go func() {
		errc <- model.ScoreStream(ctx, threshold, scaled, results)
		close(results)
	}()

	for score := range results {
		if err := out.Write(flowio.Result{
			Timestamp: time.Now().Unix(),
			Score:     score.Value,
			IsAnomaly: score.IsAnomaly,
			Features:  score.Features,
		}); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}

	if err := <-errc; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
