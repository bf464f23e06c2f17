// Command flowsentry trains and applies a reconstruction-based DDoS flow
// detector.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "flowsentry",
		Short: "Reconstruction-based anomaly detection for network flows",
		Long: `flowsentry trains an autoencoder on benign network flows, calibrates a
reconstruction-error threshold, and applies the trained detector to new
traffic from CSV datasets, PCAP files, or live interfaces.`,
		SilenceUsage: true,
	}

	root.AddCommand(newTrainCmd())
	root.AddCommand(newDetectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
