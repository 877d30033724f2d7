// app is the RiskPulse binary: the intelligence service plus offline
// access to the cluster and decision engines.
//
// Usage:
//
//	app serve   [--config=<path>] [--watch]
//	app cluster -f <signals.json>
//	app decide  -f <decision.json>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "RiskPulse signal fusion and execution gating",
	Long: `RiskPulse clusters incoming signal records, scores system risk on a
fixed cadence and gates execution through the fusion matrix and rule engine.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", "config/config.yaml", "config file path (empty for defaults plus environment)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
