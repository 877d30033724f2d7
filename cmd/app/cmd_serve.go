package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"RiskPulse/internal/di"
	"RiskPulse/pkg/config"
)

var serveFlags struct {
	watch bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator, ingest and HTTP API until interrupted",
	Long: `Loads the config file with RISKPULSE_* environment overrides, wires every
configured sink and serves the API. With --watch the orchestrator section of
the config file is re-applied whenever the file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", true, "hot reload the orchestrator section of the config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWithEnv(rootFlags.configPath)
	if err != nil {
		return err
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	if serveFlags.watch && rootFlags.configPath != "" {
		app.SetConfigPath(rootFlags.configPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
