package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/config"
	"github.com/Rocksteady808/roolify-sub002/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roolify",
		Short: "Roolify - conditional email routing for Webflow form submissions",
		Long: `Roolify receives Webflow form submissions, stores them and emails each
one to the recipients whose routes match the submitted fields.

Run "roolify serve" to start the webhook and dashboard API.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./roolify.yaml if present)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRoutesCmd())
	return root
}

// loadConfig reads configuration and builds the logger for commands that
// need both.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
