// Package commands implements the ibgw CLI. The binary is both the
// container entrypoint (start) and the helper processes the entrypoint
// re-execs (automate, screenshot-server, port-forward) plus a few
// operational one-shots.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibkit/ibgw/internal/config"
	"github.com/ibkit/ibgw/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "ibgw",
	Short:         "Headless IB Gateway container supervisor",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(automateCmd)
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(screenshotServerCmd)
	rootCmd.AddCommand(portForwardCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the environment configuration and builds the logger. Every
// subcommand starts here.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(verbose, cfg.LogFile)
	return cfg, logger, nil
}
