package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibkit/ibgw/internal/healthcheck"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe the gateway API port for the configured trading mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := healthcheck.Check(cmd.Context(), *cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "gateway healthy on port %d\n", cfg.GatewayAPIPort())
		return nil
	},
}
