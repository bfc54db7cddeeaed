package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibkit/ibgw/internal/forward"
)

var portForwardCmd = &cobra.Command{
	Use:   "port-forward",
	Short: "Relay the external API ports to the gateway",
	Long: `Port-forward exposes the gateway's localhost-only API ports on the
container's published ports: one relay for the live port and one for
the paper port. It waits briefly for the gateway to start listening,
then relays until terminated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = forward.Pair(*cfg, logger).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
