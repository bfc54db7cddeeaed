package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibkit/ibgw/internal/screenshot"
)

var screenshotServerPort int

var screenshotServerCmd = &cobra.Command{
	Use:   "screenshot-server",
	Short: "Serve display captures over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		port := cfg.ScreenshotPort
		if cmd.Flags().Changed("port") {
			port = screenshotServerPort
		}

		srv := &screenshot.Server{
			Grabber: screenshot.NewCapturer(cfg.Display, cfg.ScreenshotDir, logger.Named("capture")),
			Logger:  logger,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Runner(fmt.Sprintf("0.0.0.0:%d", port)).Run(ctx)
	},
}

func init() {
	screenshotServerCmd.Flags().IntVar(&screenshotServerPort, "port", 8080, "listen port")
}
