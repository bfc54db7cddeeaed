package commands

import (
	"github.com/spf13/cobra"

	"github.com/ibkit/ibgw/internal/automation"
	"github.com/ibkit/ibgw/internal/screenshot"
)

var automateCmd = &cobra.Command{
	Use:   "automate",
	Short: "Configure the gateway login dialog",
	Long: `Automate drives the gateway's login dialog on the virtual display:
selects the API type and trading mode, enters the credentials and
acknowledges the connection warning. Prints a completion marker to
stdout when done; the supervisor waits for that marker.`,
	RunE: runAutomate,
}

func runAutomate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &automation.Automator{
		Config:  *cfg,
		XDo:     automation.ExecXDo{Display: cfg.Display},
		Grabber: screenshot.NewCapturer(cfg.Display, cfg.ScreenshotDir, logger.Named("capture")),
		Logger:  logger,
		Out:     cmd.OutOrStdout(),
	}
	return a.Run(cmd.Context())
}
