package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibkit/ibgw/internal/orchestrator"
	"github.com/ibkit/ibgw/internal/proc"
)

var noAutomation bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start and supervise the full service stack",
	Long: `Start brings up the container's services in order: the virtual display,
the VNC chain, the gateway with its login automation, the screenshot
service and the API port forwarders. It then supervises them until
SIGTERM or SIGINT arrives and stops everything in reverse order.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&noAutomation, "no-automation", false, "skip the login automation stage")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if noAutomation {
		cfg.SkipAutomation = true
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("display", cfg.Display),
		zap.String("api_type", cfg.APIType),
		zap.String("trading_mode", cfg.TradingMode),
		zap.Bool("automation", !cfg.SkipAutomation))

	orch := orchestrator.New(proc.ExecSupervisor{}, orchestrator.NewEventLog(), logger)
	return orch.Run(ctx, orchestrator.Services(*cfg, exe))
}
