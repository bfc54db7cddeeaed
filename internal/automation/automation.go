// Package automation drives the gateway's login dialog with xdotool: it
// selects the API type and trading mode, fills in the credentials, and
// acknowledges the connection warning, verifying each step against reference
// screenshots of the dialog.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibkit/ibgw/internal/config"
	"github.com/ibkit/ibgw/internal/ready"
	"github.com/ibkit/ibgw/internal/screenshot"
)

// CompleteMarker is the line printed to stdout once the dialog has been
// fully configured. The orchestrator's readiness probe for the automation
// stage watches for it.
const CompleteMarker = "--- Configuration Complete ---"

// windowTitle is the gateway login dialog's title.
const windowTitle = "IBKR Gateway"

// Dialog click targets at the 1024x768 resolution the display is created
// with. The window is moved to the origin first so these are absolute.
type point struct{ x, y int }

var (
	clickFIX         = point{311, 212}
	clickIBAPI       = point{510, 212}
	clickLive        = point{311, 212}
	clickPaper       = point{506, 229}
	clickIUnderstand = point{354, 391}
)

// XDo runs a single xdotool invocation. Tests substitute a scripted fake.
type XDo interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecXDo shells out to the real xdotool against Display.
type ExecXDo struct {
	Display string
}

func (x ExecXDo) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "xdotool", args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+x.Display)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("xdotool %s: %w (%s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Grabber captures the display for state verification.
type Grabber interface {
	Capture(ctx context.Context) (string, error)
}

// Automator performs the one-shot login dialog configuration.
type Automator struct {
	Config  config.Config
	XDo     XDo
	Grabber Grabber
	Logger  *zap.Logger

	// Out receives CompleteMarker on success. Defaults to os.Stdout.
	Out io.Writer

	// Sleep paces the dialog interactions. Defaults to time.Sleep.
	Sleep func(time.Duration)

	// PollInterval and StateTimeout control the state-wait cadence. Zero
	// means the defaults (1s interval, 30s budget).
	PollInterval time.Duration
	StateTimeout time.Duration
}

const (
	windowWaitTimeout = 60 * time.Second
	stateWaitTimeout  = 30 * time.Second
	settleDelay       = 2 * time.Second
)

// Run configures the login dialog end to end. State verification against
// the pre-credentials and warning-dialog references is advisory; the check
// of the selected API type and trading mode is mandatory because a
// misconfigured gateway would silently trade in the wrong mode.
func (a *Automator) Run(ctx context.Context) error {
	if a.Config.Username == "" || a.Config.Password == "" {
		return errors.New("IB_USERNAME and IB_PASSWORD must be set")
	}

	sleep := a.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	out := a.Out
	if out == nil {
		out = os.Stdout
	}

	window, err := a.findWindow(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("login dialog found", zap.String("window", window))

	if err := a.waitForState(ctx, "pre-credentials.png"); err != nil {
		a.Logger.Warn("dialog state not verified before configuration", zap.Error(err))
	}

	if _, err := a.XDo.Run(ctx, "windowmove", window, "0", "0"); err != nil {
		return fmt.Errorf("move dialog: %w", err)
	}
	sleep(settleDelay)

	if err := a.waitForState(ctx, "pre-credentials.png"); err != nil {
		a.Logger.Warn("dialog state not verified after move", zap.Error(err))
	}

	apiClick := clickIBAPI
	if a.Config.APIType == config.APITypeFIX {
		apiClick = clickFIX
	}
	modeClick := clickPaper
	if a.Config.TradingMode == config.TradingModeLive {
		modeClick = clickLive
	}

	if err := a.click(ctx, apiClick); err != nil {
		return fmt.Errorf("select API type: %w", err)
	}
	sleep(settleDelay)
	if err := a.click(ctx, modeClick); err != nil {
		return fmt.Errorf("select trading mode: %w", err)
	}
	sleep(settleDelay)

	// Mandatory: the dialog must actually show the selected combination.
	api := "ibapi"
	if a.Config.APIType == config.APITypeFIX {
		api = "fix"
	}
	ref := fmt.Sprintf("%s-%s.png", api, strings.ToLower(a.Config.TradingMode))
	if err := a.verifySelection(ctx, ref); err != nil {
		return fmt.Errorf("verify %s/%s selection: %w", a.Config.APIType, a.Config.TradingMode, err)
	}

	if _, err := a.XDo.Run(ctx, "type", "--delay", "50", a.Config.Username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if _, err := a.XDo.Run(ctx, "key", "Tab"); err != nil {
		return fmt.Errorf("focus password field: %w", err)
	}
	if _, err := a.XDo.Run(ctx, "type", "--delay", "50", a.Config.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if _, err := a.XDo.Run(ctx, "key", "Return"); err != nil {
		return fmt.Errorf("submit credentials: %w", err)
	}

	if err := a.waitForState(ctx, "i_understand.png"); err != nil {
		a.Logger.Warn("connection warning not detected, acknowledging blind", zap.Error(err))
	}
	if _, err := a.XDo.Run(ctx, "key", "Return"); err != nil {
		return fmt.Errorf("acknowledge warning: %w", err)
	}
	if err := a.click(ctx, clickIUnderstand); err != nil {
		return fmt.Errorf("acknowledge warning: %w", err)
	}

	a.Logger.Info("gateway configured",
		zap.String("api_type", a.Config.APIType),
		zap.String("trading_mode", a.Config.TradingMode))
	fmt.Fprintln(out, CompleteMarker)
	return nil
}

// findWindow polls for the login dialog's window ID.
func (a *Automator) findWindow(ctx context.Context) (string, error) {
	var window string
	check := checkerFunc(func(ctx context.Context) error {
		out, err := a.XDo.Run(ctx, "search", "--name", windowTitle)
		if err != nil {
			return err
		}
		if out == "" {
			return fmt.Errorf("window %q not found", windowTitle)
		}
		// Multiple IDs means duplicate matches; take the first.
		window = strings.Fields(out)[0]
		return nil
	})
	if err := ready.Poll(ctx, check, ready.DefaultInterval, windowWaitTimeout); err != nil {
		return "", fmt.Errorf("wait for login dialog: %w", err)
	}
	return window, nil
}

// waitForState polls until the display matches the named reference image.
// The dialog repaints asynchronously after every interaction, so a single
// capture can race the repaint; only the exhausted budget is conclusive.
func (a *Automator) waitForState(ctx context.Context, refName string) error {
	interval := a.PollInterval
	if interval <= 0 {
		interval = ready.DefaultInterval
	}
	timeout := a.StateTimeout
	if timeout <= 0 {
		timeout = stateWaitTimeout
	}
	check := checkerFunc(func(ctx context.Context) error {
		return a.compareToReference(ctx, refName)
	})
	return ready.Poll(ctx, check, interval, timeout)
}

// verifySelection polls like waitForState but a missing reference image
// fails immediately: it will not appear, and without it the selection can
// never be confirmed.
func (a *Automator) verifySelection(ctx context.Context, refName string) error {
	if _, err := os.Stat(filepath.Join(a.Config.ReferenceDir, refName)); err != nil {
		return fmt.Errorf("reference image: %w", err)
	}
	return a.waitForState(ctx, refName)
}

func (a *Automator) compareToReference(ctx context.Context, refName string) error {
	refPath := filepath.Join(a.Config.ReferenceDir, refName)
	if _, err := os.Stat(refPath); err != nil {
		return fmt.Errorf("reference image: %w", err)
	}

	capture, err := a.Grabber.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture for comparison: %w", err)
	}

	result, err := screenshot.Compare(capture, refPath)
	if err != nil {
		return err
	}
	if !result.Match(screenshot.DefaultThreshold, screenshot.DefaultMaxDiffPercent) {
		return fmt.Errorf("display does not match %s (mean diff %.2f, %.2f%% pixels differ)",
			refName, result.MeanDiff, result.DiffPercent)
	}
	return nil
}

func (a *Automator) click(ctx context.Context, p point) error {
	if _, err := a.XDo.Run(ctx, "mousemove", fmt.Sprint(p.x), fmt.Sprint(p.y)); err != nil {
		return err
	}
	_, err := a.XDo.Run(ctx, "click", "1")
	return err
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }
