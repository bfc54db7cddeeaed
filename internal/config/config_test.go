package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ibkit/ibgw/internal/config"
)

// chdirTemp moves the test into an empty directory so a developer's .env
// file cannot leak into the result.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.APIType != config.APITypeIBAPI {
		t.Errorf("APIType %q", cfg.APIType)
	}
	if cfg.TradingMode != config.TradingModePaper {
		t.Errorf("TradingMode %q", cfg.TradingMode)
	}
	if cfg.Display != ":99" {
		t.Errorf("Display %q", cfg.Display)
	}
	if cfg.Resolution != "1024x768" {
		t.Errorf("Resolution %q", cfg.Resolution)
	}
	if cfg.ScreenshotPort != 8080 {
		t.Errorf("ScreenshotPort %d", cfg.ScreenshotPort)
	}
	if cfg.HealthcheckTimeout != 1500*time.Millisecond {
		t.Errorf("HealthcheckTimeout %v", cfg.HealthcheckTimeout)
	}
	if cfg.VNCPort != 5901 || cfg.WebPort != 5900 {
		t.Errorf("VNC ports %d/%d", cfg.VNCPort, cfg.WebPort)
	}
	if cfg.LivePort != 4001 || cfg.PaperPort != 4002 {
		t.Errorf("gateway ports %d/%d", cfg.LivePort, cfg.PaperPort)
	}
	if cfg.ForwardLivePort != 4003 || cfg.ForwardPaperPort != 4004 {
		t.Errorf("forward ports %d/%d", cfg.ForwardLivePort, cfg.ForwardPaperPort)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IB_USERNAME", "alice")
	t.Setenv("IB_PASSWORD", "secret")
	t.Setenv("IB_API_TYPE", "fix")
	t.Setenv("IB_TRADING_MODE", "live")
	t.Setenv("SCREENSHOT_PORT", "9090")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Username != "alice" || cfg.Password != "secret" {
		t.Errorf("credentials not read: %q/%q", cfg.Username, cfg.Password)
	}
	// Enum values are case-insensitive in the environment.
	if cfg.APIType != config.APITypeFIX {
		t.Errorf("APIType %q", cfg.APIType)
	}
	if cfg.TradingMode != config.TradingModeLive {
		t.Errorf("TradingMode %q", cfg.TradingMode)
	}
	if cfg.ScreenshotPort != 9090 {
		t.Errorf("ScreenshotPort %d", cfg.ScreenshotPort)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	// Loading the file exports its variables into the test process.
	t.Cleanup(func() {
		os.Unsetenv("IB_USERNAME")
		os.Unsetenv("IB_TRADING_MODE")
	})

	dir := t.TempDir()
	env := "IB_USERNAME=from-file\nIB_TRADING_MODE=LIVE\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Username != "from-file" {
		t.Errorf("Username %q", cfg.Username)
	}
	if cfg.TradingMode != config.TradingModeLive {
		t.Errorf("TradingMode %q", cfg.TradingMode)
	}
}

func TestLoad_UnparsableHealthcheckTimeoutFallsBack(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IBGW_HEALTHCHECK_TIMEOUT", "soon")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HealthcheckTimeout != 1500*time.Millisecond {
		t.Errorf("HealthcheckTimeout %v, want the 1.5s default", cfg.HealthcheckTimeout)
	}
}

func TestLoad_RejectsBadEnums(t *testing.T) {
	chdirTemp(t)
	t.Setenv("IB_API_TYPE", "CARRIER_PIGEON")

	if _, err := config.Load(); err == nil {
		t.Fatal("want error for invalid API type")
	}
}

func TestGatewayAPIPort(t *testing.T) {
	cfg := config.Config{TradingMode: config.TradingModeLive, LivePort: 4001, PaperPort: 4002}
	if got := cfg.GatewayAPIPort(); got != 4001 {
		t.Fatalf("live port %d", got)
	}
	cfg.TradingMode = config.TradingModePaper
	if got := cfg.GatewayAPIPort(); got != 4002 {
		t.Fatalf("paper port %d", got)
	}
}
