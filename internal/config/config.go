// Package config loads the gateway supervisor configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// API transport choices presented by the gateway's configuration dialog.
const (
	APITypeFIX   = "FIX"
	APITypeIBAPI = "IB_API"
)

// Trading modes. The mode decides which internal API port the gateway opens.
const (
	TradingModeLive  = "LIVE"
	TradingModePaper = "PAPER"
)

// Config is the complete configuration for one ibgw invocation. It is built
// once at startup and passed explicitly; nothing reads the environment after
// Load returns.
type Config struct {
	// Credentials and dialog choices consumed by the automation stage.
	Username    string
	Password    string
	APIType     string // FIX or IB_API
	TradingMode string // LIVE or PAPER

	// Display stack.
	Display    string // X display, e.g. ":99"
	Resolution string // Xvfb screen resolution, e.g. "1024x768"

	// Screenshot service.
	ScreenshotDir  string
	ScreenshotPort int

	// Paths baked into the container image.
	GatewayPath  string // IB Gateway launcher binary
	NoVNCDir     string // static noVNC web assets served by websockify
	ReferenceDir string // reference screenshots used by automation

	// Orchestration knobs.
	SkipAutomation     bool
	LogFile            string // optional rotating log file, empty to disable
	HealthcheckTimeout time.Duration

	// Fixed port layout. The gateway only accepts loopback connections, so
	// the forwarder re-exposes LivePort/PaperPort on the Forward* ports.
	VNCPort          int // x11vnc RFB port
	WebPort          int // websockify/noVNC web port
	LivePort         int // gateway live-trading API port (loopback only)
	PaperPort        int // gateway paper-trading API port (loopback only)
	ForwardLivePort  int // externally reachable live port
	ForwardPaperPort int // externally reachable paper port
}

// Load reads configuration from a .env file (if present in the working
// directory) and the environment. Environment variables win over the file.
func Load() (*Config, error) {
	// gotenv.Load never overrides variables already present in the
	// environment, so real env vars win over the file.
	if err := gotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("api_type", APITypeIBAPI)
	v.SetDefault("trading_mode", TradingModePaper)
	v.SetDefault("display", ":99")
	v.SetDefault("resolution", "1024x768")
	v.SetDefault("screenshot_dir", "/tmp/screenshots")
	v.SetDefault("screenshot_port", 8080)
	v.SetDefault("gateway_path", "/opt/ibgateway/ibgateway")
	v.SetDefault("novnc_dir", "/opt/novnc")
	v.SetDefault("reference_dir", "/opt/ibgw/test-screenshots")
	v.SetDefault("skip_automation", false)
	v.SetDefault("healthcheck_timeout", "1.5s")

	bindings := map[string]string{
		"username":            "IB_USERNAME",
		"password":            "IB_PASSWORD",
		"api_type":            "IB_API_TYPE",
		"trading_mode":        "IB_TRADING_MODE",
		"display":             "DISPLAY",
		"resolution":          "RESOLUTION",
		"screenshot_dir":      "SCREENSHOT_DIR",
		"screenshot_port":     "SCREENSHOT_PORT",
		"gateway_path":        "IBGW_GATEWAY_PATH",
		"novnc_dir":           "IBGW_NOVNC_DIR",
		"reference_dir":       "IBGW_REFERENCE_DIR",
		"skip_automation":     "SKIP_AUTOMATION",
		"log_file":            "IBGW_LOG_FILE",
		"healthcheck_timeout": "IBGW_HEALTHCHECK_TIMEOUT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Username:           v.GetString("username"),
		Password:           v.GetString("password"),
		APIType:            strings.ToUpper(v.GetString("api_type")),
		TradingMode:        strings.ToUpper(v.GetString("trading_mode")),
		Display:            v.GetString("display"),
		Resolution:         v.GetString("resolution"),
		ScreenshotDir:      v.GetString("screenshot_dir"),
		ScreenshotPort:     v.GetInt("screenshot_port"),
		GatewayPath:        v.GetString("gateway_path"),
		NoVNCDir:           v.GetString("novnc_dir"),
		ReferenceDir:       v.GetString("reference_dir"),
		SkipAutomation:     v.GetBool("skip_automation"),
		LogFile:            v.GetString("log_file"),
		HealthcheckTimeout: v.GetDuration("healthcheck_timeout"),

		VNCPort:          5901,
		WebPort:          5900,
		LivePort:         4001,
		PaperPort:        4002,
		ForwardLivePort:  4003,
		ForwardPaperPort: 4004,
	}

	// GetDuration yields 0 for an unparsable value, which would make every
	// health probe fail instantly. Fall back to the default instead.
	if cfg.HealthcheckTimeout <= 0 {
		cfg.HealthcheckTimeout = 1500 * time.Millisecond
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enum-valued fields.
func (c *Config) Validate() error {
	switch c.APIType {
	case APITypeFIX, APITypeIBAPI:
	default:
		return fmt.Errorf("IB_API_TYPE must be %s or %s, got %q", APITypeFIX, APITypeIBAPI, c.APIType)
	}
	switch c.TradingMode {
	case TradingModeLive, TradingModePaper:
	default:
		return fmt.Errorf("IB_TRADING_MODE must be %s or %s, got %q", TradingModeLive, TradingModePaper, c.TradingMode)
	}
	if c.ScreenshotPort <= 0 || c.ScreenshotPort > 65535 {
		return fmt.Errorf("SCREENSHOT_PORT out of range: %d", c.ScreenshotPort)
	}
	return nil
}

// GatewayAPIPort returns the internal API port the gateway opens for the
// configured trading mode.
func (c *Config) GatewayAPIPort() int {
	if c.TradingMode == TradingModeLive {
		return c.LivePort
	}
	return c.PaperPort
}
