package orchestrator

import (
	"fmt"
	"time"

	"github.com/ibkit/ibgw/internal/config"
	"github.com/ibkit/ibgw/internal/proc"
)

// ConfigurationMarker is printed by the GUI automation when gateway
// configuration has finished. The automation stage's own readiness probe
// waits for it to appear in the stage's captured output, which holds back
// every later stage.
const ConfigurationMarker = "Configuration Complete"

// Services builds the ordered service list for the container. exe is the
// path to this binary; several stages re-exec it with a subcommand so the
// whole stack ships as one executable.
//
// Order matters: each stage assumes everything before it is ready. The
// display server comes first, then the VNC chain for observability, then
// the gateway with its automation, and finally the conveniences layered on
// top (screenshot service, port forwarders).
func Services(cfg config.Config, exe string) []ServiceSpec {
	display := "DISPLAY=" + cfg.Display

	specs := []ServiceSpec{
		{
			Name: "xvfb",
			Command: proc.Command{
				Path: "Xvfb",
				Args: []string{
					cfg.Display,
					"-screen", "0", cfg.Resolution + "x24",
					"-ac",
					"+extension", "GLX",
					"+render",
					"-noreset",
				},
			},
			Probe:        Probe{Kind: ProbeProcessAlive},
			ReadyTimeout: 30 * time.Second,
		},
		{
			Name: "x11vnc",
			Command: proc.Command{
				Path: "x11vnc",
				Args: []string{
					"-display", cfg.Display,
					"-nopw",
					"-listen", "0.0.0.0",
					"-rfbport", fmt.Sprint(cfg.VNCPort),
					"-xkb",
					"-forever",
					"-shared",
				},
			},
			Probe:        Probe{Kind: ProbePortListening, Addrs: []string{localAddr(cfg.VNCPort)}},
			ReadyTimeout: 30 * time.Second,
		},
		{
			Name: "novnc",
			Command: proc.Command{
				Path: "websockify",
				Args: []string{
					"--web=" + cfg.NoVNCDir,
					fmt.Sprint(cfg.WebPort),
					fmt.Sprintf("localhost:%d", cfg.VNCPort),
				},
			},
			Probe:        Probe{Kind: ProbePortListening, Addrs: []string{localAddr(cfg.WebPort)}},
			ReadyTimeout: 30 * time.Second,
		},
		{
			Name: "gateway",
			Command: proc.Command{
				Path: cfg.GatewayPath,
				Env:  []string{display},
			},
			Probe:        Probe{Kind: ProbeProcessAlive},
			ReadyTimeout: 30 * time.Second,
		},
	}

	if !cfg.SkipAutomation {
		specs = append(specs, ServiceSpec{
			Name: "automation",
			Command: proc.Command{
				Path: exe,
				Args: []string{"automate"},
				Env:  []string{display},
			},
			Probe:        Probe{Kind: ProbeLogMarker, Marker: ConfigurationMarker},
			ReadyTimeout: 90 * time.Second,
			BestEffort:   true,
		})
	}

	specs = append(specs, ServiceSpec{
		Name: "screenshot-server",
		Command: proc.Command{
			Path: exe,
			Args: []string{"screenshot-server", "--port", fmt.Sprint(cfg.ScreenshotPort)},
			Env:  []string{display},
		},
		Probe: Probe{
			Kind: ProbeHTTP,
			URL:  fmt.Sprintf("http://127.0.0.1:%d/", cfg.ScreenshotPort),
		},
		ReadyTimeout: 60 * time.Second,
	})

	specs = append(specs, ServiceSpec{
		Name: "port-forward",
		Command: proc.Command{
			Path: exe,
			Args: []string{"port-forward"},
		},
		Probe: Probe{
			Kind: ProbePortListening,
			Addrs: []string{
				localAddr(cfg.ForwardLivePort),
				localAddr(cfg.ForwardPaperPort),
			},
		},
		ReadyTimeout: 30 * time.Second,
		BestEffort:   true,
	})

	return specs
}

func localAddr(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}
