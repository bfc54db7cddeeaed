package healthcheck_test

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ibkit/ibgw/internal/config"
	"github.com/ibkit/ibgw/internal/healthcheck"
)

func testConfig(port int) config.Config {
	return config.Config{
		TradingMode:        config.TradingModePaper,
		PaperPort:          port,
		LivePort:           port + 1,
		HealthcheckTimeout: 1500 * time.Millisecond,
	}
}

func TestCheck_PortListening(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	is.NoErr(err)
	port, err := strconv.Atoi(portStr)
	is.NoErr(err)

	err = healthcheck.Check(context.Background(), testConfig(port))
	is.NoErr(err) // listening gateway port must report healthy
}

func TestCheck_PortClosed(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	is.NoErr(err)
	port, err := strconv.Atoi(portStr)
	is.NoErr(err)
	ln.Close()

	err = healthcheck.Check(context.Background(), testConfig(port))
	is.True(err != nil) // closed port must report unhealthy
}

func TestCheck_UsesModePort(t *testing.T) {
	is := is.New(t)

	// The paper port listens but the mode is LIVE, so the probe must dial
	// the live port and fail.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)
	defer ln.Close()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	is.NoErr(err)
	paperPort, err := strconv.Atoi(portStr)
	is.NoErr(err)

	cfg := testConfig(paperPort)
	cfg.TradingMode = config.TradingModeLive
	cfg.LivePort = freePort(t)

	err = healthcheck.Check(context.Background(), cfg)
	is.True(err != nil)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}
