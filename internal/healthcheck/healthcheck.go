// Package healthcheck implements the container health probe: a TCP dial
// against the gateway API port for the configured trading mode.
package healthcheck

import (
	"context"
	"fmt"
	"net"

	"github.com/ibkit/ibgw/internal/config"
)

// Check dials the gateway's API port and reports whether it accepts
// connections. The port follows the trading mode: live and paper listen on
// different ports.
func Check(ctx context.Context, cfg config.Config) error {
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.GatewayAPIPort())

	ctx, cancel := context.WithTimeout(ctx, cfg.HealthcheckTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway not accepting connections on %s: %w", addr, err)
	}
	conn.Close()
	return nil
}
