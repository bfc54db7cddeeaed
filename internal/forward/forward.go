// Package forward relays TCP connections from an externally exposed port to
// the gateway's local API port. The gateway only accepts API connections on
// localhost, so the container publishes a relay port instead.
package forward

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matgreaves/run"
	"go.uber.org/zap"

	"github.com/ibkit/ibgw/internal/config"
	"github.com/ibkit/ibgw/internal/ready"
)

// Forwarder relays TCP connections from ListenAddr to TargetAddr.
type Forwarder struct {
	ListenAddr string
	TargetAddr string
	Logger     *zap.Logger
}

// Runner returns a run.Runner that accepts connections until the context is
// cancelled. Cancellation closes the listener and every open connection.
func (f *Forwarder) Runner() run.Runner {
	return run.Func(f.serve)
}

func (f *Forwarder) serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", f.ListenAddr)
	if err != nil {
		return fmt.Errorf("forward %s→%s: listen: %w", f.ListenAddr, f.TargetAddr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	f.Logger.Info("forwarding",
		zap.String("listen", f.ListenAddr),
		zap.String("target", f.TargetAddr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("forward %s→%s: accept: %w", f.ListenAddr, f.TargetAddr, err)
		}
		go f.handleConn(ctx, conn)
	}
}

func (f *Forwarder) handleConn(ctx context.Context, client net.Conn) {
	start := time.Now()

	target, err := net.DialTimeout("tcp", f.TargetAddr, 5*time.Second)
	if err != nil {
		client.Close()
		f.Logger.Warn("target unreachable",
			zap.String("target", f.TargetAddr),
			zap.Error(err))
		return
	}

	// Close both when context is cancelled.
	go func() {
		<-ctx.Done()
		client.Close()
		target.Close()
	}()

	var bytesIn, bytesOut atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)

	// client → target
	go func() {
		defer wg.Done()
		n, _ := io.Copy(target, client)
		bytesIn.Store(n)
		if tc, ok := target.(*net.TCPConn); ok {
			tc.CloseWrite()
		}
	}()

	// target → client
	go func() {
		defer wg.Done()
		n, _ := io.Copy(client, target)
		bytesOut.Store(n)
		if tc, ok := client.(*net.TCPConn); ok {
			tc.CloseWrite()
		}
	}()

	wg.Wait()
	client.Close()
	target.Close()

	f.Logger.Debug("connection closed",
		zap.String("listen", f.ListenAddr),
		zap.Int64("bytes_in", bytesIn.Load()),
		zap.Int64("bytes_out", bytesOut.Load()),
		zap.Duration("duration", time.Since(start)))
}

// gatewayWaitTimeout bounds the wait for the gateway's API ports before the
// relays start. Missing ports are logged, not fatal — the relay still comes
// up and connections fail per-dial until the gateway listens.
const gatewayWaitTimeout = 60 * time.Second

// Pair returns a runner hosting both relays: the live API port and the paper
// API port, each exposed on its forwarded counterpart.
func Pair(cfg config.Config, logger *zap.Logger) run.Runner {
	liveTarget := fmt.Sprintf("127.0.0.1:%d", cfg.LivePort)
	paperTarget := fmt.Sprintf("127.0.0.1:%d", cfg.PaperPort)

	live := &Forwarder{
		ListenAddr: fmt.Sprintf("0.0.0.0:%d", cfg.ForwardLivePort),
		TargetAddr: liveTarget,
		Logger:     logger.Named("live"),
	}
	paper := &Forwarder{
		ListenAddr: fmt.Sprintf("0.0.0.0:%d", cfg.ForwardPaperPort),
		TargetAddr: paperTarget,
		Logger:     logger.Named("paper"),
	}

	return run.Sequence{
		run.Func(func(ctx context.Context) error {
			check := ready.All(ready.TCP{Addr: liveTarget}, ready.TCP{Addr: paperTarget})
			if err := ready.Poll(ctx, check, ready.DefaultInterval, gatewayWaitTimeout); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("gateway API ports not listening, forwarding anyway", zap.Error(err))
			}
			return nil
		}),
		run.Group{
			"live":  live.Runner(),
			"paper": paper.Runner(),
		},
	}
}
