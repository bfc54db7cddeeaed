// Package orchestrator brings up the container's service processes in a
// fixed order, gating each stage on a readiness probe, then supervises them
// until a termination signal arrives and tears them down in reverse order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ibkit/ibgw/internal/proc"
	"github.com/ibkit/ibgw/internal/ready"
)

// State of a single service in the startup/shutdown state machine.
type State string

const (
	StatePending  State = "pending"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateTimedOut State = "timed_out"
	StateStopped  State = "stopped"
)

// ProbeKind selects the readiness probe for a service.
type ProbeKind string

const (
	// ProbeProcessAlive succeeds as soon as the process is running. Used for
	// services with no external readiness signal.
	ProbeProcessAlive ProbeKind = "process-alive"

	// ProbePortListening succeeds when every address in Addrs accepts a TCP
	// connection.
	ProbePortListening ProbeKind = "port-listening"

	// ProbeHTTP succeeds when a GET to URL returns a non-5xx status.
	ProbeHTTP ProbeKind = "http"

	// ProbeLogMarker succeeds when Marker appears in the service's captured
	// output.
	ProbeLogMarker ProbeKind = "log-marker"
)

// Probe describes a service's readiness condition. Exactly one of the
// kind-specific fields is consulted, per Kind.
type Probe struct {
	Kind   ProbeKind
	Addrs  []string // ProbePortListening
	URL    string   // ProbeHTTP
	Marker string   // ProbeLogMarker
}

// ServiceSpec describes one orchestrated service. Specs are immutable; the
// slice order passed to Run is the start order and the reverse shutdown
// order.
type ServiceSpec struct {
	Name    string
	Command proc.Command
	Probe   Probe

	// ReadyTimeout bounds the probe polling for this stage.
	ReadyTimeout time.Duration

	// BestEffort services log a warning on probe timeout instead of aborting
	// the whole startup. A launch failure is fatal regardless.
	BestEffort bool
}

// Handle tracks a launched service.
type Handle struct {
	Spec  ServiceSpec
	Proc  proc.Handle
	State State
}

const (
	defaultGracePeriod = 10 * time.Second
)

// Orchestrator launches and supervises the ordered service set. Construct
// with New; the exported knobs may be adjusted before Run is called.
type Orchestrator struct {
	// PollInterval is the fixed probe interval. Defaults to ready.DefaultInterval.
	PollInterval time.Duration

	// GracePeriod bounds the whole reverse shutdown walk. Processes still
	// alive when it expires are force-killed.
	GracePeriod time.Duration

	sup    proc.Supervisor
	log    *EventLog
	logger *zap.Logger

	handles  []*Handle
	stopOnce sync.Once
}

// New creates an orchestrator. The event log receives every lifecycle
// transition and all captured service output; the logger is the
// human-visible sink.
func New(sup proc.Supervisor, log *EventLog, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		PollInterval: ready.DefaultInterval,
		GracePeriod:  defaultGracePeriod,
		sup:          sup,
		log:          log,
		logger:       logger,
	}
}

// Handles returns the launched services in start order.
func (o *Orchestrator) Handles() []*Handle {
	return o.handles
}

// Run launches each service in order, gating on its readiness probe, then
// blocks until ctx is cancelled and performs the reverse-order shutdown.
//
// A launch failure or a mandatory readiness timeout aborts startup: already
// started services are stopped in reverse order and a non-nil error is
// returned. Cancellation (the termination signal) is not an error — Run
// stops everything and returns nil.
func (o *Orchestrator) Run(ctx context.Context, specs []ServiceSpec) error {
	defer o.Shutdown()

	for _, spec := range specs {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.startStage(ctx, spec); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			o.log.Publish(Event{Type: EventOrchestratorFailing, Service: spec.Name, Error: err.Error()})
			o.logger.Error("startup failed", zap.String("service", spec.Name), zap.Error(err))
			return err
		}
	}

	o.log.Publish(Event{Type: EventOrchestratorUp})
	o.logger.Info("all services ready")

	<-ctx.Done()
	o.Shutdown()
	return nil
}

// startStage launches one service and waits for its readiness probe. The
// returned error is nil when the stage may be considered passed (ready, or
// best-effort timeout).
func (o *Orchestrator) startStage(ctx context.Context, spec ServiceSpec) error {
	cmd := spec.Command
	cmd.Stdout = newLogTee(o.log, o.logger, spec.Name, "stdout")
	cmd.Stderr = newLogTee(o.log, o.logger, spec.Name, "stderr")

	h := &Handle{Spec: spec, State: StatePending}
	p, err := o.sup.Start(ctx, cmd)
	if err != nil {
		return fmt.Errorf("launch %s: %w", spec.Name, err)
	}
	h.Proc = p
	h.State = StateStarting
	o.handles = append(o.handles, h)

	o.log.Publish(Event{Type: EventServiceStarting, Service: spec.Name, PID: p.PID()})
	o.logger.Info("service starting",
		zap.String("service", spec.Name),
		zap.Int("pid", p.PID()),
		zap.String("probe", string(spec.Probe.Kind)))

	err = ready.Poll(ctx, o.checker(spec, p), o.PollInterval, spec.ReadyTimeout)
	switch {
	case err == nil:
		h.State = StateReady
		o.log.Publish(Event{Type: EventServiceReady, Service: spec.Name})
		o.logger.Info("service ready", zap.String("service", spec.Name))
		return nil

	case errors.Is(err, ready.ErrTimeout):
		h.State = StateTimedOut
		o.log.Publish(Event{Type: EventServiceTimeout, Service: spec.Name, Error: err.Error()})
		if spec.BestEffort {
			o.logger.Warn("service not ready, continuing",
				zap.String("service", spec.Name), zap.Error(err))
			return nil
		}
		return fmt.Errorf("%s: %w", spec.Name, err)

	default:
		// Context cancellation — the signal arrived mid-poll.
		return err
	}
}

// checker builds the readiness checker for a launched service.
func (o *Orchestrator) checker(spec ServiceSpec, p proc.Handle) ready.Checker {
	switch spec.Probe.Kind {
	case ProbePortListening:
		checkers := make([]ready.Checker, 0, len(spec.Probe.Addrs))
		for _, addr := range spec.Probe.Addrs {
			checkers = append(checkers, ready.TCP{Addr: addr})
		}
		return ready.All(checkers...)
	case ProbeHTTP:
		return ready.HTTP{URL: spec.Probe.URL}
	case ProbeLogMarker:
		return ready.LogMarker{Log: o.log, Service: spec.Name, Marker: spec.Probe.Marker}
	default:
		return ready.Alive{Proc: p}
	}
}

// Shutdown stops all launched services in reverse start order. Safe to call
// more than once; repeated calls are no-ops. Each live process receives one
// SIGTERM; anything still alive when the shared grace period expires is
// force-killed.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() {
		if len(o.handles) == 0 {
			return
		}
		o.logger.Info("shutting down services")
		deadline := time.Now().Add(o.GracePeriod)
		for i := len(o.handles) - 1; i >= 0; i-- {
			o.stopService(o.handles[i], deadline)
		}
		o.log.Publish(Event{Type: EventOrchestratorDown})
	})
}

func (o *Orchestrator) stopService(h *Handle, deadline time.Time) {
	if h.Proc == nil || h.State == StateStopped {
		return
	}
	name := h.Spec.Name

	o.log.Publish(Event{Type: EventServiceStopping, Service: name})
	if err := h.Proc.Signal(syscall.SIGTERM); err != nil {
		o.logger.Warn("terminate failed", zap.String("service", name), zap.Error(err))
	}

	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	select {
	case <-h.Proc.Done():
	case <-time.After(wait):
		o.logger.Warn("grace period expired, killing", zap.String("service", name))
		if err := h.Proc.Signal(os.Kill); err != nil {
			o.logger.Warn("kill failed", zap.String("service", name), zap.Error(err))
		}
	}

	h.State = StateStopped
	o.log.Publish(Event{Type: EventServiceStopped, Service: name})
	o.logger.Info("service stopped", zap.String("service", name))
}
