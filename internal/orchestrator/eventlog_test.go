package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/ibkit/ibgw/internal/orchestrator"
)

func TestEventLog_WaitForExistingEvent(t *testing.T) {
	log := orchestrator.NewEventLog()
	log.Publish(orchestrator.Event{Type: orchestrator.EventServiceReady, Service: "xvfb"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := log.WaitFor(ctx, func(e orchestrator.Event) bool {
		return e.Type == orchestrator.EventServiceReady
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Service != "xvfb" {
		t.Fatalf("got service %q, want xvfb", e.Service)
	}
}

func TestEventLog_WaitForFutureEvent(t *testing.T) {
	log := orchestrator.NewEventLog()

	go func() {
		time.Sleep(10 * time.Millisecond)
		log.Publish(orchestrator.Event{Type: orchestrator.EventServiceReady, Service: "x11vnc"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := log.WaitFor(ctx, func(e orchestrator.Event) bool {
		return e.Service == "x11vnc"
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != orchestrator.EventServiceReady {
		t.Fatalf("got type %q", e.Type)
	}
}

func TestEventLog_WaitForHonorsContext(t *testing.T) {
	log := orchestrator.NewEventLog()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := log.WaitFor(ctx, func(orchestrator.Event) bool { return false })
	if err == nil {
		t.Fatal("want context error, got nil")
	}
}

func TestEventLog_ContainsOutput(t *testing.T) {
	log := orchestrator.NewEventLog()
	log.Publish(orchestrator.Event{
		Type:    orchestrator.EventServiceLog,
		Service: "automation",
		Log:     &orchestrator.LogEntry{Stream: "stdout", Line: "--- Configuration Complete ---"},
	})

	if !log.ContainsOutput("automation", "Configuration Complete") {
		t.Fatal("marker not found in captured output")
	}
	if log.ContainsOutput("gateway", "Configuration Complete") {
		t.Fatal("marker attributed to the wrong service")
	}
	if log.ContainsOutput("automation", "Login Failed") {
		t.Fatal("found a marker that was never printed")
	}
}

func TestEventLog_SequenceNumbersIncrease(t *testing.T) {
	log := orchestrator.NewEventLog()
	log.Publish(orchestrator.Event{Type: orchestrator.EventServiceStarting})
	log.Publish(orchestrator.Event{Type: orchestrator.EventServiceReady})

	events := log.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[1].Seq <= events[0].Seq {
		t.Fatalf("sequence not increasing: %d then %d", events[0].Seq, events[1].Seq)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}
