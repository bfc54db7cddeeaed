package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Per-service lifecycle.
	EventServiceStarting EventType = "service.starting"
	EventServiceReady    EventType = "service.ready"
	EventServiceTimeout  EventType = "service.timeout"
	EventServiceStopping EventType = "service.stopping"
	EventServiceStopped  EventType = "service.stopped"
	EventServiceLog      EventType = "service.log"

	// Whole-orchestrator lifecycle.
	EventOrchestratorUp      EventType = "orchestrator.up"
	EventOrchestratorFailing EventType = "orchestrator.failing"
	EventOrchestratorDown    EventType = "orchestrator.down"
)

// LogEntry holds a line of captured service output.
type LogEntry struct {
	Stream string `json:"stream"` // "stdout" or "stderr"
	Line   string `json:"line"`
}

// Event is a single entry in the event log.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Service   string    `json:"service,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Log       *LogEntry `json:"log,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventLog is an ordered, in-memory log of lifecycle events and captured
// service output. Events are appended with monotonically increasing sequence
// numbers. WaitFor scans the existing log before blocking, so a waiter never
// misses an event published before it arrived.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	seq    uint64
	notify chan struct{} // closed and replaced on each new event
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{
		notify: make(chan struct{}),
	}
}

// Publish appends an event with the next sequence number and the current
// timestamp, then wakes all waiters.
func (l *EventLog) Publish(event Event) {
	l.mu.Lock()
	l.seq++
	event.Seq = l.seq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	l.events = append(l.events, event)
	ch := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()

	close(ch) // wake all waiters
}

// Events returns a snapshot of all events in the log.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// ContainsOutput reports whether any captured output line from the named
// service contains marker as a substring. This is the log-marker readiness
// probe's scan.
func (l *EventLog) ContainsOutput(service, marker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Type != EventServiceLog || e.Service != service || e.Log == nil {
			continue
		}
		if strings.Contains(e.Log.Line, marker) {
			return true
		}
	}
	return false
}

// WaitFor scans the existing log for a matching event. If found, returns it
// immediately. Otherwise blocks until a matching event is published or the
// context is cancelled.
func (l *EventLog) WaitFor(ctx context.Context, match func(Event) bool) (Event, error) {
	l.mu.Lock()
	for _, e := range l.events {
		if match(e) {
			l.mu.Unlock()
			return e, nil
		}
	}
	cursor := l.seq
	notify := l.notify
	l.mu.Unlock()

	for {
		select {
		case <-notify:
			l.mu.Lock()
			batch := l.eventsSince(cursor)
			notify = l.notify
			l.mu.Unlock()

			for _, e := range batch {
				if match(e) {
					return e, nil
				}
				cursor = e.Seq
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// eventsSince returns events with Seq > seq. Caller must hold l.mu.
// Seq numbers are 1-indexed and contiguous, so events after seq start at
// slice index seq.
func (l *EventLog) eventsSince(seq uint64) []Event {
	start := int(seq)
	if start >= len(l.events) {
		return nil
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}
