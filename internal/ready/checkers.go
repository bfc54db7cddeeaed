package ready

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TCP checks readiness by dialing a TCP connection.
type TCP struct {
	Addr string
}

func (t TCP) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: 200 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// HTTP checks readiness by making a GET request. Any response with status
// < 500 is considered ready.
type HTTP struct {
	URL string
}

func (h HTTP) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 200 * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// OutputSearcher reports whether a service's captured output contains a
// literal substring. Implemented by the orchestrator's event log.
type OutputSearcher interface {
	ContainsOutput(service, marker string) bool
}

// LogMarker checks readiness by scanning a service's captured output for a
// fixed literal marker line.
type LogMarker struct {
	Log     OutputSearcher
	Service string
	Marker  string
}

func (l LogMarker) Check(context.Context) error {
	if l.Log.ContainsOutput(l.Service, l.Marker) {
		return nil
	}
	return fmt.Errorf("marker %q not seen", l.Marker)
}

// Process reports liveness, implemented by proc.Handle.
type Process interface {
	Alive() bool
}

// Alive succeeds as long as the process is running. Used for services with
// no external readiness signal: the first poll succeeds immediately unless
// the process already crashed.
type Alive struct {
	Proc Process
}

func (a Alive) Check(context.Context) error {
	if a.Proc.Alive() {
		return nil
	}
	return errors.New("process exited")
}
