package proc_test

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/ibkit/ibgw/internal/proc"
)

func start(t *testing.T, cmd proc.Command) proc.Handle {
	t.Helper()
	h, err := proc.ExecSupervisor{}.Start(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func waitDone(t *testing.T, h proc.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestExecSupervisor_CapturesOutput(t *testing.T) {
	var out bytes.Buffer
	h := start(t, proc.Command{
		Path:   "sh",
		Args:   []string{"-c", "echo hello"},
		Stdout: &out,
	})
	waitDone(t, h)

	if got := strings.TrimSpace(out.String()); got != "hello" {
		t.Fatalf("stdout %q, want hello", got)
	}
	if h.Err() != nil {
		t.Fatalf("exit error: %v", h.Err())
	}
}

func TestExecSupervisor_EnvAppended(t *testing.T) {
	var out bytes.Buffer
	h := start(t, proc.Command{
		Path:   "sh",
		Args:   []string{"-c", "echo $GATEWAY_TEST_VAR"},
		Env:    []string{"GATEWAY_TEST_VAR=set"},
		Stdout: &out,
	})
	waitDone(t, h)

	if got := strings.TrimSpace(out.String()); got != "set" {
		t.Fatalf("env var not passed through, got %q", got)
	}
}

func TestHandle_AliveAndSignal(t *testing.T) {
	h := start(t, proc.Command{
		Path: "sh",
		Args: []string{"-c", "sleep 30"},
	})

	if !h.Alive() {
		t.Fatal("freshly started process reported dead")
	}
	if h.PID() <= 0 {
		t.Fatalf("bad pid %d", h.PID())
	}

	if err := h.Signal(syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)

	if h.Alive() {
		t.Fatal("exited process reported alive")
	}
	// Signalling a dead process is a no-op, not an error.
	if err := h.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal after exit: %v", err)
	}
}

func TestExecSupervisor_StartFailure(t *testing.T) {
	_, err := proc.ExecSupervisor{}.Start(context.Background(), proc.Command{
		Path: "/nonexistent/binary",
	})
	if err == nil {
		t.Fatal("want error for missing binary")
	}
}
