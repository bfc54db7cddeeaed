// Package proc abstracts OS process control behind a small interface so the
// orchestrator can be tested against a scripted fake instead of real
// processes.
package proc

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Command describes a process to launch. Env entries are appended to the
// parent environment; later entries win on duplicate keys.
type Command struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Handle is a launched process. Signal on an already-exited process is a
// no-op, never an error — shutdown paths call it unconditionally.
type Handle interface {
	// PID returns the OS process ID.
	PID() int

	// Alive reports whether the process has not yet exited.
	Alive() bool

	// Signal delivers sig to the process if it is still running.
	Signal(sig os.Signal) error

	// Done is closed when the process exits.
	Done() <-chan struct{}

	// Err returns the process's exit error after Done is closed.
	Err() error
}

// Supervisor launches processes.
type Supervisor interface {
	Start(ctx context.Context, cmd Command) (Handle, error)
}

// ExecSupervisor launches real OS processes via os/exec. Each child runs in
// its own process group so it does not receive the terminal's signals
// directly — the orchestrator owns its lifecycle.
type ExecSupervisor struct{}

func (ExecSupervisor) Start(ctx context.Context, cmd Command) (Handle, error) {
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	setProcAttr(c)

	if err := c.Start(); err != nil {
		return nil, err
	}

	h := &execHandle{
		cmd:  c,
		done: make(chan struct{}),
	}
	go func() {
		err := c.Wait()
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *execHandle) Signal(sig os.Signal) error {
	if !h.Alive() {
		return nil
	}
	err := h.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
