//go:build !windows

package proc

import (
	"os/exec"
	"syscall"
)

// setProcAttr places the child in its own process group. Signals sent to the
// supervisor's group (e.g. Ctrl-C in a terminal) then reach the children only
// through the orchestrator's shutdown sequence.
func setProcAttr(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
