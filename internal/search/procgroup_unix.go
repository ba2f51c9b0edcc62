//go:build unix

package search

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts cmd in its own process group and, on context
// cancellation, kills the whole group so children of the script die too.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
