//go:build !windows

package cliexec

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr places the subprocess in its own process group so the whole
// subprocess tree can be terminated together.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the subprocess's entire process group,
// preventing orphaned children.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
