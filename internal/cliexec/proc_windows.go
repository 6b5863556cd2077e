//go:build windows

package cliexec

import "os/exec"

// setSysProcAttr is a no-op on Windows; process groups are handled by kill.
func setSysProcAttr(cmd *exec.Cmd) {}

// killProcessGroup kills the subprocess. Child processes are not tracked on
// Windows; the CLI tools in use do not spawn long-lived children there.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
}
