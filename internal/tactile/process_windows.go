//go:build windows

package tactile

import (
	"os/exec"
	"strconv"
	"syscall"
)

// setupProcessGroup hides the console window of the tool.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}

// killProcessGroup kills the process tree with taskkill.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	killCmd := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(cmd.Process.Pid))
	killCmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	if err := killCmd.Run(); err != nil {
		// Fall back to direct kill
		return cmd.Process.Kill()
	}
	return nil
}
