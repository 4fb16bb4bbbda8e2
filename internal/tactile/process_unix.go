//go:build !windows

package tactile

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setupProcessGroup runs the command in its own process group so that
// worker processes spawned for -cores are stopped with it.
func setupProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup kills the process and all its children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil && pgid > 0 {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			_ = syscall.Kill(-pgid, syscall.SIGTERM)
		}
	}

	// Also kill the main process directly as a fallback
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
