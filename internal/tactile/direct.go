package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"lidarflow/internal/logging"
)

// killWaitDelay bounds how long Execute waits for output pipes after the
// process group was killed.
const killWaitDelay = 5 * time.Second

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	mu     sync.RWMutex
	config ExecutorConfig

	// auditCallback is called for execution events
	auditCallback func(AuditEvent)
}

var _ AuditedExecutor = (*DirectExecutor)(nil)

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig())
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig) *DirectExecutor {
	logging.TactileDebug("Creating DirectExecutor with config: timeout=%s, maxOutput=%d bytes",
		config.DefaultTimeout, config.MaxOutputBytes)
	return &DirectExecutor{
		config: config,
	}
}

// SetAuditCallback sets the callback for audit events.
func (e *DirectExecutor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

// emitAudit emits an audit event if a callback is registered.
func (e *DirectExecutor) emitAudit(eventType AuditEventType, cmd Command, result *ExecutionResult) {
	e.mu.RLock()
	callback := e.auditCallback
	e.mu.RUnlock()

	if callback != nil {
		callback(AuditEvent{
			Type:         eventType,
			Timestamp:    time.Now(),
			Command:      cmd,
			Result:       result,
			SessionID:    cmd.SessionID,
			ExecutorName: "direct",
		})
	}
}

// Validate checks if a command can be executed.
func (e *DirectExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute runs a command directly on the host and blocks until it exits.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if err := e.Validate(cmd); err != nil {
		logging.TactileWarn("Command validation failed: %s %v - %v", cmd.Binary, cmd.Arguments, err)
		return nil, err
	}

	cmd = e.config.Merge(cmd)
	logging.Tactile("Executing: %s", cmd.CommandString())

	result := &ExecutionResult{
		ExitCode: -1,
		Command:  &cmd,
	}

	e.emitAudit(AuditEventStart, cmd, nil)

	execCtx := ctx
	var timeout time.Duration
	if cmd.Limits.TimeoutMs > 0 {
		timeout = time.Duration(cmd.Limits.TimeoutMs) * time.Millisecond
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = e.buildEnvironment(cmd.Environment)
	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd) }
	execCmd.WaitDelay = killWaitDelay

	maxOutput := cmd.Limits.MaxOutputBytes
	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: maxOutput}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: maxOutput}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	result.StartedAt = time.Now()
	err := execCmd.Run()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" && !strings.HasSuffix(result.Combined, "\n") {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}

	if stdoutLimited.truncated || stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stdoutLimited.discarded + stderrLimited.discarded
		logging.TactileWarn("Command output truncated: %d bytes discarded", result.TruncatedBytes)
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Killed = true
			result.KillReason = "deadline exceeded"
			if timeout > 0 {
				result.KillReason = fmt.Sprintf("timeout after %s", timeout)
			}
			result.Success = true
			logging.TactileWarn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
			e.emitAudit(AuditEventKilled, cmd, result)
			return result, nil
		case errors.Is(execCtx.Err(), context.Canceled):
			result.Killed = true
			result.KillReason = "context canceled"
			result.Success = true
			logging.TactileWarn("Command canceled: %s", cmd.Binary)
			e.emitAudit(AuditEventKilled, cmd, result)
			return result, nil
		case errors.As(err, &exitErr):
			result.Success = true // Command ran, just returned non-zero
			result.ExitCode = exitErr.ExitCode()
			logging.TactileDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
		default:
			result.Success = false
			result.Error = err.Error()
			logging.TactileError("Command failed: %s - %v", cmd.Binary, err)
			e.emitAudit(AuditEventError, cmd, result)
			return result, nil
		}
	} else {
		result.Success = true
		result.ExitCode = 0
	}

	e.emitAudit(AuditEventComplete, cmd, result)

	logging.TactileDebug("Command completed: %s -> exit=%d, duration=%s, output=%d bytes",
		cmd.Binary, result.ExitCode, result.Duration, len(result.Combined))

	return result, nil
}

// buildEnvironment creates the environment variable list.
func (e *DirectExecutor) buildEnvironment(cmdEnv []string) []string {
	var env []string
	if e.config.InheritEnvironment {
		env = os.Environ()
	} else {
		for _, key := range e.config.AllowedEnvironment {
			if val, ok := os.LookupEnv(key); ok {
				env = append(env, key+"="+val)
			}
		}
	}
	return append(env, cmdEnv...)
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.max <= 0 {
		written, err := lw.w.Write(p)
		lw.written += int64(written)
		return written, err
	}

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
