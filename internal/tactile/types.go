// Package tactile is the process-execution layer. It runs the external
// point-cloud executables as blocking child processes and reports what they
// did in a structured result.
//
// Design Principles:
//   - Minimal logic: deciding what to run belongs to the stage runner
//   - No shell: arguments go straight to exec, nothing is quoted or split
//   - Structured output: exit code, captured output and timings per call
//   - Audit trail: start/complete/killed/error events via callback
package tactile

import (
	"strings"
	"time"
)

// Command represents a command to be executed.
type Command struct {
	// Binary is the executable to run (absolute path or name on PATH).
	Binary string `json:"binary"`

	// Arguments are the command-line arguments.
	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in.
	// If empty, uses the executor's default working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment variables to set (in KEY=VALUE format).
	Environment []string `json:"environment,omitempty"`

	// Limits specifies resource constraints for execution.
	Limits *ResourceLimits `json:"limits,omitempty"`

	// SessionID links this execution to a processing run (for audit).
	SessionID string `json:"session_id,omitempty"`

	// RequestID identifies this execution, normally the stage name.
	RequestID string `json:"request_id,omitempty"`

	// Tags are arbitrary key-value pairs for categorization and audit.
	Tags map[string]string `json:"tags,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
// Arguments containing spaces are quoted.
func (c Command) CommandString() string {
	var b strings.Builder
	b.WriteString(quoteArg(c.Binary))
	for _, arg := range c.Arguments {
		b.WriteByte(' ')
		b.WriteString(quoteArg(arg))
	}
	return b.String()
}

func quoteArg(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}

// ResourceLimits defines constraints on command execution.
type ResourceLimits struct {
	// TimeoutMs is the maximum execution time in milliseconds.
	// Zero means no timeout.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes limits captured stdout and stderr, each.
	// Zero means use the executor's default.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// ExecutionResult is the comprehensive output of command execution.
type ExecutionResult struct {
	// Success indicates whether the execution infrastructure worked.
	// Note: A command that runs but returns non-zero exit code has Success=true.
	Success bool `json:"success"`

	// ExitCode is the command's exit code (-1 if not available).
	ExitCode int `json:"exit_code"`

	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`

	// Combined is stdout followed by stderr.
	Combined string `json:"combined"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	// Killed indicates the command was forcibly terminated.
	Killed bool `json:"killed"`

	// KillReason explains why the command was killed.
	KillReason string `json:"kill_reason,omitempty"`

	// Truncated indicates output was truncated due to size limits.
	Truncated bool `json:"truncated"`

	// TruncatedBytes is how many bytes were discarded.
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error contains any infrastructure-level error message.
	Error string `json:"error,omitempty"`

	// Command is a copy of the command that was executed (for audit).
	Command *Command `json:"command,omitempty"`
}

// IsError returns true if the execution failed (infrastructure error).
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit returns true if the command ran but returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Failed reports whether the command did not run to a zero exit.
func (r *ExecutionResult) Failed() bool {
	return r.IsError() || r.Killed || r.ExitCode != 0
}

// Output returns Combined if available, otherwise Stdout+Stderr.
func (r *ExecutionResult) Output() string {
	if r.Combined != "" {
		return r.Combined
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Tail returns at most the last n lines of Output.
func (r *ExecutionResult) Tail(n int) string {
	out := strings.TrimRight(r.Output(), "\n")
	if n <= 0 || out == "" {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventStart    AuditEventType = "start"
	AuditEventComplete AuditEventType = "complete"
	AuditEventKilled   AuditEventType = "killed"
	AuditEventError    AuditEventType = "error"
)

// AuditEvent represents an execution event.
type AuditEvent struct {
	Type         AuditEventType   `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	Command      Command          `json:"command"`
	Result       *ExecutionResult `json:"result,omitempty"`
	SessionID    string           `json:"session_id,omitempty"`
	ExecutorName string           `json:"executor_name"`
}

// ExecutorConfig is the configuration for creating executors.
type ExecutorConfig struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string `json:"default_working_dir"`

	// DefaultTimeout is used when no timeout is specified. Zero means the
	// process may run for as long as it needs.
	DefaultTimeout time.Duration `json:"default_timeout"`

	// MaxOutputBytes is the default capture limit for stdout and stderr.
	MaxOutputBytes int64 `json:"max_output_bytes"`

	// InheritEnvironment passes the full parent environment through.
	InheritEnvironment bool `json:"inherit_environment"`

	// AllowedEnvironment lists variables to pass through when
	// InheritEnvironment is false.
	AllowedEnvironment []string `json:"allowed_environment"`
}

// DefaultExecutorConfig returns a config suited to long batch conversions:
// no timeout, full environment, 10MB of captured output per stream.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultWorkingDir:  "",
		DefaultTimeout:     0,
		MaxOutputBytes:     10 * 1024 * 1024, // 10MB
		InheritEnvironment: true,
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "SYSTEMROOT", "TEMP", "TMP"},
	}
}

// Merge combines this config with command-specific settings.
// Command settings override config defaults.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd

	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}

	if result.Limits == nil {
		result.Limits = &ResourceLimits{}
	} else {
		limitsCopy := *result.Limits
		result.Limits = &limitsCopy
	}
	if result.Limits.TimeoutMs == 0 && c.DefaultTimeout > 0 {
		result.Limits.TimeoutMs = int64(c.DefaultTimeout / time.Millisecond)
	}
	if result.Limits.MaxOutputBytes == 0 {
		result.Limits.MaxOutputBytes = c.MaxOutputBytes
	}

	return result
}
