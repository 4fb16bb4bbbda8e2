package tactile

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HandlerFunc simulates one external process. It may create files the way
// the real tool would and returns the result to report.
type HandlerFunc func(ctx context.Context, cmd Command) (*ExecutionResult, error)

// RecordingExecutor records every command instead of starting processes.
// Commands are dispatched to Handler when set; otherwise they succeed with
// exit code 0 and no output.
type RecordingExecutor struct {
	mu      sync.Mutex
	calls   []Command
	Handler HandlerFunc
}

// NewRecordingExecutor creates a recording executor with an optional handler.
func NewRecordingExecutor(handler HandlerFunc) *RecordingExecutor {
	return &RecordingExecutor{Handler: handler}
}

// Validate checks if a command can be executed.
func (r *RecordingExecutor) Validate(cmd Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

// Execute records cmd and runs the handler.
func (r *RecordingExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if err := r.Validate(cmd); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if r.Handler != nil {
		return r.Handler(ctx, cmd)
	}
	now := time.Now()
	return &ExecutionResult{
		Success:    true,
		ExitCode:   0,
		StartedAt:  now,
		FinishedAt: now,
		Command:    &cmd,
	}, nil
}

// Calls returns a copy of the recorded commands in execution order.
func (r *RecordingExecutor) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset forgets recorded commands.
func (r *RecordingExecutor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
