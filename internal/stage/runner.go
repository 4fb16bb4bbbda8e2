package stage

import (
	"context"
	"errors"
	"fmt"

	"lidarflow/internal/engine"
	"lidarflow/internal/logging"
	"lidarflow/internal/manifest"
	"lidarflow/internal/tactile"
)

// OutputTailLines is how much process output a stage error carries.
const OutputTailLines = 20

// ExecRunner runs stages as engine processes through a tactile executor.
type ExecRunner struct {
	Engine       *engine.Engine
	Executor     tactile.Executor
	ManifestPath string

	// RunID tags every command for the executor's audit trail.
	RunID string
}

// NewExecRunner creates a runner writing its manifest to manifestPath.
func NewExecRunner(eng *engine.Engine, exec tactile.Executor, manifestPath string) *ExecRunner {
	return &ExecRunner{
		Engine:       eng,
		Executor:     exec,
		ManifestPath: manifestPath,
	}
}

// Run writes the manifest for s and executes its invocation. The manifest
// file is rewritten on every call.
func (r *ExecRunner) Run(ctx context.Context, s Stage) error {
	if err := ctx.Err(); err != nil {
		return &Error{Stage: s.Name, ExitCode: -1, Err: err}
	}

	m, err := s.Manifest()
	if err != nil {
		return &Error{Stage: s.Name, ExitCode: -1, Err: fmt.Errorf("build manifest: %w", err)}
	}
	if len(m) == 0 {
		logging.StageWarn("%s: no input files in %v", s.Name, s.Inputs)
	}
	if err := manifest.Write(r.ManifestPath, m); err != nil {
		return &Error{Stage: s.Name, ExitCode: -1, Err: err}
	}

	cmd := r.Engine.Command(s.Invocation, r.ManifestPath, s.Output)
	cmd.SessionID = r.RunID
	cmd.RequestID = s.Name
	logging.StageDebug("%s: %d inputs, %s", s.Name, len(m), cmd.CommandString())

	result, err := r.Executor.Execute(ctx, cmd)
	if err != nil {
		return &Error{Stage: s.Name, Command: cmd.CommandString(), ExitCode: -1, Err: err}
	}
	if result == nil {
		return &Error{Stage: s.Name, Command: cmd.CommandString(), ExitCode: -1, Err: errors.New("no execution result")}
	}
	if !result.Failed() {
		return nil
	}

	stageErr := &Error{
		Stage:    s.Name,
		Command:  cmd.CommandString(),
		ExitCode: result.ExitCode,
		Output:   result.Tail(OutputTailLines),
	}
	switch {
	case result.Killed:
		stageErr.Err = errors.New(result.KillReason)
		if ctxErr := ctx.Err(); ctxErr != nil {
			stageErr.Err = ctxErr
		}
	case result.IsError():
		msg := result.Error
		if msg == "" {
			msg = "execution failed"
		}
		stageErr.Err = errors.New(msg)
	}
	return stageErr
}
