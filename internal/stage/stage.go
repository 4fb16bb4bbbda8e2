// Package stage runs one pipeline step: it writes the list-of-files manifest
// for the step's inputs, renders the engine invocation and blocks until the
// external process exits.
package stage

import (
	"context"
	"fmt"
	"strings"

	"lidarflow/internal/engine"
	"lidarflow/internal/manifest"
)

// Stage is one external call with its inputs and output directory.
type Stage struct {
	Name string

	// Inputs are directories whose top-level point-cloud files make up the
	// manifest, in order.
	Inputs []string

	// Files are explicit input files appended after the directory contents.
	Files []string

	// Output is the directory the tool writes into. Empty for in-place
	// invocations.
	Output string

	Invocation engine.Invocation
}

// Manifest lists the stage's inputs.
func (s Stage) Manifest() (manifest.Manifest, error) {
	m, err := manifest.List(s.Inputs...)
	if err != nil {
		return nil, err
	}
	return append(m, s.Files...), nil
}

// String describes the stage for display.
func (s Stage) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(": ")
	b.WriteString(s.Invocation.String())
	if s.Output != "" {
		b.WriteString(" -> ")
		b.WriteString(s.Output)
	}
	return b.String()
}

// Runner executes a single stage to completion.
type Runner interface {
	Run(ctx context.Context, s Stage) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, s Stage) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, s Stage) error { return f(ctx, s) }

// Error is a failed external call.
type Error struct {
	Stage    string
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %s failed", e.Stage)
	if e.Command != "" {
		fmt.Fprintf(&b, " (%s)", e.Command)
	}
	switch {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	default:
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if e.Output != "" {
		fmt.Fprintf(&b, "\n%s", e.Output)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
