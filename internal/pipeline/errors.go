package pipeline

import "fmt"

// OutputNotEmptyError is returned when a layout directory already holds
// files from an earlier run.
type OutputNotEmptyError struct {
	Dir  string
	File string
}

func (e *OutputNotEmptyError) Error() string {
	return fmt.Sprintf("output directory %s is not empty (found %s); remove previous results first", e.Dir, e.File)
}

// NoInputFilesError is returned when the source tree has no point clouds.
type NoInputFilesError struct {
	Source string
}

func (e *NoInputFilesError) Error() string {
	return fmt.Sprintf("no .las or .laz files found under %s", e.Source)
}

// PlanError reports a stage graph that violates an ordering or output rule.
type PlanError struct {
	Stage  string
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("invalid plan at stage %s: %s", e.Stage, e.Reason)
}
