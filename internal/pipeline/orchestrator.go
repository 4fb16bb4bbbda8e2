package pipeline

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"lidarflow/internal/density"
	"lidarflow/internal/logging"
	"lidarflow/internal/manifest"
	"lidarflow/internal/stage"
)

// StageResult records one completed stage.
type StageResult struct {
	Name     string
	Output   string
	Duration time.Duration
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Inputs     int
	MaxDensity float64
	TileSize   int
	Stages     []StageResult
	Duration   time.Duration
}

// Orchestrator drives one run through its stages, strictly one at a time.
type Orchestrator struct {
	run    *Run
	layout Layout
	runner stage.Runner
	audit  *logging.AuditLogger
}

// NewOrchestrator creates an orchestrator executing stages through runner.
func NewOrchestrator(run *Run, runner stage.Runner) (*Orchestrator, error) {
	layout, err := run.Layout()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		run:    run,
		layout: layout,
		runner: runner,
		audit:  logging.AuditWithRun(run.ID),
	}, nil
}

// Layout returns the output tree the orchestrator writes.
func (o *Orchestrator) Layout() Layout { return o.layout }

// Execute runs the whole pipeline. Any failure stops the run; completed
// outputs are left in place.
func (o *Orchestrator) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: o.run.ID}
	o.audit.RunStart(o.run.Source, o.layout.Root)
	logging.Pipeline("run %s: %s -> %s", o.run.ID, o.run.Source, o.layout.Root)

	err := o.execute(ctx, result)
	result.Duration = time.Since(start)
	o.audit.RunComplete(result.Duration, len(result.Stages), err)
	if err != nil {
		logging.PipelineError("run %s failed after %d stages: %v", o.run.ID, len(result.Stages), err)
		return result, err
	}
	logging.Pipeline("run %s complete: %d stages in %s", o.run.ID, len(result.Stages), result.Duration.Round(time.Second))
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, result *Result) error {
	if err := o.layout.CheckEmpty(); err != nil {
		return err
	}
	if err := o.layout.EnsureTree(); err != nil {
		return err
	}

	originals, err := manifest.Discover(o.run.Source, o.layout.Dirs()...)
	if err != nil {
		return err
	}
	if len(originals) == 0 {
		return &NoInputFilesError{Source: o.run.Source}
	}
	result.Inputs = len(originals)
	logging.Pipeline("found %d point-cloud files", len(originals))

	declassified := o.layout.Path(DirDeclassified)
	timer := logging.StartTimer(logging.CategoryPipeline, "working copy")
	if err := copyInputs(ctx, originals, declassified, o.run.Cores, o.audit); err != nil {
		return fmt.Errorf("working copy: %w", err)
	}
	timer.Stop()

	if err := o.runStage(ctx, DeclassifyStage(o.layout), result); err != nil {
		return err
	}

	samples, err := density.Probe(declassified)
	if err != nil {
		return err
	}
	densities := density.Densities(samples)
	tileSize, err := density.TileSize(densities, density.DefaultTargetPoints)
	if err != nil {
		return err
	}
	result.MaxDensity = floats.Max(densities)
	result.TileSize = tileSize
	o.audit.TileSize(result.MaxDensity, tileSize)
	logging.Pipeline("using tile size %d (max density %.4g)", tileSize, result.MaxDensity)

	plan := BuildPlan(o.run, o.layout, tileSize, originals)
	if err := plan.Validate(declassified); err != nil {
		return err
	}

	// The first stage is the declassify pass that already ran.
	for _, s := range plan.Stages[1:] {
		if err := o.runStage(ctx, s, result); err != nil {
			return err
		}
		if s.Name == StageCheckTiles {
			if err := density.CheckBudget(o.layout.Path(DirTiled), o.run.TileBudget); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, s stage.Stage, result *Result) error {
	logging.Pipeline("start %s", s.Name)
	o.audit.StageStart(s.Name, s.Output)

	start := time.Now()
	err := o.runner.Run(ctx, s)
	elapsed := time.Since(start)
	o.audit.StageComplete(s.Name, elapsed, err)
	if err != nil {
		return err
	}

	result.Stages = append(result.Stages, StageResult{Name: s.Name, Output: s.Output, Duration: elapsed})
	logging.Pipeline("ok %s (%s)", s.Name, elapsed.Round(time.Millisecond))
	return nil
}
