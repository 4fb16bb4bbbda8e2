// Package pipeline sequences the LAStools stages of one processing run: it
// checks and creates the output tree, gathers the inputs, derives the tile
// size from the declassified copy and drives every stage through a runner.
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"lidarflow/internal/config"
	"lidarflow/internal/engine"
	"lidarflow/internal/stage"
	"lidarflow/internal/tactile"
)

// Run is the immutable description of one processing run.
type Run struct {
	ID string

	EngineDir    string
	Suffix       string
	ManifestPath string

	Source  string
	Dest    string
	Polygon string

	Cores  int
	Units  engine.Units
	Format engine.Format

	Coarse engine.GroundParams
	Fine   engine.GroundParams

	CheckTiles bool
	TileBudget int64
}

// NewRun resolves a configuration into a run with a fresh id. Paths are made
// absolute; the destination defaults to the source directory.
func NewRun(cfg *config.Config) (*Run, error) {
	if err := cfg.ValidatePlan(); err != nil {
		return nil, err
	}
	units, err := engine.ParseUnits(cfg.Units)
	if err != nil {
		return nil, err
	}
	format, err := engine.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		a, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		return a, nil
	}

	r := &Run{
		ID:         uuid.NewString(),
		Suffix:     cfg.Suffix(),
		Cores:      cfg.Cores,
		Units:      units,
		Format:     format,
		Coarse:     cfg.Coarse,
		Fine:       cfg.Fine,
		CheckTiles: cfg.CheckTiles,
		TileBudget: cfg.TileBudget,
	}
	for _, p := range []struct {
		dst *string
		src string
	}{
		{&r.EngineDir, cfg.Engine.Dir},
		{&r.ManifestPath, cfg.ManifestPath()},
		{&r.Source, cfg.SourceDir},
		{&r.Dest, cfg.Destination()},
		{&r.Polygon, cfg.GroundPolygon},
	} {
		if *p.dst, err = abs(p.src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Engine returns the tool resolver for this run.
func (r *Run) Engine() *engine.Engine {
	return &engine.Engine{
		Dir:    r.EngineDir,
		Suffix: r.Suffix,
		Format: r.Format,
		Cores:  r.Cores,
	}
}

// Runner returns a stage runner executing through exec.
func (r *Run) Runner(exec tactile.Executor) *stage.ExecRunner {
	runner := stage.NewExecRunner(r.Engine(), exec, r.ManifestPath)
	runner.RunID = r.ID
	return runner
}

// Layout returns the output tree for this run.
func (r *Run) Layout() (Layout, error) {
	return NewLayout(r.Dest)
}
