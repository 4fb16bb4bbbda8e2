package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"lidarflow/internal/engine"
	"lidarflow/internal/stage"
)

// Stage names.
const (
	StageDeclassify         = "declassify"
	StageTile               = "tile"
	StageCheckTiles         = "check-tiles"
	StageGroundCoarse       = "ground-coarse"
	StageGroundFine         = "ground-fine"
	StageHeightCoarse       = "height-coarse"
	StageHeightFine         = "height-fine"
	StageClassifyCoarse     = "classify-coarse"
	StageClassifyFine       = "classify-fine"
	StageRemoveBufferCoarse = "remove-buffer-coarse"
	StageRemoveBufferFine   = "remove-buffer-fine"
	StageClipGroundCoarse   = "clip-ground-coarse"
	StageClipGroundFine     = "clip-ground-fine"
	StageMergeGround        = "merge-ground"
	StageDedupGround        = "dedup-ground"
	StageMergeVegNew        = "merge-veg-new"
	StageClipVegNew         = "clip-veg-new"
	StageMergeVeg           = "merge-veg"
	StageDedupVeg           = "dedup-veg"
)

// TileBuffer is the buffer lastile adds around each tile before ground
// classification.
const TileBuffer = 5

// Plan is the ordered stage graph of one run.
type Plan struct {
	TileSize int
	Stages   []stage.Stage
}

// DeclassifyStage resets classification of the working copy and writes the
// density reports next to it.
func DeclassifyStage(l Layout) stage.Stage {
	return stage.Stage{
		Name:       StageDeclassify,
		Inputs:     []string{l.Path(DirDeclassified)},
		Invocation: engine.Declassify(),
	}
}

// CensusStage writes a lasinfo report next to every tile.
func CensusStage(l Layout) stage.Stage {
	return stage.Stage{
		Name:       StageCheckTiles,
		Inputs:     []string{l.Path(DirTiled)},
		Invocation: engine.Census(),
	}
}

func separateName(branch string, c ClassType) string {
	return fmt.Sprintf("separate-%s-%s", branch, c.Dir())
}

// BuildPlan returns every stage of a run in execution order, starting with
// the declassify stage. originals are the source files the per-class
// separation of the unprocessed data reads.
func BuildPlan(run *Run, l Layout, tileSize int, originals []string) Plan {
	p := Plan{TileSize: tileSize}
	add := func(name string, inputs []string, output string, inv engine.Invocation) {
		p.Stages = append(p.Stages, stage.Stage{
			Name:       name,
			Inputs:     inputs,
			Output:     output,
			Invocation: inv,
		})
	}
	dir := func(names ...string) []string {
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = l.Path(n)
		}
		return out
	}

	p.Stages = append(p.Stages, DeclassifyStage(l))

	add(StageTile, dir(DirDeclassified), l.Path(DirTiled), engine.Tile(run.Format, tileSize, TileBuffer))
	if run.CheckTiles {
		p.Stages = append(p.Stages, CensusStage(l))
	}

	add(StageGroundCoarse, dir(DirTiled), l.Path(DirGroundCoarse), engine.Ground(run.Units, run.Coarse))
	add(StageGroundFine, dir(DirTiled), l.Path(DirGroundFine), engine.Ground(run.Units, run.Fine))

	add(StageHeightCoarse, dir(DirGroundCoarse), l.Path(DirHeightCoarse), engine.Height())
	add(StageHeightFine, dir(DirGroundFine), l.Path(DirHeightFine), engine.Height())

	add(StageClassifyCoarse, dir(DirHeightCoarse), l.Path(DirClassifyCoarse), engine.Classify(run.Units))
	add(StageClassifyFine, dir(DirHeightFine), l.Path(DirClassifyFine), engine.Classify(run.Units))

	add(StageRemoveBufferCoarse, dir(DirClassifyCoarse), l.Path(DirRemoveBufferCoarse), engine.RemoveBuffer())
	add(StageRemoveBufferFine, dir(DirClassifyFine), l.Path(DirRemoveBufferFine), engine.RemoveBuffer())

	for _, c := range Classes {
		add(separateName("coarse", c), dir(DirRemoveBufferCoarse), l.ClassPath(DirSeparatedCoarse, c), engine.KeepClass(c.Code()))
	}
	for _, c := range Classes {
		add(separateName("fine", c), dir(DirRemoveBufferFine), l.ClassPath(DirSeparatedFine, c), engine.KeepClass(c.Code()))
	}

	// Coarse ground is kept outside the polygon, fine ground inside it.
	add(StageClipGroundCoarse, []string{l.ClassPath(DirSeparatedCoarse, ClassGround)}, l.Path(DirGroundClipCoarse),
		engine.Clip(run.Polygon, true))
	add(StageClipGroundFine, []string{l.ClassPath(DirSeparatedFine, ClassGround)}, l.Path(DirGroundClipFine),
		engine.Clip(run.Polygon, false))

	for _, c := range Classes {
		p.Stages = append(p.Stages, stage.Stage{
			Name:       separateName("original", c),
			Files:      append([]string(nil), originals...),
			Output:     l.ClassPath(DirSeparated, c),
			Invocation: engine.KeepClass(c.Code()),
		})
	}

	add(StageMergeGround, []string{
		l.Path(DirGroundClipCoarse),
		l.Path(DirGroundClipFine),
		l.ClassPath(DirSeparated, ClassGround),
	}, l.Path(DirGroundMerged), engine.Merge(run.Format, tileSize))
	add(StageDedupGround, dir(DirGroundMerged), l.Path(DirGroundDeduplicated), engine.Deduplicate())

	add(StageMergeVegNew, []string{
		l.ClassPath(DirSeparatedCoarse, ClassVegetation),
		l.ClassPath(DirSeparatedFine, ClassVegetation),
	}, l.Path(DirVegNewMerged), engine.Merge(run.Format, tileSize))
	add(StageClipVegNew, dir(DirVegNewMerged), l.Path(DirVegNewClipped), engine.Clip(run.Polygon, true))
	add(StageMergeVeg, []string{
		l.Path(DirVegNewClipped),
		l.ClassPath(DirSeparated, ClassVegetation),
	}, l.Path(DirVegMerged), engine.Merge(run.Format, tileSize))
	add(StageDedupVeg, dir(DirVegMerged), l.Path(DirVegDeduplicated), engine.Deduplicate())

	return p
}

// Validate checks that stage outputs are distinct and not nested in each
// other, and that every input directory is either in available or written by
// an earlier stage.
func (p Plan) Validate(available ...string) error {
	produced := make(map[string]string)
	for _, a := range available {
		produced[filepath.Clean(a)] = ""
	}

	var outputs []string
	for _, s := range p.Stages {
		if s.Name == "" {
			return &PlanError{Stage: "?", Reason: "unnamed stage"}
		}

		for _, in := range s.Inputs {
			if _, ok := produced[filepath.Clean(in)]; !ok {
				return &PlanError{Stage: s.Name, Reason: fmt.Sprintf("reads %s before any stage writes it", in)}
			}
		}

		if s.Invocation.InPlace {
			if s.Output != "" {
				return &PlanError{Stage: s.Name, Reason: "in-place stage has an output directory"}
			}
			continue
		}
		if s.Output == "" {
			return &PlanError{Stage: s.Name, Reason: "no output directory"}
		}

		out := filepath.Clean(s.Output)
		for _, in := range s.Inputs {
			if filepath.Clean(in) == out {
				return &PlanError{Stage: s.Name, Reason: fmt.Sprintf("writes into its own input %s", out)}
			}
		}
		for _, other := range outputs {
			if other == out || within(other, out) || within(out, other) {
				return &PlanError{Stage: s.Name, Reason: fmt.Sprintf("output %s overlaps %s", out, other)}
			}
		}
		outputs = append(outputs, out)
		produced[out] = s.Name
	}
	return nil
}

// within reports whether path lies strictly inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Names returns the stage names in order.
func (p Plan) Names() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}
