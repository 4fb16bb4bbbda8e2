package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lidarflow/internal/engine"
	"lidarflow/internal/stage"
)

func testRun(t *testing.T) (*Run, Layout) {
	t.Helper()
	s := newSite(t)
	run, err := NewRun(s.config())
	require.NoError(t, err)
	l, err := run.Layout()
	require.NoError(t, err)
	return run, l
}

func TestBuildPlan_Order(t *testing.T) {
	run, l := testRun(t)
	p := BuildPlan(run, l, 120, []string{"/src/a.las"})

	want := []string{
		"declassify", "tile",
		"ground-coarse", "ground-fine",
		"height-coarse", "height-fine",
		"classify-coarse", "classify-fine",
		"remove-buffer-coarse", "remove-buffer-fine",
		"separate-coarse-01-Default", "separate-coarse-02-Ground", "separate-coarse-05-Vegetation", "separate-coarse-06-Building",
		"separate-fine-01-Default", "separate-fine-02-Ground", "separate-fine-05-Vegetation", "separate-fine-06-Building",
		"clip-ground-coarse", "clip-ground-fine",
		"separate-original-01-Default", "separate-original-02-Ground", "separate-original-05-Vegetation", "separate-original-06-Building",
		"merge-ground", "dedup-ground",
		"merge-veg-new", "clip-veg-new", "merge-veg", "dedup-veg",
	}
	if diff := cmp.Diff(want, p.Names()); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 120, p.TileSize)
	require.NoError(t, p.Validate(l.Path(DirDeclassified)))
}

func TestBuildPlan_CheckTiles(t *testing.T) {
	run, l := testRun(t)
	run.CheckTiles = true
	p := BuildPlan(run, l, 80, nil)

	require.Len(t, p.Stages, 31)
	assert.Equal(t, StageCheckTiles, p.Stages[2].Name)
	assert.True(t, p.Stages[2].Invocation.InPlace)
	assert.NoError(t, p.Validate(l.Path(DirDeclassified)))
}

func TestBuildPlan_UnitsAndFormat(t *testing.T) {
	run, l := testRun(t)
	run.Units = engine.USFeet
	run.Format = engine.LAZ
	p := BuildPlan(run, l, 80, nil)

	byName := make(map[string]stage.Stage)
	for _, s := range p.Stages {
		byName[s.Name] = s
	}

	ground := byName[StageGroundFine].Invocation.Args()
	assert.Equal(t, []string{"-feet", "-elevation_feet"}, ground[:2])
	assert.Equal(t, []string{"-feet", "-elevation_feet"}, byName[StageClassifyCoarse].Invocation.Args())
	assert.Contains(t, byName[StageTile].Invocation.Args(), "tile.laz")
	assert.Contains(t, byName[StageMergeVeg].Invocation.Args(), "tile.laz")
	assert.Empty(t, byName[StageHeightCoarse].Invocation.Args())
}

func TestBuildPlan_ClipPolarity(t *testing.T) {
	run, l := testRun(t)
	p := BuildPlan(run, l, 120, nil)

	for _, s := range p.Stages {
		switch s.Name {
		case StageClipGroundCoarse, StageClipVegNew:
			assert.Contains(t, s.Invocation.Args(), "-interior", s.Name)
		case StageClipGroundFine:
			assert.NotContains(t, s.Invocation.Args(), "-interior", s.Name)
		}
		if s.Invocation.Tool == engine.Lasclip {
			assert.Contains(t, s.Invocation.Args(), "-donuts", s.Name)
			assert.Contains(t, s.Invocation.Args(), run.Polygon, s.Name)
		}
	}
}

func TestBuildPlan_OutputsDisjoint(t *testing.T) {
	run, l := testRun(t)
	p := BuildPlan(run, l, 120, nil)

	seen := make(map[string]string)
	for _, s := range p.Stages {
		if s.Output == "" {
			continue
		}
		if prev, ok := seen[s.Output]; ok {
			t.Errorf("%s and %s both write %s", prev, s.Name, s.Output)
		}
		seen[s.Output] = s.Name
	}
	assert.Len(t, seen, 29)
}

func TestPlanValidate_Rejects(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	c := filepath.Join(root, "c")

	tests := []struct {
		name   string
		stages []stage.Stage
	}{
		{"reads before write", []stage.Stage{
			{Name: "s1", Inputs: []string{b}, Output: c, Invocation: engine.Height()},
			{Name: "s2", Inputs: []string{a}, Output: b, Invocation: engine.Height()},
		}},
		{"duplicate output", []stage.Stage{
			{Name: "s1", Inputs: []string{a}, Output: b, Invocation: engine.Height()},
			{Name: "s2", Inputs: []string{a}, Output: b, Invocation: engine.Height()},
		}},
		{"nested output", []stage.Stage{
			{Name: "s1", Inputs: []string{a}, Output: b, Invocation: engine.Height()},
			{Name: "s2", Inputs: []string{a}, Output: filepath.Join(b, "02-Ground"), Invocation: engine.Height()},
		}},
		{"own input", []stage.Stage{
			{Name: "s1", Inputs: []string{a}, Output: b, Invocation: engine.Height()},
			{Name: "s2", Inputs: []string{b}, Output: b, Invocation: engine.Height()},
		}},
		{"missing output", []stage.Stage{
			{Name: "s1", Inputs: []string{a}, Invocation: engine.Height()},
		}},
		{"in-place with output", []stage.Stage{
			{Name: "s1", Inputs: []string{a}, Output: b, Invocation: engine.Census()},
		}},
		{"unnamed", []stage.Stage{
			{Inputs: []string{a}, Output: b, Invocation: engine.Height()},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Plan{Stages: tt.stages}.Validate(a)
			var pe *PlanError
			assert.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestPlanValidate_SiblingPrefixIsNotNested(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	p := Plan{Stages: []stage.Stage{
		{Name: "s1", Inputs: []string{a}, Output: filepath.Join(root, "07a"), Invocation: engine.Height()},
		{Name: "s2", Inputs: []string{a}, Output: filepath.Join(root, "07a_clipped"), Invocation: engine.Height()},
	}}
	assert.NoError(t, p.Validate(a))
}

func TestClassType(t *testing.T) {
	assert.Equal(t, "01-Default", ClassDefault.Dir())
	assert.Equal(t, "02-Ground", ClassGround.Dir())
	assert.Equal(t, "05-Vegetation", ClassVegetation.Dir())
	assert.Equal(t, "06-Building", ClassBuilding.Dir())
	assert.Equal(t, 5, ClassVegetation.Code())
	assert.Equal(t, "09-Class", ClassType(9).Dir())
}
