package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lidarflow/internal/config"
	"lidarflow/internal/density"
	"lidarflow/internal/manifest"
	"lidarflow/internal/tactile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// call is what the fake engine observed for one process.
type call struct {
	Tool     string
	Args     []string
	Manifest []string
}

// fakeEngine stands in for the LAStools binaries. It records each call with
// the manifest contents at that moment and leaves behind the files the real
// tool would write: density reports for the declassify pass, point counts for
// the tile census, and one output file per stage otherwise.
type fakeEngine struct {
	t         *testing.T
	mu        sync.Mutex
	calls     []call
	densities map[string]string
	points    string
	fail      func(cmd tactile.Command) *tactile.ExecutionResult
}

func (f *fakeEngine) handle(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	lof := cmd.Arguments[1]
	m, err := manifest.Read(lof)
	require.NoError(f.t, err)

	f.mu.Lock()
	f.calls = append(f.calls, call{
		Tool:     filepath.Base(cmd.Binary),
		Args:     cmd.Arguments,
		Manifest: []string(m),
	})
	f.mu.Unlock()

	if f.fail != nil {
		if res := f.fail(cmd); res != nil {
			return res, nil
		}
	}

	switch {
	case slices.Contains(cmd.Arguments, "-cd"):
		for _, file := range m {
			d, ok := f.densities[filepath.Base(file)]
			if !ok {
				d = "4.0"
			}
			report := "point density: all returns 99.0 last only " + d + " (per square meter)\n"
			require.NoError(f.t, os.WriteFile(density.ReportPath(file), []byte(report), 0644))
		}
	case slices.Contains(cmd.Arguments, "-otxt"):
		for _, file := range m {
			report := "  number of point records:    " + f.points + "\n"
			require.NoError(f.t, os.WriteFile(density.ReportPath(file), []byte(report), 0644))
		}
	default:
		i := slices.Index(cmd.Arguments, "-odir")
		require.GreaterOrEqual(f.t, i, 0, "no -odir in %v", cmd.Arguments)
		ext := cmd.Arguments[len(cmd.Arguments)-1][2:]
		out := filepath.Join(cmd.Arguments[i+1], cmd.RequestID+"."+ext)
		require.NoError(f.t, os.WriteFile(out, []byte("LASF"), 0644))
	}
	return &tactile.ExecutionResult{Success: true, ExitCode: 0}, nil
}

func (f *fakeEngine) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// site is a source tree with three point clouds and a ground polygon.
type site struct {
	root      string
	engineDir string
	source    string
	polygon   string
	originals []string
}

func newSite(t *testing.T) *site {
	t.Helper()
	root := t.TempDir()
	s := &site{
		root:      root,
		engineDir: filepath.Join(root, "LAStools", "bin"),
		source:    filepath.Join(root, "site"),
		polygon:   filepath.Join(root, "ground.shp"),
	}
	require.NoError(t, os.MkdirAll(s.engineDir, 0755))
	require.NoError(t, os.WriteFile(s.polygon, []byte("shp"), 0644))
	for _, rel := range []string{"a.las", "c.laz", filepath.Join("north", "b.las")} {
		path := filepath.Join(s.source, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("LASF "+rel), 0644))
		s.originals = append(s.originals, path)
	}
	return s
}

func (s *site) config() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.Dir = s.engineDir
	noSuffix := ""
	cfg.Engine.Suffix = &noSuffix
	cfg.SourceDir = s.source
	cfg.GroundPolygon = s.polygon
	return cfg
}

func newFakeEngine(t *testing.T) *fakeEngine {
	return &fakeEngine{
		t:         t,
		densities: map[string]string{"a.las": "10", "b.las": "25", "c.laz": "7"},
		points:    "1000000",
	}
}

// orchestrate wires a run over s through a recording executor backed by fe.
func orchestrate(t *testing.T, cfg *config.Config, fe *fakeEngine) (*Run, *Orchestrator) {
	t.Helper()
	run, err := NewRun(cfg)
	require.NoError(t, err)
	rec := tactile.NewRecordingExecutor(fe.handle)
	o, err := NewOrchestrator(run, run.Runner(rec))
	require.NoError(t, err)
	return run, o
}

func fileIn(dir, name string) string {
	return filepath.Join(dir, name)
}

func sprintCode(c ClassType) string {
	return fmt.Sprint(c.Code())
}
