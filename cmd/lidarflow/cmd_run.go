package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lidarflow/cmd/lidarflow/ui"
	"lidarflow/internal/config"
	"lidarflow/internal/engine"
	"lidarflow/internal/pipeline"
	"lidarflow/internal/stage"
	"lidarflow/internal/tactile"
)

// runFlags holds command-line overrides. Only flags the user set are applied
// on top of the loaded configuration.
type runFlags struct {
	engineDir  string
	source     string
	dest       string
	polygon    string
	cores      int
	units      string
	format     string
	suffix     string
	checkTiles bool
	tileBudget int64
	coarse     engine.GroundParams
	fine       engine.GroundParams
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.engineDir, "engine-dir", "", "Directory holding the LAStools executables")
	fs.StringVarP(&f.source, "source", "s", "", "Directory of raw LAS/LAZ files (searched recursively)")
	fs.StringVarP(&f.dest, "dest", "d", "", "Destination of the output tree (default: source)")
	fs.StringVarP(&f.polygon, "polygon", "p", "", "Ground polygon shapefile used for clipping")
	fs.IntVar(&f.cores, "cores", engine.DefaultCores, "Worker cores passed to the tools (1, 2, 4, 8, 16, 32)")
	fs.StringVar(&f.units, "units", string(engine.Metric), "Horizontal and vertical units (metric, us_feet)")
	fs.StringVar(&f.format, "format", string(engine.LAS), "Output format (las, laz)")
	fs.StringVar(&f.suffix, "suffix", "", "Executable suffix appended to tool names")
	fs.BoolVar(&f.checkTiles, "check-tiles", false, "Verify every tile stays within the point budget")
	fs.Int64Var(&f.tileBudget, "tile-budget", 1_500_000, "Maximum points per tile for --check-tiles")
	registerGround(fs, "coarse", &f.coarse, config.DefaultCoarse)
	registerGround(fs, "fine", &f.fine, config.DefaultFine)
}

func registerGround(fs *pflag.FlagSet, name string, p *engine.GroundParams, def engine.GroundParams) {
	fs.Float64Var(&p.Step, name+"-step", def.Step, "Ground "+name+" step size")
	fs.Float64Var(&p.Bulge, name+"-bulge", def.Bulge, "Ground "+name+" bulge")
	fs.Float64Var(&p.Spike, name+"-spike", def.Spike, "Ground "+name+" spike")
	fs.Float64Var(&p.DownSpike, name+"-down-spike", def.DownSpike, "Ground "+name+" down spike")
	fs.Float64Var(&p.Offset, name+"-offset", def.Offset, "Ground "+name+" offset")
}

// apply copies every flag the user set into cfg.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("engine-dir", func() { cfg.Engine.Dir = f.engineDir })
	set("source", func() { cfg.SourceDir = f.source })
	set("dest", func() { cfg.DestDir = f.dest })
	set("polygon", func() { cfg.GroundPolygon = f.polygon })
	set("cores", func() { cfg.Cores = f.cores })
	set("units", func() { cfg.Units = f.units })
	set("format", func() { cfg.Format = f.format })
	set("suffix", func() { s := f.suffix; cfg.Engine.Suffix = &s })
	set("check-tiles", func() { cfg.CheckTiles = f.checkTiles })
	set("tile-budget", func() { cfg.TileBudget = f.tileBudget })
	applyGround(fs, "coarse", &cfg.Coarse, f.coarse)
	applyGround(fs, "fine", &cfg.Fine, f.fine)
}

func applyGround(fs *pflag.FlagSet, name string, dst *engine.GroundParams, src engine.GroundParams) {
	for _, field := range []struct {
		flag string
		dst  *float64
		src  float64
	}{
		{"-step", &dst.Step, src.Step},
		{"-bulge", &dst.Bulge, src.Bulge},
		{"-spike", &dst.Spike, src.Spike},
		{"-down-spike", &dst.DownSpike, src.DownSpike},
		{"-offset", &dst.Offset, src.Offset},
	} {
		if fs.Changed(name + field.flag) {
			*field.dst = field.src
		}
	}
}

func newRunCmd(a *app) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full extraction pipeline",
		Long: `Run copies the source files into the destination tree and executes every
LAStools stage in order. The destination's stage directories must be empty.
Interrupting the command (Ctrl+C) stops the running tool and leaves finished
stage outputs in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd.Flags(), a.cfg)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			run, err := pipeline.NewRun(a.cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.execute(ctx, cmd, run)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func (a *app) execute(ctx context.Context, cmd *cobra.Command, run *pipeline.Run) error {
	orch, err := pipeline.NewOrchestrator(run, run.Runner(a.newExecutor()))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.styles.Title.Render("lidarflow run "+run.ID))

	result, err := orch.Execute(ctx)
	if result != nil {
		fmt.Fprint(out, a.styles.KeyValue(summaryPairs(run, result)...))
	}
	fmt.Fprint(out, toolTable(a.metrics.Snapshot()).View(a.styles))
	if err != nil {
		var stageErr *stage.Error
		if errors.As(err, &stageErr) && stageErr.Output != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), a.styles.Muted.Render(stageErr.Output))
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	fmt.Fprintln(out, a.styles.Success.Render("done"))
	return nil
}

func summaryPairs(run *pipeline.Run, result *pipeline.Result) [][2]string {
	pairs := [][2]string{
		{"source", run.Source},
		{"destination", run.Dest},
		{"inputs", strconv.Itoa(result.Inputs)},
	}
	if result.TileSize > 0 {
		pairs = append(pairs,
			[2]string{"max density", strconv.FormatFloat(result.MaxDensity, 'f', 4, 64)},
			[2]string{"tile size", strconv.Itoa(result.TileSize)},
		)
	}
	pairs = append(pairs,
		[2]string{"stages", strconv.Itoa(len(result.Stages))},
		[2]string{"elapsed", result.Duration.Round(time.Second).String()},
	)
	return pairs
}

// toolTable lists per-tool execution time, slowest first.
func toolTable(stats []tactile.ToolStats) *ui.SimpleTable {
	table := ui.NewSimpleTable("Tools", []string{"Tool", "Runs", "Failed", "Time"})
	for _, s := range stats {
		table.AddRow(s.Tool, strconv.Itoa(s.Runs), strconv.Itoa(s.Failed+s.Killed), s.Duration.Round(time.Second).String())
	}
	return table
}
