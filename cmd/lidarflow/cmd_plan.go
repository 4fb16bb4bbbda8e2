package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lidarflow/cmd/lidarflow/ui"
	"lidarflow/internal/manifest"
	"lidarflow/internal/pipeline"
)

func newPlanCmd(a *app) *cobra.Command {
	flags := &runFlags{}
	var tileSize int
	var showArgs bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the stages a run would execute",
		Long: `Plan prints every stage of a run for the given tile size without touching
the destination. When a source directory is configured its files are listed
as inputs of the original-class separation stages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd.Flags(), a.cfg)
			if tileSize <= 0 {
				return fmt.Errorf("--tile-size must be positive")
			}
			run, err := pipeline.NewRun(a.cfg)
			if err != nil {
				return err
			}
			l, err := run.Layout()
			if err != nil {
				return err
			}

			var originals []string
			if run.Source != "" {
				originals, err = manifest.Discover(run.Source, l.Dirs()...)
				if err != nil {
					return err
				}
			}

			p := pipeline.BuildPlan(run, l, tileSize, originals)
			if err := p.Validate(l.Path(pipeline.DirDeclassified)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			title := fmt.Sprintf("%d stages, tile size %d, %d input files", len(p.Stages), p.TileSize, len(originals))
			fmt.Fprint(out, stageTable(title, p).View(a.styles))
			if showArgs {
				eng := run.Engine()
				fmt.Fprintln(out)
				for _, s := range p.Stages {
					c := eng.Command(s.Invocation, run.ManifestPath, s.Output)
					fmt.Fprintln(out, a.styles.Muted.Render(s.Name+":")+" "+c.CommandString())
				}
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&tileSize, "tile-size", 0, "Tile edge length to plan for")
	cmd.Flags().BoolVar(&showArgs, "commands", false, "Also print the full command line of every stage")
	_ = cmd.MarkFlagRequired("tile-size")
	return cmd
}

func newLayoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layout [DEST]",
		Short: "Create the empty output tree",
		Long: `Layout verifies that no stage directory under DEST holds files and creates
any missing directories of the output tree. DEST defaults to the configured
destination.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := a.cfg.Destination()
			if len(args) == 1 {
				dest = args[0]
			}
			if dest == "" {
				return fmt.Errorf("no destination given")
			}
			l, err := pipeline.NewLayout(dest)
			if err != nil {
				return err
			}
			if err := l.CheckEmpty(); err != nil {
				return err
			}
			if err := l.EnsureTree(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render("created")+" "+
				strconv.Itoa(len(l.All()))+" directories under "+l.Root)
			return nil
		},
	}
}

// stageTable renders stages as a numbered table.
func stageTable(title string, p pipeline.Plan) *ui.SimpleTable {
	table := ui.NewSimpleTable(title, []string{"#", "Stage", "Tool", "Output"})
	for i, s := range p.Stages {
		output := s.Output
		if output == "" {
			output = "(in place)"
		}
		table.AddRow(strconv.Itoa(i+1), s.Name, string(s.Invocation.Tool), output)
	}
	return table
}
