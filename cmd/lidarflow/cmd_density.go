package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"lidarflow/cmd/lidarflow/ui"
	"lidarflow/internal/density"
)

func newDensityCmd(a *app) *cobra.Command {
	var (
		plotPath string
		target   float64
	)
	cmd := &cobra.Command{
		Use:   "density DIR",
		Short: "Summarize lasinfo density reports and derive a tile size",
		Long: `Density reads the lasinfo report (<name>.txt) next to every point-cloud
file in DIR, as written by the declassify stage, and prints the per-file
point density, summary statistics and the resulting tile size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := density.Probe(args[0])
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				return fmt.Errorf("no point-cloud files in %s", args[0])
			}
			densities := density.Densities(samples)
			tileSize, err := density.TileSize(densities, target)
			if err != nil {
				return err
			}

			table := ui.NewSimpleTable("Point density", []string{"File", "Density"})
			for _, s := range samples {
				table.AddRow(filepath.Base(s.File), formatDensity(s.Density))
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, table.View(a.styles))

			sum := density.Summarize(densities)
			fmt.Fprintln(out)
			fmt.Fprint(out, a.styles.KeyValue(
				[2]string{"files", strconv.Itoa(sum.Count)},
				[2]string{"min", formatDensity(sum.Min)},
				[2]string{"max", formatDensity(sum.Max)},
				[2]string{"mean", formatDensity(sum.Mean)},
				[2]string{"std", formatDensity(sum.Std)},
				[2]string{"tile size", strconv.Itoa(tileSize)},
			))

			if plotPath != "" {
				if err := density.Plot(samples, tileSize, plotPath); err != nil {
					return err
				}
				fmt.Fprintln(out, a.styles.Muted.Render("plot written to "+plotPath))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&plotPath, "plot", "", "Write a density bar chart (.png, .svg or .pdf)")
	cmd.Flags().Float64Var(&target, "target", density.DefaultTargetPoints, "Points a tile is sized for")
	return cmd
}

func formatDensity(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
