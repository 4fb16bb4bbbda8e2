package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lidarflow/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a default configuration file",
		Long: `Init writes the default configuration to PATH (default: the --config path).
A .toml extension selects TOML, anything else YAML.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render("wrote")+" "+path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), a.styles.KeyValue(
				[2]string{"engine dir", a.cfg.Engine.Dir},
				[2]string{"suffix", a.cfg.Suffix()},
				[2]string{"manifest", a.cfg.ManifestPath()},
				[2]string{"source", a.cfg.SourceDir},
				[2]string{"destination", a.cfg.Destination()},
				[2]string{"polygon", a.cfg.GroundPolygon},
				[2]string{"cores", fmt.Sprint(a.cfg.Cores)},
				[2]string{"units", a.cfg.Units},
				[2]string{"format", a.cfg.Format},
				[2]string{"coarse", fmt.Sprintf("%+v", a.cfg.Coarse)},
				[2]string{"fine", fmt.Sprintf("%+v", a.cfg.Fine)},
			))
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), a.styles.Warning.Render(err.Error()))
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
