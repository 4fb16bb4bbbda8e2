// Command lidarflow drives a LAStools installation through the full
// ground/vegetation extraction pipeline for a directory of LiDAR tiles.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lidarflow/cmd/lidarflow/ui"
	"lidarflow/internal/config"
	"lidarflow/internal/logging"
	"lidarflow/internal/tactile"
)

// app carries state shared by every subcommand.
type app struct {
	// Global flags
	configPath string
	verbose    bool
	logJSON    bool
	logFile    string

	cfg     *config.Config
	logger  *zap.Logger
	styles  ui.Styles
	metrics *tactile.ExecutionMetrics

	// newExecutor builds the process executor for "run". Tests swap it for
	// a recording executor.
	newExecutor func() tactile.Executor
}

func newApp() *app {
	a := &app{
		styles:  ui.DefaultStyles(),
		metrics: tactile.NewExecutionMetrics(),
	}
	a.newExecutor = func() tactile.Executor {
		var exec tactile.AuditedExecutor = tactile.NewDirectExecutor()
		exec.SetAuditCallback(func(ev tactile.AuditEvent) {
			a.metrics.Record(ev)
			logExecution(ev)
		})
		return exec
	}
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lidarflow",
		Short: "LiDAR ground and vegetation extraction with LAStools",
		Long: `lidarflow runs the LAStools tool chain over a directory of LAS/LAZ files.

It copies the inputs into the output tree, resets their classification,
sizes tiles from the measured point density, and then performs two ground
classification passes (coarse and fine), height normalisation, building and
vegetation classification, class separation, polygon clipping, merging and
deduplication. Each stage reads the previous stage's directory and writes its
own numbered directory under the destination.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			opts := logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				File:   cfg.Logging.File,
			}
			if a.verbose {
				opts.Level = zapcore.DebugLevel.String()
			}
			if a.logJSON {
				opts.Format = "json"
			}
			if a.logFile != "" {
				opts.File = a.logFile
			}

			logger, err := logging.New(opts)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			logging.SetLogger(logger)
			logging.BootDebug("config=%s level=%s format=%s", a.configPath, opts.Level, opts.Format)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "lidarflow.yaml", "Config file (YAML or TOML; missing means defaults)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "Emit JSON log lines")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Also append logs to this file")

	root.AddCommand(
		newRunCmd(a),
		newPlanCmd(a),
		newLayoutCmd(a),
		newDensityCmd(a),
		newConfigCmd(a),
	)
	return root
}

// logExecution mirrors executor audit events into the tactile log category.
func logExecution(ev tactile.AuditEvent) {
	tool := ev.Command.Tags["tool"]
	switch ev.Type {
	case tactile.AuditEventStart:
		logging.TactileDebug("[%s] start %s", ev.Command.RequestID, ev.Command.CommandString())
	case tactile.AuditEventComplete:
		if ev.Result != nil {
			logging.Tactile("[%s] %s exited %d in %s", ev.Command.RequestID, tool, ev.Result.ExitCode, ev.Result.Duration)
		}
	case tactile.AuditEventKilled:
		logging.TactileWarn("[%s] %s killed", ev.Command.RequestID, tool)
	case tactile.AuditEventError:
		if ev.Result != nil && ev.Result.Error != "" {
			logging.TactileError("[%s] %s failed: %s", ev.Command.RequestID, tool, ev.Result.Error)
		}
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, a.styles.Error.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
