// Package cli implements the batchrun command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/utkarsh5026/batchrun/internal/config"
	"github.com/utkarsh5026/batchrun/internal/logging"
)

// TasksFailedError is returned by run with --fail-on-error when at least one
// slot holds no value.
type TasksFailedError struct {
	Failed int
	Total  int
}

func (e *TasksFailedError) Error() string {
	return fmt.Sprintf("%d of %d tasks did not produce a value", e.Failed, e.Total)
}

// ExitCode maps an Execute error to the process exit code: 0 on success,
// 2 when tasks failed under --fail-on-error and 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var failed *TasksFailedError
	if errors.As(err, &failed) {
		return 2
	}
	return 1
}

// app carries what PersistentPreRunE sets up to the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
	restore func()
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	a := &app{}
	defer a.close()
	return a.rootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	defs := config.Default()

	rootCmd := &cobra.Command{
		Use:   "batchrun",
		Short: "batchrun - run batches of independent tasks in parallel",
		Long: `batchrun runs a list of independent tasks over a fixed number of workers
and reports one result per task, in submission order.

Tasks are read from a YAML or TOML job file. Each task names a kind (echo,
sleep, sum, exec, lua) and its arguments; a parameter grid expands into one
task per point.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.batchrun.yaml)")
	pf.BoolP("verbose", "v", defs.Verbose, "verbose output with debug logging")
	pf.Bool("no-color", defs.NoColor, "disable colored output")
	pf.String("log-level", defs.LogLevel, "log level (debug, info, warn, error)")
	pf.String("log-format", defs.LogFormat, "log format (console, json)")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newKindsCmd())
	rootCmd.AddCommand(newGridCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// init loads the configuration and installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}

	// Only config flags given on the command line are bound, so an unset
	// flag never hides an environment variable or a config file value.
	keys := config.Keys()
	var bindErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key := flagKey(f.Name)
		if bindErr != nil || !slices.Contains(keys, key) {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, restore, err := logging.Install(logging.Options{
		Level:   cfg.LogLevel,
		Verbose: cfg.Verbose,
		Format:  cfg.LogFormat,
		NoColor: cfg.NoColor,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.close()
	a.logger, a.restore = logger, restore

	if file := v.ConfigFileUsed(); file != "" {
		logger.Debug("loaded configuration", zap.String("file", file))
	}
	return nil
}

func (a *app) close() {
	if a.restore != nil {
		a.restore()
		a.restore = nil
	}
}

// flagKey maps a flag name to its config key: out-file -> out_file.
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
