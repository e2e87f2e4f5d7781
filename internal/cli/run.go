package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/batchrun/internal/config"
	"github.com/utkarsh5026/batchrun/internal/jobfile"
	"github.com/utkarsh5026/batchrun/internal/metrics"
	"github.com/utkarsh5026/batchrun/internal/output"
	"github.com/utkarsh5026/batchrun/internal/tasks"
	"github.com/utkarsh5026/batchrun/pool"
)

const metricsNamespace = "batchrun"

func newRunCmd(a *app) *cobra.Command {
	defs := config.Default()

	cmd := &cobra.Command{
		Use:   "run JOBFILE",
		Short: "Run the tasks of a job file",
		Long: `Run loads a YAML or TOML job file, validates it, expands its grid and runs
every task. Results are printed in submission order.

A failing task never fails the command: its slot is reported as skipped or
aborted, depending on the failure policy. Use --fail-on-error to exit with
status 2 when any task produced no value.

The worker count comes from --width, then the job file, then the CPU count.`,
		Example: `  batchrun run job.yaml
  batchrun run job.toml -w 8 --policy skip -o json
  batchrun run job.yaml -o xlsx --out-file results.xlsx --progress`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJob(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.IntP("width", "w", defs.Width, "number of workers; 0 or 1 runs inline (default: job file, then CPU count)")
	f.String("policy", defs.Policy, "failure policy (abort, skip)")
	f.StringP("output", "o", defs.Output, "output format (table, json, yaml, xlsx)")
	f.Int("max-value-width", defs.MaxValueWidth, "truncate table values longer than this (0 = no limit)")
	f.String("out-file", defs.OutFile, "write output to this file instead of stdout")
	f.Bool("progress", defs.Progress, "show a progress bar on stderr")
	f.String("metrics-file", defs.MetricsFile, "write Prometheus metrics to this textfile after the run")
	f.Bool("pin-workers", defs.PinWorkers, "pin each worker to a CPU")
	f.Float64("rate", defs.Rate, "max task starts per second across all workers (0 = no limit)")
	f.Int("burst", defs.Burst, "rate limiter burst size")
	f.Bool("fail-on-error", defs.FailOnError, "exit with status 2 when any task fails")

	return cmd
}

func (a *app) runJob(cmd *cobra.Command, path string) error {
	cfg, log := a.cfg, a.logger

	job, err := jobfile.Load(path)
	if err != nil {
		return err
	}

	reg := pool.NewRegistry()
	if err := tasks.Register(reg); err != nil {
		return err
	}
	specs := job.Bind(reg)

	width := runtime.GOMAXPROCS(0)
	switch {
	case cfg.IsSet(config.KeyWidth):
		width = cfg.Width
	case job.Width != nil:
		width = *job.Width
	}

	policy := job.FailurePolicy()
	if cfg.IsSet(config.KeyPolicy) {
		policy = cfg.FailurePolicy()
	}

	collector := metrics.NewCollector(metricsNamespace)
	opts := []pool.Option{
		pool.WithWidth(width),
		pool.WithFailurePolicy(policy),
		pool.WithRegistry(reg),
		pool.WithDefaultKind(job.DefaultKind),
		pool.WithLogger(log.With(zap.String("job", path))),
		pool.WithMetrics(collector),
		pool.WithPinnedWorkers(cfg.PinWorkers),
		pool.WithRateLimit(cfg.Rate, cfg.Burst),
	}

	var bar *progressbar.ProgressBar
	if cfg.Progress && len(specs) > 0 {
		bar = newProgressBar(cmd.ErrOrStderr(), len(specs), cfg.NoColor)
		opts = append(opts, pool.WithOnTaskEnd(func(pool.TaskInfo, any, error) {
			_ = bar.Add(1)
		}))
	}

	results, runErr := pool.New(opts...).Run(cmd.Context(), specs)
	if bar != nil {
		_ = bar.Exit()
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	}
	if results == nil {
		return runErr
	}

	if err := a.render(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		log.Debug("metrics written", zap.String("file", cfg.MetricsFile))
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return runErr
	}

	if s := pool.Summarize(results); cfg.FailOnError && s.Failed() > 0 {
		return &TasksFailedError{Failed: s.Failed(), Total: s.Total}
	}
	return nil
}

// render writes results to the configured output, stdout when no out-file
// is set.
func (a *app) render(stdout io.Writer, results []pool.Result) (err error) {
	formatter, err := output.NewFormatter(output.Format(a.cfg.Output),
		output.WithNoColor(a.cfg.NoColor),
		output.WithMaxValueWidth(a.cfg.MaxValueWidth),
	)
	if err != nil {
		return err
	}

	w := stdout
	if a.cfg.OutFile != "" {
		f, cerr := os.Create(a.cfg.OutFile)
		if cerr != nil {
			return fmt.Errorf("create output file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output file: %w", cerr)
			}
		}()
		w = f
	}

	if err := formatter.Format(w, results); err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	if a.cfg.OutFile != "" {
		a.logger.Info("results written", zap.String("file", a.cfg.OutFile), zap.String("format", a.cfg.Output))
	}
	return nil
}

func newProgressBar(w io.Writer, total int, noColor bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Running tasks"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("tasks"),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(!noColor),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
	)
}
