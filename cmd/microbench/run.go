package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"microbench/internal/benchmark"
	"microbench/internal/config"
	"microbench/internal/matrix"
	"microbench/internal/metrics"
	"microbench/internal/report"
	"microbench/internal/telemetry"
	"microbench/internal/ui"
	"microbench/internal/workload"
)

type runOptions struct {
	filter    string
	format    string
	title     string
	save      bool
	compare   bool
	threshold float64
	tui       bool
	parallel  int
	seed      uint64
	notify    bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Run a benchmark suite",
		Long: `Runs every cell of a suite (or those matching --filter) and prints one
record per cell. The process exits non-zero only when a kernel failed;
unstable cells and calibration timeouts are reported but do not fail the run.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: workload.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Glob per axis, e.g. 'Insert/*/64'")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "table", "Output format: table, lines, json, markdown")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title for the markdown summary (default: suite name)")
	cmd.Flags().BoolVar(&opts.save, "save", true, "Save the run to history")
	cmd.Flags().BoolVar(&opts.compare, "compare", false, "Compare with the previous run of the same suite")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Regression threshold in percent (default from config)")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show a live progress view")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Cells to run at once (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Data generation seed (default from config)")
	cmd.Flags().BoolVar(&opts.notify, "notify", true, "Send notifications when configured")
	return cmd
}

func runSuite(cmd *cobra.Command, suiteName string, opts *runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	cfg := config.Harness()
	if cmd.Flags().Changed("parallel") {
		cfg.Parallelism = opts.parallel
	}
	seed := config.Seed()
	if cmd.Flags().Changed("seed") {
		seed = opts.seed
	}
	threshold := viper.GetFloat64(config.KeyCompareThresh)
	if cmd.Flags().Changed("threshold") {
		threshold = opts.threshold
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	sel, err := matrix.ParseSelector(opts.filter)
	if err != nil {
		return err
	}
	m, err := workload.Build(suiteName, seed)
	if err != nil {
		return err
	}
	cells, _, err := benchmark.Plan(m, sel)
	if err != nil {
		return err
	}
	if len(cells) == 0 {
		return fmt.Errorf("filter %q selects no cells of %s", opts.filter, suiteName)
	}

	if opts.tui {
		// The progress view owns the terminal; keep logs out of it.
		var closer func() error
		logger, closer = telemetry.InitLogger(io.Discard, logOptions())
		defer closer()
	}

	engineOpts := []benchmark.Option{benchmark.WithLogger(logger), benchmark.WithScope(suiteName)}
	var mx *metrics.Metrics
	if viper.GetBool(config.KeyMetricsEnabled) || viper.GetString(config.KeyPushgateway) != "" {
		mx = metrics.NewMetrics()
	}
	if mx != nil && viper.GetBool(config.KeyMetricsEnabled) {
		srv, err := telemetry.StartMetricsServer(fmt.Sprintf(":%d", viper.GetInt(config.KeyMetricsPort)), mx.Registry)
		if err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}
	}

	run := benchmark.Run{
		ID:        newRunID(),
		Suite:     suiteName,
		Timestamp: now(),
		Seed:      seed,
		Config:    cfg,
		Host:      hostInfoFunc(ctx),
	}
	if commit, err := gitCommit(); err == nil {
		run.Commit = commit
	}
	logger = telemetry.ForRun(logger, run.ID, suiteName)
	engineOpts[0] = benchmark.WithLogger(logger)
	logger.Info("starting run", "cells", len(cells), "seed", seed, "parallelism", cfg.Parallelism)

	title := opts.title
	if title == "" {
		title = suiteName
	}
	out := cmd.OutOrStdout()

	var rep *report.Report
	switch {
	case opts.tui:
		results, err := ui.RunWithProgress(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), title, len(cells),
			func(ctx context.Context, obs benchmark.Observer) ([]benchmark.Result, error) {
				runOpts := append(slices.Clone(engineOpts), benchmark.WithObserver(obs))
				if mx != nil {
					runOpts = append(runOpts, benchmark.WithObserver(mx.Observer(suiteName)))
				}
				engine, err := benchmark.NewEngine(cfg, runOpts...)
				if err != nil {
					return nil, err
				}
				return engine.Run(ctx, m, sel)
			})
		if err != nil {
			return err
		}
		rep = report.FromResults(axisNames(m), results)

	case cfg.Parallelism > 1:
		if mx != nil {
			engineOpts = append(engineOpts, benchmark.WithObserver(mx.Observer(suiteName)))
		}
		engine, err := benchmark.NewEngine(cfg, engineOpts...)
		if err != nil {
			return err
		}
		results, err := engine.Run(ctx, m, sel)
		if err != nil {
			return err
		}
		rep = report.FromResults(axisNames(m), results)

	default:
		engine, err := benchmark.NewEngine(cfg, engineOpts...)
		if err != nil {
			return err
		}
		rep, err = report.New(engine, m, sel)
		if err != nil {
			return err
		}
		if mx != nil {
			rep.Observe(mx.Observer(suiteName))
		}
	}

	// Sequential reports run each cell as its record is rendered.
	if err := render(ctx, out, format, rep, title); err != nil {
		return err
	}
	run.Axes = rep.Axes()
	run.Results = rep.Results(ctx)

	var comps []benchmark.Comparison
	if opts.save || opts.compare {
		err := openStore(func(store benchmark.Store) error {
			if opts.compare {
				prev, err := previousRun(store, suiteName)
				if err != nil {
					return err
				}
				if prev == nil {
					fmt.Fprintln(out, "\nNo previous run to compare with.")
				} else {
					comps = benchmark.Compare(*prev, run, threshold)
					fmt.Fprintf(out, "\nCompared with run %s (%s):\n", shortID(prev.ID), prev.Timestamp.Format(time.RFC3339))
					printComparison(out, comps)
				}
			}
			if opts.save {
				if err := store.Save(run); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Run %s saved\n", run.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if mx != nil {
		if url := viper.GetString(config.KeyPushgateway); url != "" {
			if err := mx.Push(ctx, url, "microbench", run.ID); err != nil {
				logger.Warn("failed to push metrics", "error", err)
			}
		}
	}

	if opts.notify {
		notifier, err := newNotifierFunc(logger)
		if err != nil {
			logger.Warn("notifications disabled", "error", err)
		} else if err := notifier.NotifyRun(ctx, run, comps); err != nil {
			logger.Warn("failed to send notification", "error", err)
		}
	}

	summary := benchmark.Summarize(run.Results)
	logger.Info("run complete", "ok", summary.OK, "unstable", summary.Unstable,
		"aborted", summary.Aborted, "calibration_timeouts", summary.TimedOut, "canceled", summary.Canceled)
	if summary.Aborted > 0 {
		return fmt.Errorf("%d of %d cells aborted", summary.Aborted, summary.Total)
	}
	return nil
}

// previousRun finds the most recent stored run of suite.
func previousRun(store benchmark.Store, suite string) (*benchmark.Run, error) {
	runs, err := store.LoadAll()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Suite == suite {
			return &runs[i], nil
		}
	}
	return nil, nil
}

func axisNames(m *matrix.Matrix) []string {
	var names []string
	for _, a := range m.Axes() {
		names = append(names, a.Name)
	}
	return names
}
