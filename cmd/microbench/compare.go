package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"microbench/internal/benchmark"
	"microbench/internal/config"
	"microbench/internal/report"
)

func newCompareCmd() *cobra.Command {
	var (
		threshold float64
		failOnReg bool
	)
	cmd := &cobra.Command{
		Use:   "compare [base-run] [target-run]",
		Short: "Compare two stored runs",
		Long: `Compares per-cell ns/op between two stored runs. With no arguments the
latest run is compared with the previous run of the same suite; with one
argument the latest run is compared with it. Run ids may be abbreviated.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = viper.GetFloat64(config.KeyCompareThresh)
			}
			return openStore(func(store benchmark.Store) error {
				base, target, err := resolvePair(store, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Base:   %s %s %s\n", shortID(base.ID), base.Suite, base.Timestamp.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "Target: %s %s %s\n", shortID(target.ID), target.Suite, target.Timestamp.Format("2006-01-02 15:04:05"))
				if !base.Host.Same(target.Host) {
					fmt.Fprintln(out, "Warning: runs were recorded on different hosts")
				}
				fmt.Fprintln(out)

				comps := benchmark.Compare(*base, *target, threshold)
				printComparison(out, comps)

				if n := benchmark.Regressions(comps); n > 0 && failOnReg {
					return fmt.Errorf("%d regressions above %.2f%%", n, threshold)
				}
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 5.0, "Percentage threshold for regressions")
	cmd.Flags().BoolVar(&failOnReg, "fail-on-regression", false, "Exit non-zero when a stable cell regressed")
	return cmd
}

func resolvePair(store benchmark.Store, args []string) (*benchmark.Run, *benchmark.Run, error) {
	switch len(args) {
	case 2:
		base, err := store.Load(args[0])
		if err != nil {
			return nil, nil, err
		}
		target, err := store.Load(args[1])
		if err != nil {
			return nil, nil, err
		}
		return base, target, nil
	case 1:
		base, err := store.Load(args[0])
		if err != nil {
			return nil, nil, err
		}
		target, err := store.LoadLatest()
		if err != nil {
			return nil, nil, err
		}
		if target == nil {
			return nil, nil, benchmark.ErrRunNotFound
		}
		return base, target, nil
	}

	runs, err := store.LoadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no runs in history")
	}
	target := &runs[len(runs)-1]
	for i := len(runs) - 2; i >= 0; i-- {
		if runs[i].Suite == target.Suite {
			return &runs[i], target, nil
		}
	}
	return nil, nil, fmt.Errorf("only one run of %s in history", target.Suite)
}

func printComparison(w io.Writer, comps []benchmark.Comparison) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CELL\tBASE\tCURRENT\tDIFF %\tSTATUS")
	for _, c := range comps {
		base := "-"
		if c.Prev != nil && c.Prev.Stats != nil {
			base = report.FormatNs(c.Prev.NsPerOp())
		}
		curr := "-"
		if c.Curr.Stats != nil {
			curr = report.FormatNs(c.Curr.NsPerOp())
		}
		diff := "-"
		if c.Verdict != benchmark.VerdictNew && c.Verdict != benchmark.VerdictNoData {
			diff = fmt.Sprintf("%+.2f%%", c.NsPerOpDiff)
		}
		verdict := string(c.Verdict)
		if c.Noisy {
			verdict += " (noisy)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, base, curr, diff, verdict)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d regressions\n", benchmark.Regressions(comps))
}
