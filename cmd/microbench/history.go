package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"microbench/internal/benchmark"
	"microbench/internal/report"
)

func newHistoryCmd() *cobra.Command {
	var (
		suite string
		cell  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, or one cell across runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return openStore(func(store benchmark.Store) error {
				if cell != "" {
					return cellHistory(cmd, store, cell)
				}

				runs, err := store.LoadAll()
				if err != nil {
					return err
				}
				if suite != "" {
					var filtered []benchmark.Run
					for _, r := range runs {
						if r.Suite == suite {
							filtered = append(filtered, r)
						}
					}
					runs = filtered
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
					return nil
				}
				if limit > 0 && len(runs) > limit {
					runs = runs[len(runs)-limit:]
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTIME\tSUITE\tCOMMIT\tCELLS\tOK\tUNSTABLE\tABORTED")
				for i := len(runs) - 1; i >= 0; i-- {
					r := runs[i]
					s := benchmark.Summarize(r.Results)
					commit := r.Commit
					if commit == "" {
						commit = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
						shortID(r.ID), r.Timestamp.Format("2006-01-02 15:04"), r.Suite, commit,
						s.Total, s.OK, s.Unstable, s.Aborted)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&suite, "suite", "s", "", "Only show runs of this suite")
	cmd.Flags().StringVarP(&cell, "cell", "c", "", "Show one cell across runs")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many runs (0 for all)")
	return cmd
}

func cellHistory(cmd *cobra.Command, store benchmark.Store, cell string) error {
	points, err := benchmark.HistoryFor(store, cell)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No results for %s.\n", cell)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTIME\tCOMMIT\tMEAN/OP\tCV\tSTATUS")
	for _, p := range points {
		mean, cv := "-", "-"
		if p.Result.Stats != nil {
			mean = report.FormatNs(p.Result.NsPerOp())
			cv = report.FormatPercent(p.Result.Stats.CV)
		}
		commit := p.Commit
		if commit == "" {
			commit = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(p.RunID), p.Timestamp.Format("2006-01-02 15:04"), commit, mean, cv, report.StatusLabel(p.Result))
	}
	return w.Flush()
}
