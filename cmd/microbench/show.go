package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"microbench/internal/benchmark"
	"microbench/internal/report"
)

func newShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Render a stored run (default: the latest)",
		Long: `Renders a stored run in any output format. The markdown summary groups
cells by every axis but the last and marks the fastest entry of each row;
on a terminal it is rendered rather than printed as source.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			return openStore(func(store benchmark.Store) error {
				run, err := loadRun(store, args)
				if err != nil {
					return err
				}
				return showRun(cmd.OutOrStdout(), f, run)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table, lines, json, markdown")
	return cmd
}

func loadRun(store benchmark.Store, args []string) (*benchmark.Run, error) {
	if len(args) == 1 {
		return store.Load(args[0])
	}
	run, err := store.LoadLatest()
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: history is empty", benchmark.ErrRunNotFound)
	}
	return run, nil
}

func showRun(out io.Writer, f report.Format, run *benchmark.Run) error {
	rep := report.FromResults(run.Axes, run.Results)
	title := fmt.Sprintf("%s (%s)", run.Suite, shortID(run.ID))

	switch f {
	case report.FormatJSON:
		return render(context.Background(), out, f, rep, title)
	case report.FormatMarkdown:
		if !isTerminalFunc(out) {
			return render(context.Background(), out, f, rep, title)
		}
		var md bytes.Buffer
		if err := render(context.Background(), &md, f, rep, title); err != nil {
			return err
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(120),
		)
		if err != nil {
			return err
		}
		rendered, err := renderer.Render(md.String())
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, rendered)
		return err
	}

	fmt.Fprintf(out, "Run:    %s\n", run.ID)
	fmt.Fprintf(out, "Suite:  %s (seed %d)\n", run.Suite, run.Seed)
	fmt.Fprintf(out, "Time:   %s\n", run.Timestamp.Format("2006-01-02 15:04:05"))
	if run.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", run.Commit)
	}
	if run.Host.CPUModel != "" {
		fmt.Fprintf(out, "Host:   %s, %s, %d cores\n", run.Host.Hostname, run.Host.CPUModel, run.Host.LogicalCores)
	}
	fmt.Fprintln(out)
	return render(context.Background(), out, f, rep, title)
}
