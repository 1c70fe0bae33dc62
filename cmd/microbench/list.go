package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"microbench/internal/config"
	"microbench/internal/matrix"
	"microbench/internal/workload"
)

func newListCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:       "list <suite>",
		Short:     "List the cells of a suite without running them",
		Args:      cobra.ExactArgs(1),
		ValidArgs: workload.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := matrix.ParseSelector(filter)
			if err != nil {
				return err
			}
			m, err := workload.Build(args[0], config.Seed())
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			n := 0
			for cell := range m.Cells() {
				if sel.Matches(cell) {
					fmt.Fprintln(out, cell.Name())
					n++
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d cells (axes: %s)\n", n, m.Size(), strings.Join(axisNames(m), ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Glob per axis, e.g. 'Insert/*/64'")
	return cmd
}

func newSuitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List the built-in suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SUITE\tCELLS\tDESCRIPTION")
			for _, s := range workload.All() {
				cells := "?"
				if m, err := s.Build(config.Seed()); err == nil {
					cells = fmt.Sprint(m.Size())
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, cells, s.Description)
			}
			return w.Flush()
		},
	}
}
