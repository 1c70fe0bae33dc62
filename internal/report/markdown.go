package report

import (
	"fmt"
	"io"
	"strings"

	"microbench/internal/benchmark"
)

type group struct {
	name  string
	cells map[string]benchmark.Result
}

// WriteMarkdown writes a summary table per matrix. Rows group cells by
// every axis but the last; columns are the values of the last axis. Each
// entry shows the clean mean and its ratio to the fastest entry in the
// row, which is printed in bold. Unstable entries carry a warning mark
// and failed cells show N/A.
func WriteMarkdown(w io.Writer, title string, axes []string, results []benchmark.Result) error {
	if title == "" {
		title = "Benchmark summary"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	if len(results) == 0 {
		b.WriteString("No results.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	groups, columns := groupResults(results)

	rowHeader := "Benchmark"
	if len(axes) > 1 {
		rowHeader = strings.Join(axes[:len(axes)-1], " / ")
	}
	b.WriteString("| " + rowHeader + " |")
	for _, c := range columns {
		b.WriteString(" " + c + " |")
	}
	b.WriteString("\n|---|")
	for range columns {
		b.WriteString("---:|")
	}
	b.WriteString("\n")

	for _, g := range groups {
		fastest := 0.0
		for _, r := range g.cells {
			if r.Stats != nil && (fastest == 0 || r.NsPerOp() < fastest) {
				fastest = r.NsPerOp()
			}
		}
		b.WriteString("| " + g.name + " |")
		for _, c := range columns {
			r, ok := g.cells[c]
			b.WriteString(" " + markdownEntry(r, ok, fastest) + " |")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nBold marks the fastest entry of each row; ⚠ marks unstable measurements.\n")
	if failed := failures(results); len(failed) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "- `%s`: %s %s\n", r.Name, StatusLabel(r), r.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// groupResults keeps first-appearance order for both rows and columns.
func groupResults(results []benchmark.Result) ([]*group, []string) {
	var groups []*group
	byName := make(map[string]*group)
	var columns []string
	seen := make(map[string]bool)

	for _, r := range results {
		name, column := splitLast(r)
		g, ok := byName[name]
		if !ok {
			g = &group{name: name, cells: make(map[string]benchmark.Result)}
			byName[name] = g
			groups = append(groups, g)
		}
		g.cells[column] = r
		if !seen[column] {
			seen[column] = true
			columns = append(columns, column)
		}
	}
	return groups, columns
}

func splitLast(r benchmark.Result) (string, string) {
	values := r.Values
	if len(values) == 0 {
		values = strings.Split(r.Name, "/")
	}
	if len(values) == 1 {
		return values[0], "Time"
	}
	return strings.Join(values[:len(values)-1], "/"), values[len(values)-1]
}

func markdownEntry(r benchmark.Result, ok bool, fastest float64) string {
	if !ok {
		return ""
	}
	if r.Stats == nil {
		return "N/A"
	}
	ns := r.NsPerOp()
	entry := FormatNs(ns)
	if ns == fastest {
		entry = "**" + entry + "**"
	} else if fastest > 0 {
		entry = fmt.Sprintf("%s (%.2f×)", entry, ns/fastest)
	}
	if !r.Stable {
		entry += " ⚠"
	}
	return entry
}

func failures(results []benchmark.Result) []benchmark.Result {
	var out []benchmark.Result
	for _, r := range results {
		if r.Status != benchmark.StatusOK {
			out = append(out, r)
		}
	}
	return out
}
