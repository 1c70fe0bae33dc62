package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"text/tabwriter"

	"microbench/internal/benchmark"
)

// Format names an output rendering.
type Format string

const (
	FormatTable    Format = "table"
	FormatLines    Format = "lines"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatTable, FormatLines, FormatJSON, FormatMarkdown}

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of table, lines, json, markdown)", s)
}

// Options tune rendering.
type Options struct {
	// Styled enables terminal colour.
	Styled bool
	// Title heads the markdown summary.
	Title string
	// Axes names the matrix axes, used by the markdown summary.
	Axes []string
}

// Write renders records in format f.
func Write(w io.Writer, f Format, records iter.Seq[benchmark.Result], opts Options) error {
	switch f {
	case FormatTable:
		return WriteTable(w, records, opts.Styled)
	case FormatLines:
		return WriteLines(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatMarkdown:
		return WriteMarkdown(w, opts.Title, opts.Axes, collect(records))
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// WriteTable renders an aligned table. tabwriter counts colour codes as
// width, so the status column is last and the header is styled only after
// alignment.
func WriteTable(w io.Writer, records iter.Seq[benchmark.Result], styled bool) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CELL\tITER\tMEAN/OP\tMEDIAN\tMIN\tMAX\tCV\tSTATUS")

	for r := range records {
		status := StatusLabel(r)
		if styled {
			status = styledStatus(r)
		}
		if r.Stats == nil || r.Calibration == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s\n", r.Name, status)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			r.Calibration.Iterations,
			FormatNs(r.NsPerOp()),
			FormatNs(r.Stats.Median),
			FormatNs(r.Stats.Min),
			FormatNs(r.Stats.Max),
			FormatPercent(r.Stats.CV),
			status,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	out := buf.String()
	if styled {
		header, rest, _ := strings.Cut(out, "\n")
		out = headerStyle.Render(header) + "\n" + rest
	}
	_, err := io.WriteString(w, out)
	return err
}

// WriteLines writes one self-contained line per record as it arrives.
func WriteLines(w io.Writer, records iter.Seq[benchmark.Result]) error {
	for r := range records {
		if _, err := fmt.Fprintln(w, Line(r)); err != nil {
			return err
		}
	}
	return nil
}

// Line renders one record.
func Line(r benchmark.Result) string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Stats != nil {
		fmt.Fprintf(&b, " %s/op cv=%s", FormatNs(r.NsPerOp()), FormatPercent(r.Stats.CV))
		if r.Calibration != nil {
			fmt.Fprintf(&b, " n=%d", r.Calibration.Iterations)
		}
		if r.Stats.Rejected > 0 {
			fmt.Fprintf(&b, " rejected=%d", r.Stats.Rejected)
		}
	}
	switch {
	case r.Warning != nil:
		b.WriteString(" " + r.Warning.String())
	case r.Status != benchmark.StatusOK:
		fmt.Fprintf(&b, " %s: %s", StatusLabel(r), r.Error)
	}
	return b.String()
}

// WriteJSON writes the records as an indented JSON array.
func WriteJSON(w io.Writer, records iter.Seq[benchmark.Result]) error {
	results := collect(records)
	if results == nil {
		results = []benchmark.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func collect(records iter.Seq[benchmark.Result]) []benchmark.Result {
	var out []benchmark.Result
	for r := range records {
		out = append(out, r)
	}
	return out
}
