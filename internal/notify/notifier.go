package notify

import (
	"context"
	"fmt"
	"strings"

	"microbench/internal/benchmark"
	"microbench/internal/report"
)

// Notifier publishes the outcome of a run.
type Notifier interface {
	NotifyRun(ctx context.Context, run benchmark.Run, comps []benchmark.Comparison) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) NotifyRun(context.Context, benchmark.Run, []benchmark.Comparison) error { return nil }

// HasIssues reports whether a run is worth interrupting someone for:
// aborted or unmeasurable cells, instability, or regressions.
func HasIssues(run benchmark.Run, comps []benchmark.Comparison) bool {
	s := benchmark.Summarize(run.Results)
	return s.Aborted > 0 || s.TimedOut > 0 || s.Unstable > 0 || benchmark.Regressions(comps) > 0
}

// Headline is the one-line summary posted for a run.
func Headline(run benchmark.Run, comps []benchmark.Comparison) string {
	s := benchmark.Summarize(run.Results)
	icon := ":white_check_mark:"
	if s.Aborted > 0 || benchmark.Regressions(comps) > 0 {
		icon = ":x:"
	} else if HasIssues(run, comps) {
		icon = ":warning:"
	}

	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	line := fmt.Sprintf("%s *%s* run `%s`: %d cells, %d ok, %d unstable, %d aborted",
		icon, run.Suite, id, s.Total, s.OK, s.Unstable, s.Aborted)
	if s.TimedOut > 0 {
		line += fmt.Sprintf(", %d calibration timeouts", s.TimedOut)
	}
	if s.Canceled > 0 {
		line += fmt.Sprintf(", %d canceled", s.Canceled)
	}
	if comps != nil {
		line += fmt.Sprintf(", %d regressions", benchmark.Regressions(comps))
	}
	if run.Commit != "" {
		line += fmt.Sprintf(" (commit %s)", run.Commit)
	}
	return line
}

// Details lists the cells behind the headline, one per line. It is empty
// when there is nothing to report.
func Details(run benchmark.Run, comps []benchmark.Comparison) string {
	var b strings.Builder
	for _, r := range run.Results {
		switch {
		case r.Status == benchmark.StatusOK && r.Stable:
		case r.Status == benchmark.StatusOK:
			fmt.Fprintf(&b, "• `%s` UNSTABLE %s\n", r.Name, r.Warning.String())
		case r.Status == benchmark.StatusCanceled:
		default:
			fmt.Fprintf(&b, "• `%s` %s: %s\n", r.Name, report.StatusLabel(r), r.Error)
		}
	}
	for _, c := range comps {
		if c.Verdict == benchmark.VerdictRegression && !c.Noisy {
			fmt.Fprintf(&b, "• regression %s\n", c.String())
		}
	}
	return b.String()
}
