package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"microbench/internal/benchmark"
)

var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	unstableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
)

// IsTerminal reports whether w is a terminal that accepts colour.
// NO_COLOR and CLICOLOR=0 turn colour off.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return !termenv.EnvNoColor()
}

// StatusLabel is the short outcome text shown for a result.
func StatusLabel(r benchmark.Result) string {
	switch r.Status {
	case benchmark.StatusOK:
		if !r.Stable {
			return "UNSTABLE"
		}
		return "ok"
	case benchmark.StatusAborted:
		return "ABORTED"
	case benchmark.StatusCalibrationTimeout:
		return "CALIBRATION_TIMEOUT"
	case benchmark.StatusCanceled:
		return "CANCELED"
	}
	return string(r.Status)
}

func styledStatus(r benchmark.Result) string {
	label := StatusLabel(r)
	switch {
	case r.Status == benchmark.StatusOK && r.Stable:
		return okStyle.Render(label)
	case r.Status == benchmark.StatusOK:
		return unstableStyle.Render(label)
	case r.Status == benchmark.StatusAborted:
		return failedStyle.Render(label)
	default:
		return mutedStyle.Render(label)
	}
}
