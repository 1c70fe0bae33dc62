package ui

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"microbench/internal/benchmark"
	"microbench/internal/report"
)

const recentResults = 6

// CellStartedMsg is sent when the engine begins a cell.
type CellStartedMsg struct {
	Name         string
	Index, Total int
}

// CellFinishedMsg carries a finished cell's result.
type CellFinishedMsg struct {
	Result       benchmark.Result
	Index, Total int
}

// RunDoneMsg ends the progress view.
type RunDoneMsg struct{}

// ProgressModel shows matrix execution progress.
type ProgressModel struct {
	Title       string
	Total       int
	Done        int
	Running     []string
	Recent      []benchmark.Result
	Summary     benchmark.Summary
	Finished    bool
	Interrupted bool

	progress progress.Model
	spinner  spinner.Model
	width    int
}

func NewProgressModel(title string, total int) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return ProgressModel{
		Title:    title,
		Total:    total,
		progress: progress.New(progress.WithDefaultGradient()),
		spinner:  s,
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Interrupted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-4, 10), 80)

	case CellStartedMsg:
		m.Total = msg.Total
		m.Running = append(m.Running, msg.Name)

	case CellFinishedMsg:
		m.Total = msg.Total
		m.Done++
		if i := slices.Index(m.Running, msg.Result.Name); i >= 0 {
			m.Running = slices.Delete(m.Running, i, i+1)
		}
		m.Recent = append(m.Recent, msg.Result)
		if len(m.Recent) > recentResults {
			m.Recent = m.Recent[len(m.Recent)-recentResults:]
		}
		m.Summary = addToSummary(m.Summary, msg.Result)

	case RunDoneMsg:
		m.Finished = true
		m.Running = nil
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.Title) + "\n\n")

	percent := 0.0
	if m.Total > 0 {
		percent = float64(m.Done) / float64(m.Total)
	}
	fmt.Fprintf(&b, "%s %d/%d cells\n\n", m.progress.ViewAs(percent), m.Done, m.Total)

	for _, name := range m.Running {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), runningStyle.Render(name))
	}
	for _, r := range m.Recent {
		b.WriteString(resultStyle(r).Render(report.Line(r)) + "\n")
	}

	s := m.Summary
	fmt.Fprintf(&b, "\n%s  %s  %s",
		okStyle.Render(fmt.Sprintf("%d ok", s.OK-s.Unstable)),
		warnStyle.Render(fmt.Sprintf("%d unstable", s.Unstable)),
		errorStyle.Render(fmt.Sprintf("%d failed", s.Aborted+s.TimedOut)))

	if !m.Finished {
		b.WriteString(helpStyle.Render("\n(q to stop after the current batch)"))
	}
	return b.String() + "\n"
}

func resultStyle(r benchmark.Result) lipgloss.Style {
	switch {
	case r.Status == benchmark.StatusOK && r.Stable:
		return okStyle
	case r.Status == benchmark.StatusOK, r.Status == benchmark.StatusCanceled:
		return warnStyle
	default:
		return errorStyle
	}
}

func addToSummary(s benchmark.Summary, r benchmark.Result) benchmark.Summary {
	one := benchmark.Summarize([]benchmark.Result{r})
	s.Total += one.Total
	s.OK += one.OK
	s.Unstable += one.Unstable
	s.Aborted += one.Aborted
	s.TimedOut += one.TimedOut
	s.Canceled += one.Canceled
	return s
}

// sender is the part of *tea.Program the observer needs.
type sender interface {
	Send(msg tea.Msg)
}

// ProgressObserver forwards engine events to a running program.
type ProgressObserver struct {
	program sender
}

func (o *ProgressObserver) CellStarted(cell string, index, total int) {
	o.program.Send(CellStartedMsg{Name: cell, Index: index, Total: total})
}

func (o *ProgressObserver) CellFinished(r benchmark.Result, index, total int) {
	o.program.Send(CellFinishedMsg{Result: r, Index: index, Total: total})
}

// RunFunc executes a matrix, reporting progress to obs.
type RunFunc func(ctx context.Context, obs benchmark.Observer) ([]benchmark.Result, error)

// RunWithProgress renders a progress view on out while run executes.
// Quitting the view cancels ctx for run, which stops at the next batch
// boundary; the partial results are still returned.
func RunWithProgress(ctx context.Context, in io.Reader, out io.Writer, title string, total int, run RunFunc) ([]benchmark.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title, total), tea.WithInput(in), tea.WithOutput(out))

	var (
		results []benchmark.Result
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, runErr = run(ctx, &ProgressObserver{program: p})
		p.Send(RunDoneMsg{})
	}()

	_, err := p.Run()
	cancel()
	<-done
	if runErr != nil {
		return results, runErr
	}
	if err != nil {
		return results, fmt.Errorf("progress view: %w", err)
	}
	return results, nil
}
