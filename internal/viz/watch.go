package viz

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/qctrl/internal/optim"
)

const historyCapacity = 600

type (
	TickMsg     time.Time
	ProgressMsg optim.Progress
	DoneMsg     struct {
		Result *optim.Result
		Err    error
	}
)

// WatchModel shows a running optimisation: error history, iteration
// budget and elapsed time. It quits on its own once a DoneMsg arrives.
type WatchModel struct {
	name     string
	maxIter  int
	maxWall  time.Duration
	target   float64
	last     optim.Progress
	history  []float64
	frame    int
	result   *optim.Result
	err      error
	done     bool
	quitting bool
}

func NewWatchModel(name string, opts optim.Options) WatchModel {
	return WatchModel{
		name:    name,
		maxIter: opts.MaxIter,
		maxWall: opts.MaxWallTime,
		target:  opts.FidErrTarg,
		history: make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m WatchModel) Init() tea.Cmd {
	return tick()
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "t":
			nextTheme()
		}
	case ProgressMsg:
		m.last = optim.Progress(msg)
		m.history = append(m.history, msg.FidErr)
		if len(m.history) > historyCapacity {
			m.history = m.history[1:]
		}
	case DoneMsg:
		m.result, m.err, m.done = msg.Result, msg.Err, true
		return m, tea.Quit
	case TickMsg:
		m.frame++
		return m, tick()
	}
	return m, nil
}

// Result is the outcome delivered by DoneMsg, nil while still running.
func (m WatchModel) Result() (*optim.Result, error) { return m.result, m.err }

// Quit reports whether the user left before the run finished.
func (m WatchModel) Quit() bool { return m.quitting && !m.done }

func (m WatchModel) History() []float64 { return m.history }

func (m WatchModel) View() string {
	var s strings.Builder

	status := AnimatedSpinner(m.frame) + " RUNNING"
	if m.done && m.result != nil {
		status = StateStyle(m.result.State).Render(m.result.State.String())
	}
	s.WriteString(title().Render(strings.ToUpper(m.name)) + "  " + status + "\n\n")

	iterFrac, wallFrac := 0.0, 0.0
	if m.maxIter > 0 {
		iterFrac = float64(m.last.Iteration) / float64(m.maxIter)
	}
	if m.maxWall > 0 {
		wallFrac = float64(m.last.Elapsed) / float64(m.maxWall)
	}
	s.WriteString(label().Render("Iterations") + ProgressBar(iterFrac, 30) +
		value().Render(fmt.Sprintf(" %d/%d", m.last.Iteration, m.maxIter)) + "\n")
	s.WriteString(label().Render("Wall time") + ProgressBar(wallFrac, 30) +
		value().Render(" "+m.last.Elapsed.Round(time.Millisecond).String()) + "\n")
	s.WriteString(row("Fidelity error", fmt.Sprintf("%.6e (target %.1e)", m.last.FidErr, m.target)) + "\n")
	s.WriteString(row("Evaluations", fmt.Sprintf("%d", m.last.Evaluations)) + "\n")
	s.WriteString(row("Restarts", fmt.Sprintf("%d", m.last.Restarts)) + "\n")

	logs := make([]float64, 0, len(m.history))
	for _, e := range m.history {
		if e > 0 && !math.IsInf(e, 0) {
			logs = append(logs, math.Log10(e))
		}
	}
	s.WriteString(label().Render("log10 error") + Sparkline(logs, 40) + "\n")

	if chart := PlotHistory(m.history); chart != "" {
		s.WriteString("\n" + chart + "\n")
	}
	s.WriteString(hint().Render("Q:Leave  T:Theme"))

	return lipgloss.NewStyle().Padding(1, 2).Render(panel().Render(s.String()))
}

// Sender is the part of *tea.Program the progress observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgressSender forwards optimiser progress to a running program, at most
// once per interval. The first iteration is always sent.
type ProgressSender struct {
	mu       sync.Mutex
	to       Sender
	interval time.Duration
	lastSent time.Time
	pending  *optim.Progress
}

var _ optim.Observer = (*ProgressSender)(nil)

func NewProgressSender(to Sender, interval time.Duration) *ProgressSender {
	return &ProgressSender{to: to, interval: interval}
}

func (p *ProgressSender) OnIteration(pr optim.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.interval {
		p.pending = &pr
		return
	}
	p.lastSent = now
	p.pending = nil
	p.to.Send(ProgressMsg(pr))
}

// Flush sends the last throttled progress, if any.
func (p *ProgressSender) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.to.Send(ProgressMsg(*p.pending))
		p.pending = nil
	}
}
