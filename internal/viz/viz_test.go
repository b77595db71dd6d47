package viz

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/qctrl/internal/analysis"
	"github.com/san-kum/qctrl/internal/optim"
)

func TestRenderReport(t *testing.T) {
	r := &optim.Result{
		State:         optim.IterExceeded,
		Reason:        "iteration limit 10 reached",
		InitialFidErr: 0.5,
		FinalFidErr:   0.01,
		Iterations:    10,
		WallTime:      1234 * time.Millisecond,
		FinalAmps:     [][]float64{{1, 2}, {3, 4}, {5, 6}},
	}

	out := RenderReport("pi_pulse", r, false)
	for _, want := range []string{"PI_PULSE", "ITER_EXCEEDED", "iteration limit 10 reached", "1.000000e-02", "3 × 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "optimisation stats") {
		t.Error("stats table should be omitted")
	}

	if out := RenderReport("pi_pulse", r, true); !strings.Contains(out, "optimisation stats") {
		t.Error("stats table missing")
	}
}

func TestPlotAmplitudes(t *testing.T) {
	if PlotAmplitudes(nil, "x") != "" {
		t.Error("empty table should render nothing")
	}

	amps := [][]float64{{0, 1}, {1, 0}, {0.5, -1}, {-1, 0.25}}
	out := PlotAmplitudes(amps, "final amplitudes")
	if !strings.Contains(out, "final amplitudes") {
		t.Errorf("caption missing:\n%s", out)
	}
	if !strings.Contains(out, "ctrl 1") {
		t.Errorf("legend missing:\n%s", out)
	}
}

func TestPlotHistory(t *testing.T) {
	if PlotHistory([]float64{0.1}) != "" {
		t.Error("a single point should not plot")
	}
	out := PlotHistory([]float64{1, 0.1, 0, 0.01, 0.001})
	if !strings.Contains(out, "log10") {
		t.Errorf("caption missing:\n%s", out)
	}
}

func TestPlotSpectrum(t *testing.T) {
	spec, err := analysis.PowerSpectrum([]float64{0, 1, 0, -1, 0, 1, 0, -1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out := PlotSpectrum(spec, "ctrl 0"); !strings.Contains(out, "ctrl 0") {
		t.Errorf("caption missing:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("empty sparkline %q", got)
	}
	out := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 3)
	if !strings.Contains(out, "█") {
		t.Errorf("expected the maximum glyph in %q", out)
	}
}

func TestThemes(t *testing.T) {
	defer SetTheme(CurrentTheme.Name)

	if GetTheme("nope").Name != ThemeBloch.Name {
		t.Error("unknown theme should fall back to bloch")
	}
	SetTheme("minimal")
	nextTheme()
	if CurrentTheme.Name != "bloch" {
		t.Errorf("cycling from the last theme should wrap, got %s", CurrentTheme.Name)
	}
	if colors := ThemeMinimal.seriesColors(3); len(colors) != 3 {
		t.Errorf("expected 3 series colors, got %d", len(colors))
	}
}

func TestWatchModel(t *testing.T) {
	opts := optim.DefaultOptions()
	opts.MaxIter = 100
	m := NewWatchModel("hadamard", opts)

	next, cmd := m.Update(ProgressMsg{Iteration: 5, FidErr: 0.2, Elapsed: time.Second, Evaluations: 9})
	if cmd != nil {
		t.Error("progress should not schedule a command")
	}
	m = next.(WatchModel)
	if len(m.History()) != 1 || m.History()[0] != 0.2 {
		t.Errorf("history %v", m.History())
	}
	if view := m.View(); !strings.Contains(view, "5/100") {
		t.Errorf("view missing iteration count:\n%s", view)
	}

	res := &optim.Result{State: optim.Converged}
	next, cmd = m.Update(DoneMsg{Result: res})
	m = next.(WatchModel)
	if cmd == nil {
		t.Fatal("done should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if got, err := m.Result(); got != res || err != nil {
		t.Errorf("result not kept: %v %v", got, err)
	}
	if m.Quit() {
		t.Error("a finished run is not an early quit")
	}
	if !strings.Contains(m.View(), "CONVERGED") {
		t.Error("view should show the final state")
	}
}

func TestWatchModelEarlyQuit(t *testing.T) {
	m := NewWatchModel("x", optim.DefaultOptions())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if !next.(WatchModel).Quit() {
		t.Error("expected early quit")
	}

	next, _ = m.Update(DoneMsg{Err: errors.New("boom")})
	if _, err := next.(WatchModel).Result(); err == nil {
		t.Error("error not kept")
	}
}

type fakeSender struct{ msgs []tea.Msg }

func (f *fakeSender) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestProgressSender(t *testing.T) {
	to := &fakeSender{}
	p := NewProgressSender(to, time.Hour)

	p.OnIteration(optim.Progress{Iteration: 1})
	p.OnIteration(optim.Progress{Iteration: 2})
	p.OnIteration(optim.Progress{Iteration: 3})
	if len(to.msgs) != 1 {
		t.Fatalf("expected 1 message inside the interval, got %d", len(to.msgs))
	}

	p.Flush()
	if len(to.msgs) != 2 {
		t.Fatalf("flush should send the pending progress, got %d", len(to.msgs))
	}
	if got := to.msgs[1].(ProgressMsg).Iteration; got != 3 {
		t.Errorf("expected the latest iteration 3, got %d", got)
	}

	p.Flush()
	if len(to.msgs) != 2 {
		t.Error("nothing pending, flush should not send")
	}
}
