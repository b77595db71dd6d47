package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/qctrl/internal/optim"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().Bold(true)

	labelStyle = lipgloss.NewStyle().Width(16)

	valueStyle = lipgloss.NewStyle().Bold(true)

	hintStyle = lipgloss.NewStyle().Italic(true).MarginTop(1)
)

// The helpers below read CurrentTheme at render time.
func panel() lipgloss.Style {
	return panelStyle.BorderForeground(CurrentTheme.Muted)
}

func title() lipgloss.Style {
	return titleStyle.Foreground(CurrentTheme.Primary)
}

func label() lipgloss.Style {
	return labelStyle.Foreground(CurrentTheme.Muted)
}

func value() lipgloss.Style {
	return valueStyle.Foreground(CurrentTheme.Text)
}

func hint() lipgloss.Style {
	return hintStyle.Foreground(CurrentTheme.Muted)
}

// StateStyle colors a terminal state: green when converged, amber when a
// budget ran out, red on failure.
func StateStyle(s optim.State) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case optim.Converged:
		return st.Foreground(CurrentTheme.Success)
	case optim.IterExceeded, optim.TimeExceeded:
		return st.Foreground(CurrentTheme.Warning)
	case optim.Failed:
		return st.Foreground(CurrentTheme.Error)
	}
	return st.Foreground(CurrentTheme.Accent)
}

// ProgressBar renders a fraction in [0, 1] as a bar of the given width.
func ProgressBar(frac float64, width int) string {
	filled := int(frac * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(bar)
}

// Sparkline renders the last width values with block glyphs, low to high.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		idx = min(max(idx, 0), len(chars)-1)
		sb.WriteRune(chars[idx])
	}
	return lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Render(sb.String())
}

func AnimatedSpinner(frame int) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%len(spinners)]
}
