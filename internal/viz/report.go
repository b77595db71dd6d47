package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/qctrl/internal/optim"
)

func row(name, val string) string {
	return label().Render(name) + value().Render(val)
}

// RenderReport summarises a finished run. The stats table is appended
// when withStats is set.
func RenderReport(name string, r *optim.Result, withStats bool) string {
	var s strings.Builder
	s.WriteString(title().Render(strings.ToUpper(name)) + "\n\n")
	s.WriteString(label().Render("State") + StateStyle(r.State).Render(r.State.String()) + "\n")
	s.WriteString(row("Reason", r.Reason) + "\n")
	s.WriteString(row("Initial error", fmt.Sprintf("%.6e", r.InitialFidErr)) + "\n")
	s.WriteString(row("Final error", fmt.Sprintf("%.6e", r.FinalFidErr)) + "\n")
	s.WriteString(row("Iterations", fmt.Sprintf("%d", r.Iterations)) + "\n")
	s.WriteString(row("Wall time", r.WallTime.Round(time.Millisecond).String()) + "\n")
	if len(r.FinalAmps) > 0 {
		s.WriteString(row("Slots × ctrls", fmt.Sprintf("%d × %d", len(r.FinalAmps), len(r.FinalAmps[0]))) + "\n")
	}

	out := panel().Render(strings.TrimRight(s.String(), "\n"))
	if withStats {
		stats := lipgloss.NewStyle().Foreground(CurrentTheme.Muted).Render(r.Stats.Report())
		out += "\n" + stats
	}
	return out
}
