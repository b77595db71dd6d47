package stats

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Report renders the snapshot as an aligned plain-text table.
func (s Stats) Report() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "------------------------------------")
	fmt.Fprintln(w, "---- Control optimisation stats ----")
	fmt.Fprintf(w, "wall time\t%v\n", s.WallTime.Round(time.Microsecond))

	total := s.WallTime
	for p := Phase(0); p < numPhases; p++ {
		d := s.Phases[p]
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(d) / float64(total)
		}
		fmt.Fprintf(w, "%s time\t%v\t(%.1f%%)\n", p, d.Round(time.Microsecond), pct)
	}

	fmt.Fprintln(w, "---- counts ----")
	for k := Counter(0); k < numCounters; k++ {
		fmt.Fprintf(w, "%s\t%d\n", strings.ReplaceAll(k.String(), "_", " "), s.Counters[k])
	}
	if n := s.Counters[AmpUpdates]; n > 0 {
		fmt.Fprintf(w, "mean amps changed per update\t%.2f\n", float64(s.Counters[AmpsChanged])/float64(n))
	}
	fmt.Fprintln(w, "------------------------------------")

	w.Flush()
	return sb.String()
}
