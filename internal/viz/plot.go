package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/qctrl/internal/analysis"
)

const (
	plotWidth  = 80
	plotHeight = 12
)

// PlotAmplitudes draws each control column of an n_ts × n_ctrls table as a
// piecewise-constant series.
func PlotAmplitudes(amps [][]float64, caption string) string {
	if len(amps) == 0 || len(amps[0]) == 0 {
		return ""
	}
	nCtrls := len(amps[0])
	perSlot := max(1, plotWidth/len(amps))

	series := make([][]float64, nCtrls)
	legends := make([]string, nCtrls)
	for c := range series {
		series[c] = make([]float64, 0, len(amps)*perSlot)
		for _, r := range amps {
			for k := 0; k < perSlot; k++ {
				series[c] = append(series[c], r[c])
			}
		}
		legends[c] = fmt.Sprintf("ctrl %d", c)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(plotHeight),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(CurrentTheme.seriesColors(nCtrls)...),
	}
	if nCtrls > 1 {
		opts = append(opts, asciigraph.SeriesLegends(legends...))
	}
	if len(series[0]) > plotWidth {
		opts = append(opts, asciigraph.Width(plotWidth))
	}
	return asciigraph.PlotMany(series, opts...)
}

// PlotHistory draws log10 of a fidelity error history. Non-positive and
// non-finite values are skipped.
func PlotHistory(errs []float64) string {
	logs := make([]float64, 0, len(errs))
	for _, e := range errs {
		if e > 0 && !math.IsInf(e, 0) {
			logs = append(logs, math.Log10(e))
		}
	}
	if len(logs) < 2 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Height(6),
		asciigraph.Caption("log10 fidelity error"),
		asciigraph.SeriesColors(CurrentTheme.seriesColors(1)...),
	}
	if len(logs) > plotWidth/2 {
		opts = append(opts, asciigraph.Width(plotWidth/2))
	}
	return asciigraph.Plot(logs, opts...)
}

func PlotSpectrum(spec analysis.Spectrum, caption string) string {
	if len(spec.Power) < 2 {
		return ""
	}
	return asciigraph.Plot(spec.Power,
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(CurrentTheme.seriesColors(1)...),
	)
}
