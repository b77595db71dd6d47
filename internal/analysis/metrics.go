package analysis

import "math"

// Metric accumulates a scalar over the slots of an amplitude table.
type Metric interface {
	Name() string
	Observe(amps []float64, dt float64)
	Value() float64
	Reset()
}

// ControlEffort is the mean absolute amplitude over all slots and controls.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(amps []float64, dt float64) {
	for _, v := range amps {
		c.sum += math.Abs(v)
		c.samples++
	}
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() { *c = ControlEffort{} }

// Fluence is Σ u² Δt, the pulse energy up to a constant.
type Fluence struct {
	total float64
}

func NewFluence() *Fluence { return &Fluence{} }

func (f *Fluence) Name() string { return "fluence" }

func (f *Fluence) Observe(amps []float64, dt float64) {
	for _, v := range amps {
		f.total += v * v * dt
	}
}

func (f *Fluence) Value() float64 { return f.total }
func (f *Fluence) Reset()         { f.total = 0 }

type PeakAmplitude struct {
	peak float64
}

func NewPeakAmplitude() *PeakAmplitude { return &PeakAmplitude{} }

func (p *PeakAmplitude) Name() string { return "peak_amplitude" }

func (p *PeakAmplitude) Observe(amps []float64, dt float64) {
	for _, v := range amps {
		p.peak = math.Max(p.peak, math.Abs(v))
	}
}

func (p *PeakAmplitude) Value() float64 { return p.peak }
func (p *PeakAmplitude) Reset()         { p.peak = 0 }

// Roughness is the RMS jump between consecutive slots of the same control.
type Roughness struct {
	prev    []float64
	sumSq   float64
	samples int
}

func NewRoughness() *Roughness { return &Roughness{} }

func (r *Roughness) Name() string { return "roughness" }

func (r *Roughness) Observe(amps []float64, dt float64) {
	if r.prev != nil {
		for c, v := range amps {
			d := v - r.prev[c]
			r.sumSq += d * d
			r.samples++
		}
	}
	r.prev = append(r.prev[:0], amps...)
}

func (r *Roughness) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return math.Sqrt(r.sumSq / float64(r.samples))
}

func (r *Roughness) Reset() { *r = Roughness{} }

func DefaultMetrics() []Metric {
	return []Metric{NewControlEffort(), NewFluence(), NewPeakAmplitude(), NewRoughness()}
}

// Measure feeds every slot of an n_ts × n_ctrls table through the metrics.
// durations holds one slot length per row.
func Measure(amps [][]float64, durations []float64, metrics ...Metric) map[string]float64 {
	for _, m := range metrics {
		m.Reset()
	}
	for t, row := range amps {
		for _, m := range metrics {
			m.Observe(row, durations[t])
		}
	}
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
