package optim

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/qctrl/internal/dynamics"
	"github.com/san-kum/qctrl/internal/fidelity"
	"github.com/san-kum/qctrl/internal/pulse"
	"github.com/san-kum/qctrl/internal/qobj"
	"github.com/san-kum/qctrl/internal/stats"
)

type problem struct {
	model  *dynamics.Model
	target qobj.Operator
	grid   dynamics.TimeGrid
	gens   []pulse.Generator
	crabs  []*pulse.CRAB
}

// piPulse is a single qubit with no drift and one σx control, targeting σx.
func piPulse(nTS int, evoTime float64, ctrls ...qobj.Operator) problem {
	if len(ctrls) == 0 {
		ctrls = []qobj.Operator{qobj.PauliX}
	}
	m, err := dynamics.NewModel(qobj.Zero(2), ctrls, qobj.Identity(2))
	Expect(err).NotTo(HaveOccurred())
	g, err := dynamics.NewUniformGrid(nTS, evoTime)
	Expect(err).NotTo(HaveOccurred())

	p := problem{model: m, target: qobj.PauliX, grid: g}
	for i := range ctrls {
		c, err := pulse.NewCRAB(g, 2, i)
		Expect(err).NotTo(HaveOccurred())
		p.crabs = append(p.crabs, c)
		p.gens = append(p.gens, c)
	}
	return p
}

func quietOptions() Options {
	o := DefaultOptions()
	o.Logger = log.New(io.Discard)
	o.MaxWallTime = 2 * time.Minute
	return o
}

func (p problem) optimizer(opts Options) *Optimizer {
	o, err := New(p.model, p.target, p.grid, p.gens, opts)
	Expect(err).NotTo(HaveOccurred())
	return o
}

// nanGenerator is finite only at its initial parameter.
type nanGenerator struct{ n int }

func (g nanGenerator) Kind() pulse.Kind { return pulse.Crab }
func (g nanGenerator) NumParams() int   { return 1 }
func (g nanGenerator) Init() []float64  { return []float64{0} }

func (g nanGenerator) Generate(p []float64) ([]float64, error) {
	out := make([]float64, g.n)
	for i := range out {
		out[i] = 0.1
		if p[0] != 0 {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

var errBroken = errors.New("broken generator")

type brokenGenerator struct{}

func (brokenGenerator) Kind() pulse.Kind                        { return pulse.Crab }
func (brokenGenerator) NumParams() int                          { return 1 }
func (brokenGenerator) Init() []float64                         { return []float64{0} }
func (brokenGenerator) Generate(p []float64) ([]float64, error) { return nil, errBroken }

var _ = Describe("Optimizer", func() {
	Describe("the π-pulse scenario", func() {
		for _, prop := range []dynamics.PropType{dynamics.PropDiag, dynamics.PropFrechet} {
			prop := prop
			It("converges below 1e-3 with "+prop.String(), func() {
				p := piPulse(50, math.Pi)
				opts := quietOptions()
				opts.FidErrTarg = 1e-4
				opts.MaxIter = 5000
				opts.PropType = prop
				opts.FidType = fidelity.Unit
				opts.PhaseOption = fidelity.PSU

				res, err := p.optimizer(opts).Run()
				Expect(err).NotTo(HaveOccurred())
				Expect(res.State).To(Equal(Converged))
				Expect(res.FinalFidErr).To(BeNumerically("<", 1e-3))
				Expect(res.FinalFidErr).To(BeNumerically("<=", res.InitialFidErr))
				Expect(res.Iterations).To(BeNumerically("<=", 5000))
				Expect(res.Reason).To(ContainSubstring("reached target"))

				Expect(res.FinalAmps).To(HaveLen(50))
				Expect(res.FinalAmps[0]).To(HaveLen(1))
				Expect(res.Params).To(HaveLen(p.crabs[0].NumParams()))
				Expect(res.FinalEvolution.IsUnitary(1e-9)).To(BeTrue())
			})
		}
	})

	Describe("termination", func() {
		It("stops at the iteration budget", func() {
			p := piPulse(20, math.Pi)
			opts := quietOptions()
			opts.FidErrTarg = 1e-14
			opts.MaxIter = 3

			var seen []Progress
			opts.Observer = ObserverFunc(func(pr Progress) { seen = append(seen, pr) })

			res, err := p.optimizer(opts).Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(IterExceeded))
			Expect(res.Iterations).To(Equal(3))
			Expect(res.Stats.Count(stats.Iterations)).To(Equal(3))
			Expect(res.FinalFidErr).To(BeNumerically("<=", res.InitialFidErr))
			Expect(seen).To(HaveLen(3))
			Expect(seen[2].Iteration).To(Equal(3))
		})

		It("stops at the wall-clock budget", func() {
			p := piPulse(20, math.Pi)
			opts := quietOptions()
			opts.FidErrTarg = 1e-14
			opts.MaxWallTime = time.Nanosecond

			res, err := p.optimizer(opts).Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(TimeExceeded))
			Expect(res.Iterations).To(Equal(0))
			Expect(res.Reason).To(ContainSubstring("wall time"))
		})

		It("reports CONVERGED when the target and the iteration budget coincide", func() {
			opts := quietOptions()
			opts.FidErrTarg = 1e-14
			opts.MaxIter = 1
			first, err := piPulse(20, math.Pi).optimizer(opts).Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.State).To(Equal(IterExceeded))

			opts.FidErrTarg = first.FinalFidErr
			second, err := piPulse(20, math.Pi).optimizer(opts).Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(second.State).To(Equal(Converged))
			Expect(second.FinalFidErr).To(Equal(first.FinalFidErr))
		})

		It("is CONVERGED at iteration zero when the start already meets the target", func() {
			opts := quietOptions()
			opts.FidErrTarg = 10
			res, err := piPulse(10, 1).optimizer(opts).Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(Converged))
			Expect(res.Iterations).To(Equal(0))
			Expect(res.FinalAmps).To(Equal(res.InitialAmps))
			Expect(res.Stats.Count(stats.FidFuncCalls)).To(Equal(1))
			Expect(res.Stats.Count(stats.FidComputed)).To(Equal(1))
		})

		It("fails on a non-finite error and keeps the last finite amplitudes", func() {
			p := piPulse(10, math.Pi)
			p.gens = []pulse.Generator{nanGenerator{n: 10}}
			opts := quietOptions()
			opts.FidErrTarg = 1e-14
			o := p.optimizer(opts)

			res, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(Failed))
			Expect(res.Reason).To(ContainSubstring("numerical instability"))
			Expect(math.IsNaN(res.FinalFidErr)).To(BeFalse())
			Expect(res.FinalFidErr).To(Equal(res.InitialFidErr))
			Expect(res.FinalAmps).To(Equal(res.InitialAmps))
			amps, err := o.CurrentAmps()
			Expect(err).NotTo(HaveOccurred())
			Expect(amps).To(Equal(res.FinalAmps))
		})

		DescribeTable("check priority",
			func(fidErr float64, iter int, elapsed time.Duration, want State) {
				opts := DefaultOptions()
				opts.FidErrTarg = 1e-3
				opts.MaxIter = 10
				opts.MaxWallTime = time.Second
				got, done := terminalState(fidErr, iter, elapsed, opts)
				Expect(got).To(Equal(want))
				Expect(done).To(Equal(want != Running))
			},
			Entry("running", 0.5, 3, time.Millisecond, Running),
			Entry("target and iteration budget", 1e-3, 10, time.Millisecond, Converged),
			Entry("target and both budgets", 1e-4, 10, 2*time.Second, Converged),
			Entry("iteration before time", 0.5, 10, 2*time.Second, IterExceeded),
			Entry("time", 0.5, 3, time.Second, TimeExceeded),
			Entry("NaN beats everything", math.NaN(), 10, 2*time.Second, Failed),
			Entry("Inf", math.Inf(1), 0, time.Duration(0), Failed),
		)
	})

	Describe("inert controls", func() {
		It("tolerates a CRAB with zero scaling", func() {
			p := piPulse(30, math.Pi, qobj.PauliX, qobj.PauliY)
			Expect(p.crabs[1].SetScaling(0)).To(Succeed())
			opts := quietOptions()
			opts.FidErrTarg = 1e-3
			opts.MaxIter = 5000

			o := p.optimizer(opts)
			Expect(o.NumParams()).To(Equal(12))

			res, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(Converged))
			for _, row := range res.FinalAmps {
				Expect(row[1]).To(BeZero())
			}
		})
	})

	Describe("evaluation cache", func() {
		It("answers an identical repeat without recomputing", func() {
			p := piPulse(10, 1)
			o := p.optimizer(quietOptions())
			x := o.initialParams()

			e1, err := o.evaluate(x)
			Expect(err).NotTo(HaveOccurred())
			before := o.stats.Snapshot()

			e2, err := o.evaluate(x)
			Expect(err).NotTo(HaveOccurred())
			after := o.stats.Snapshot()

			Expect(e2).To(Equal(e1))
			Expect(after.Count(stats.FidFuncCalls)).To(Equal(before.Count(stats.FidFuncCalls) + 1))
			Expect(after.Count(stats.FidComputed)).To(Equal(before.Count(stats.FidComputed)))
			Expect(after.Count(stats.PropsComputed)).To(Equal(before.Count(stats.PropsComputed)))
		})
	})

	Describe("lifecycle", func() {
		It("locks the generators and refuses a second run", func() {
			p := piPulse(10, 1)
			opts := quietOptions()
			opts.MaxIter = 2
			o := p.optimizer(opts)
			Expect(o.State()).To(Equal(Configured))
			amps, err := o.CurrentAmps()
			Expect(err).NotTo(HaveOccurred())
			Expect(amps).To(HaveLen(10))

			_, err = o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(o.State().IsTerminal()).To(BeTrue())
			Expect(p.crabs[0].SetScaling(2)).To(MatchError(pulse.ErrLocked))

			_, err = o.Run()
			Expect(err).To(MatchError(ErrAlreadyRun))
		})

		It("picks up generator changes made between New and Run", func() {
			p := piPulse(20, math.Pi)
			opts := quietOptions()
			opts.FidErrTarg = 1e-3
			opts.MaxIter = 5000
			o := p.optimizer(opts)
			Expect(o.NumParams()).To(Equal(6))

			Expect(p.crabs[0].SetNumBasis(4)).To(Succeed())
			amps, err := o.CurrentAmps()
			Expect(err).NotTo(HaveOccurred())
			Expect(amps).To(HaveLen(20))

			res, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(Converged), res.Reason)
			Expect(o.NumParams()).To(Equal(12))
			Expect(res.Params).To(HaveLen(12))
		})

		It("reports amplitudes it cannot generate", func() {
			p := piPulse(10, 1)
			p.gens = []pulse.Generator{brokenGenerator{}}
			o := p.optimizer(quietOptions())

			_, err := o.CurrentAmps()
			Expect(err).To(MatchError(errBroken))
		})

		It("rejects invalid configuration up front", func() {
			p := piPulse(10, 1)

			_, err := New(p.model, p.target, p.grid, nil, quietOptions())
			Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())

			_, err = New(p.model, qobj.Identity(4), p.grid, p.gens, quietOptions())
			Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())

			bad := quietOptions()
			bad.MaxIter = 0
			_, err = New(p.model, p.target, p.grid, p.gens, bad)
			Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())

			nonHermitian, err := dynamics.NewModel(qobj.Zero(2), []qobj.Operator{qobj.MustNew(2, []complex128{0, 1, 0, 0})}, qobj.Operator{})
			Expect(err).NotTo(HaveOccurred())
			_, err = New(nonHermitian, p.target, p.grid, p.gens, quietOptions())
			Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())
			Expect(errors.Is(err, dynamics.ErrConfiguration)).To(BeTrue())
		})
	})
})

var _ = Describe("Sweep", func() {
	It("runs every point and picks the best", func() {
		sw := NewSweep([]float64{math.Pi / 2, math.Pi}, []int{0, 10, 20})
		sw.Workers = 3

		results, err := sw.Run(context.Background(), func(pt SweepPoint) (*Optimizer, error) {
			g, err := dynamics.NewUniformGrid(pt.NumTS, pt.EvoTime)
			if err != nil {
				return nil, err
			}
			m, _ := dynamics.NewModel(qobj.Zero(2), []qobj.Operator{qobj.PauliX}, qobj.Operator{})
			c, err := pulse.NewCRAB(g, 2, 0)
			if err != nil {
				return nil, err
			}
			opts := quietOptions()
			opts.MaxIter = 50
			opts.Workers = 1
			return New(m, qobj.PauliX, g, []pulse.Generator{c}, opts)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(6))

		failed := 0
		for _, r := range results {
			if r.Point.NumTS == 0 {
				Expect(r.Err).To(HaveOccurred())
				failed++
				continue
			}
			Expect(r.Err).NotTo(HaveOccurred())
			Expect(r.Result.Iterations).To(BeNumerically("<=", 50))
		}
		Expect(failed).To(Equal(2))

		best, ok := Best(results)
		Expect(ok).To(BeTrue())
		for _, r := range results {
			if r.Err == nil {
				Expect(best.Result.FinalFidErr).To(BeNumerically("<=", r.Result.FinalFidErr))
			}
		}
	})

	It("rejects an empty grid", func() {
		_, err := NewSweep(nil, []int{10}).Run(context.Background(), nil)
		Expect(errors.Is(err, ErrConfiguration)).To(BeTrue())
	})
})
