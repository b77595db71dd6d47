package optim

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// SweepPoint is one (evo_time, n_ts) combination.
type SweepPoint struct {
	EvoTime float64
	NumTS   int
}

type SweepResult struct {
	Point  SweepPoint
	Result *Result
	Err    error
}

// Sweep runs an independent optimisation for every combination of EvoTimes
// and NumTS, at most Workers at a time.
type Sweep struct {
	EvoTimes []float64
	NumTS    []int
	Workers  int
}

func NewSweep(evoTimes []float64, numTS []int) *Sweep {
	return &Sweep{EvoTimes: evoTimes, NumTS: numTS, Workers: 1}
}

func (s *Sweep) Points() []SweepPoint {
	pts := make([]SweepPoint, 0, len(s.EvoTimes)*len(s.NumTS))
	for _, T := range s.EvoTimes {
		for _, n := range s.NumTS {
			pts = append(pts, SweepPoint{EvoTime: T, NumTS: n})
		}
	}
	return pts
}

// Run builds and runs one optimiser per point. Build errors are recorded on
// the point rather than aborting the sweep. Cancelling ctx stops new points
// from starting; running points finish their own budget.
func (s *Sweep) Run(ctx context.Context, build func(SweepPoint) (*Optimizer, error)) ([]SweepResult, error) {
	pts := s.Points()
	if len(pts) == 0 {
		return nil, fmt.Errorf("empty sweep: %w", ErrConfiguration)
	}

	results := make([]SweepResult, len(pts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Workers))

	for i, p := range pts {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := SweepResult{Point: p}
			opt, err := build(p)
			if err == nil {
				r.Result, err = opt.Run()
			}
			r.Err = err
			results[i] = r
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// Best returns the finished point with the lowest final fidelity error.
func Best(results []SweepResult) (SweepResult, bool) {
	best := math.Inf(1)
	idx := -1
	for i, r := range results {
		if r.Err != nil || r.Result == nil || r.Result.State == Failed {
			continue
		}
		if r.Result.FinalFidErr < best {
			best = r.Result.FinalFidErr
			idx = i
		}
	}
	if idx < 0 {
		return SweepResult{}, false
	}
	return results[idx], true
}
