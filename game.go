package cge

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/optimize"
)

//////
// Allocation game.
//////

// tolLadder is the sweep of optimizer tolerances SolveGame retries with. The
// leading zero means "solver default". The inner objective is piecewise (a
// min over finitely many smooth branches), and generic solvers are sensitive
// to starting conditions near branch boundaries, so each rung also gets a
// freshly randomized feasible starting point.
var tolLadder = []float64{0, 1e-16, 1e-12, 1e-6, 1e-4}

// GameResult is the saddle-point approximation returned by SolveGame.
type GameResult struct {
	// Allocation is the maximizing sampling allocation, feasible for the
	// requested allocation set.
	Allocation []float64

	// Value is the best-response divergence at that allocation. Its maximum
	// over allocations characterizes the asymptotically optimal sampling
	// proportions.
	Value float64
}

// SolveGame maximizes the best-response value over the allocation simplex,
// or, when allocA/allocB are supplied, over the linearly restricted subset
// {w : allocA w <= allocB} of it. It is the outer player of the zero-sum game
// whose saddle point characterizes the optimal allocation.
//
// Parameters:
// - mu, vertex, neighbors: instance description (see BestResponse)
// - a, b: constraint system for the Gaussian constraint correction; nil a
//   selects the plain projection (used for lower-bound evaluation)
// - model, sigma: noise model and scale
// - allocA, allocB: optional linear restriction of the allocation set
// - tol: optional caller tolerance tried before the built-in ladder; pass 0
//   to start with the solver default
// - rng: explorer-owned stream for the randomized restarts
//
// The negated objective is minimized with Nelder-Mead over a projected
// parametrization: every candidate is projected onto the feasible allocation
// set before evaluation, so the search itself is unconstrained. Each rung of
// the tolerance ladder gets a fresh uniform(0.3, 0.6) start, normalized and
// projected feasible; the first rung on which the optimizer reports
// convergence wins. ErrGameUnsolved is returned when every rung fails.
func SolveGame(mu, vertex []float64, neighbors [][]float64, a [][]float64, b []float64, model NoiseModel, sigma float64, allocA [][]float64, allocB []float64, tol float64, rng *rand.Rand) (*GameResult, error) {
	n := len(mu)

	project := func(w []float64) ([]float64, error) {
		return ProjectFeasible(w, allocA, allocB)
	}

	objective := func(w []float64) float64 {
		feasW, err := project(w)
		if err != nil {
			return math.Inf(1)
		}
		value, _, _ := BestResponse(feasW, mu, vertex, neighbors, a, b, model, sigma)
		return -value
	}

	ladder := tolLadder
	if tol > tolLadder[1] {
		ladder = append([]float64{tol}, tolLadder[1:]...)
	}

	for _, rung := range ladder {
		x0 := make([]float64, n)
		var sum float64
		for i := range x0 {
			x0[i] = 0.3 + 0.3*rng.Float64()
			sum += x0[i]
		}
		for i := range x0 {
			x0[i] /= sum
		}
		x0, err := project(x0)
		if err != nil {
			return nil, err
		}

		settings := &optimize.Settings{MajorIterations: 2000}
		if rung > 0 {
			settings.Converger = &optimize.FunctionConverge{
				Absolute:   rung,
				Iterations: 20,
			}
		}

		result, err := optimize.Minimize(
			optimize.Problem{Func: objective},
			x0,
			settings,
			&optimize.NelderMead{},
		)
		if err != nil || !gameConverged(result.Status) {
			continue
		}

		alloc, err := project(result.X)
		if err != nil {
			continue
		}

		return &GameResult{Allocation: alloc, Value: -result.F}, nil
	}

	return nil, ErrGameUnsolved
}

// gameConverged reports whether the optimizer status counts as success for
// the ladder.
func gameConverged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence:
		return true
	default:
		return false
	}
}

// LowerBound evaluates the sample-complexity lower bound
// (1/gameValue) * log(1/(2.4 delta)) for a known instance: it solves the
// policy LP at the true means, enumerates the neighbors of the optimum, and
// maximizes the best-response divergence over the plain simplex.
//
// Passing a nil constraint matrix evaluates the unconstrained best-arm
// variant used as a baseline.
func LowerBound(mu []float64, a [][]float64, b []float64, delta, sigma float64, rng *rand.Rand) (float64, error) {
	pi, active, err := SolvePolicy(mu, a, b)
	if err != nil {
		return 0, err
	}

	neighbors := Neighbors(pi, active.G, active.H, active.Slack)
	res, err := SolveGame(mu, pi, neighbors, nil, nil, Gaussian, sigma, nil, nil, 0, rng)
	if err != nil {
		return 0, err
	}

	return (1 / res.Value) * math.Log(1/(2.4*delta)), nil
}
