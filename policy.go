package cge

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

//////
// Policy oracle.
//////

// lpTol is the pivot tolerance handed to the simplex solver.
const lpTol = 1e-10

// stackConstraints builds the full inequality system the policy LP is solved
// against: the estimated rows A x <= b, non-negativity -x <= 0, and the two
// rows encoding sum(x) = 1. The stacking order is load-bearing: ActiveSet
// slices and the neighbor finder index into it.
func stackConstraints(a [][]float64, b []float64, n int) (g [][]float64, h []float64) {
	rows := len(a)
	g = make([][]float64, 0, rows+n+2)
	h = make([]float64, 0, rows+n+2)

	for i, row := range a {
		g = append(g, copyFloats(row))
		h = append(h, b[i])
	}
	for i := 0; i < n; i++ {
		neg := make([]float64, n)
		neg[i] = -1
		g = append(g, neg)
		h = append(h, 0)
	}
	ones := make([]float64, n)
	negOnes := make([]float64, n)
	for i := 0; i < n; i++ {
		ones[i] = 1
		negOnes[i] = -1
	}
	g = append(g, ones, negOnes)
	h = append(h, 1, -1)

	return g, h
}

// SolvePolicy finds the reward-maximizing policy under the constraint
// estimates by solving the linear program
//
//	maximize  meanRewards . x
//	s.t.      A x <= b,  x >= 0,  sum(x) = 1
//
// with a simplex solver. Passing a nil constraint matrix solves the plain
// best-arm problem over the simplex.
//
// Returns:
// - the optimal policy
// - the ActiveSet (stacked system and slack vector) needed for neighbor
//   enumeration: zero slack marks an active constraint
// - an error wrapping ErrNoOptimalPolicy when the LP is infeasible or the
//   solver does not converge; the caller must then retain its previous
//   round's decision unchanged rather than crash
func SolvePolicy(meanRewards []float64, a [][]float64, b []float64) ([]float64, *ActiveSet, error) {
	n := len(meanRewards)
	g, h := stackConstraints(a, b, n)

	c := make([]float64, n)
	for i, v := range meanRewards {
		c[i] = -v
	}

	gDense := mat.NewDense(len(g), n, nil)
	for i, row := range g {
		gDense.SetRow(i, row)
	}

	// Convert to standard form: variables are [x+, x-, s] with x = x+ - x-
	// and s the per-row slack.
	cStd, aStd, bStd := lp.Convert(c, gDense, h, nil, nil)
	_, z, err := lp.Simplex(cStd, aStd, bStd, lpTol, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("policy oracle: %w: %w", ErrNoOptimalPolicy, err)
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = z[i] - z[n+i]
	}
	slack := copyFloats(z[2*n : 2*n+len(h)])

	return x, &ActiveSet{G: g, H: h, Slack: slack}, nil
}
