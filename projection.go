package cge

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

//////
// Feasible-set projection.
//////

// ProjectFeasible computes the Euclidean projection of point onto the
// feasible region {x : A x <= b} intersected with the probability simplex.
// Passing a nil (or empty) constraint matrix projects onto the simplex alone.
//
// Parameters:
// - point: arbitrary real vector to project
// - a: constraint matrix, one row per inequality (may be nil)
// - b: right-hand side, one entry per row of a
//
// Returns:
// - the projected point, satisfying |sum(x)-1| <= 1e-5 and Ax <= b+1e-5
// - ErrInfeasibleProjection when no point satisfies the stacked system
//
// The simplex alone has a closed-form projection; the intersection with the
// halfspaces is computed by Dykstra's alternating-projection scheme, which
// converges to the exact Euclidean projection onto an intersection of convex
// sets. Callers must treat an error as fatal for the round: it means the
// constraint system itself is misconfigured.
func ProjectFeasible(point []float64, a [][]float64, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return projectSimplex(point), nil
	}

	x := copyFloats(point)
	nSets := len(a) + 1
	corrections := make([][]float64, nSets)
	for s := range corrections {
		corrections[s] = make([]float64, len(point))
	}

	const maxCycles = 2000
	prev := make([]float64, len(point))
	for cycle := 0; cycle < maxCycles; cycle++ {
		copy(prev, x)
		for s := 0; s < nSets; s++ {
			y := make([]float64, len(x))
			floats.AddTo(y, x, corrections[s])

			var proj []float64
			if s == 0 {
				proj = projectSimplex(y)
			} else {
				proj = projectHalfspace(y, a[s-1], b[s-1])
			}

			floats.SubTo(corrections[s], y, proj)
			x = proj
		}

		if floats.Distance(prev, x, math.Inf(1)) < 1e-11 {
			break
		}
	}

	if math.Abs(floats.Sum(x)-1) > feasTol {
		return nil, ErrInfeasibleProjection
	}
	for i, row := range a {
		if floats.Dot(row, x) > b[i]+feasTol {
			return nil, ErrInfeasibleProjection
		}
	}

	return x, nil
}

// projectSimplex is the exact Euclidean projection onto the probability
// simplex, via the sorted-threshold construction.
func projectSimplex(point []float64) []float64 {
	n := len(point)
	sorted := copyFloats(point)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var cum float64
	lambda := 1.0 - sorted[0] // rho = 1 fallback
	for j := 0; j < n; j++ {
		cum += sorted[j]
		candidate := (1 - cum) / float64(j+1)
		if sorted[j]+candidate > 0 {
			lambda = candidate
		}
	}

	out := make([]float64, n)
	for i, v := range point {
		out[i] = math.Max(0, v+lambda)
	}

	return out
}

// projectHalfspace projects point onto {x : a.x <= bound}. Points already in
// the halfspace are returned unchanged (as a copy).
func projectHalfspace(point, a []float64, bound float64) []float64 {
	viol := floats.Dot(a, point) - bound
	out := copyFloats(point)
	if viol <= 0 {
		return out
	}

	norm2 := floats.Dot(a, a) + precision
	floats.AddScaled(out, -viol/norm2, a)

	return out
}
