package cge

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//////
// Polytope vertex enumeration.
//////

// Neighbors enumerates the vertices of the stacked polytope G x <= h that are
// one pivot away from the given vertex: for every combination of active
// constraints forming a candidate basis and every inactive constraint, the
// inactive constraint is swapped into each basis position and the resulting
// square system solved. A candidate is accepted iff the swapped basis is full
// rank, the solution satisfies all constraints within tolerance, and it is
// not already present (approximate dedup).
//
// The result is the set of basic feasible solutions adjacent to the vertex:
// the statistically confusable alternative policies. Complexity is
// combinatorial in the constraint count, acceptable because constraint and
// arm counts are small.
func Neighbors(vertex []float64, g [][]float64, h []float64, slack []float64) [][]float64 {
	n := len(vertex)

	var active, inactive []int
	for i, s := range slack {
		if math.Abs(s) <= activeTol {
			active = append(active, i)
		} else {
			inactive = append(inactive, i)
		}
	}

	var neighbors [][]float64
	forEachCombination(active, n, func(base []int) {
		swapped := make([]int, n)
		for _, c := range inactive {
			for i := 0; i < n; i++ {
				copy(swapped, base)
				swapped[i] = c

				candidate, err := solveBasis(g, h, swapped)
				if err != nil {
					continue // rank-deficient, not a vertex
				}
				if !feasible(candidate, g, h) {
					continue
				}
				if containsClose(neighbors, candidate) {
					continue
				}
				neighbors = append(neighbors, candidate)
			}
		}
	})

	return neighbors
}

// EnumeratePolicies returns every basic feasible solution of G x <= h: all
// full-rank bases of size n whose solution lies in the polytope, deduplicated
// approximately. Exhaustive; intended for small systems and for
// cross-checking the neighbor enumeration.
func EnumeratePolicies(g [][]float64, h []float64, n int) [][]float64 {
	all := make([]int, len(g))
	for i := range all {
		all[i] = i
	}

	var policies [][]float64
	forEachCombination(all, n, func(base []int) {
		candidate, err := solveBasis(g, h, base)
		if err != nil {
			return
		}
		if !feasible(candidate, g, h) {
			return
		}
		if containsClose(policies, candidate) {
			return
		}
		policies = append(policies, candidate)
	})

	return policies
}

// feasible reports whether G x <= h + feasTol holds row-wise.
func feasible(x []float64, g [][]float64, h []float64) bool {
	for i, row := range g {
		if floats.Dot(row, x) > h[i]+feasTol {
			return false
		}
	}

	return true
}

// solveBasis solves the square system formed by the selected rows of G and h.
// Rank-deficient bases yield errDegenerateBasis.
func solveBasis(g [][]float64, h []float64, base []int) ([]float64, error) {
	n := len(base)
	bMat := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i, r := range base {
		bMat.SetRow(i, g[r])
		rhs.SetVec(i, h[r])
	}

	var svd mat.SVD
	if !svd.Factorize(bMat, mat.SVDNone) {
		return nil, errDegenerateBasis
	}
	sv := svd.Values(nil)
	if sv[0] <= precision || sv[n-1] <= 1e-10*sv[0] {
		return nil, errDegenerateBasis
	}

	var lu mat.LU
	lu.Factorize(bMat)
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, rhs); err != nil {
		return nil, errDegenerateBasis
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}

	return out, nil
}

// forEachCombination invokes fn for every k-subset of idx, in lexicographic
// order. The slice passed to fn is reused between calls.
func forEachCombination(idx []int, k int, fn func([]int)) {
	if k > len(idx) {
		return
	}

	sel := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			fn(sel)
			return
		}
		for i := start; i <= len(idx)-(k-depth); i++ {
			sel[depth] = idx[i]
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
}
