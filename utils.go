package cge

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

//////
// Helper functions.
//////

// clip bounds v into [lo, hi].
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// clipSlice bounds every entry of xs into [lo, hi], in place, and returns xs.
func clipSlice(xs []float64, lo, hi float64) []float64 {
	for i, v := range xs {
		xs[i] = clip(v, lo, hi)
	}

	return xs
}

// copyFloats returns an independent copy of xs.
func copyFloats(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)

	return out
}

// copyMatrix returns an independent row-by-row copy of m.
func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = copyFloats(row)
	}

	return out
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}

	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi

	return out
}

// argmin returns the index of the first minimum of xs.
func argmin(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v < xs[best] {
			best = i
		}
	}

	return best
}

// argmax returns the index of the first maximum of xs.
func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}

	return best
}

// matVec computes m*x for a dense row-major matrix m.
func matVec(m [][]float64, x []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = floats.Dot(row, x)
	}

	return out
}

// vecMat computes l^T * m, i.e. one output entry per column of m.
func vecMat(l []float64, m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}

	out := make([]float64, len(m[0]))
	for j := range out {
		for i, row := range m {
			out[j] += l[i] * row[j]
		}
	}

	return out
}

// shiftMatrix returns m with the scalar s subtracted from every entry. Used
// to shrink the estimated constraint matrix by a confidence radius.
func shiftMatrix(m [][]float64, s float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v - s
		}
	}

	return out
}

// column extracts column j of m.
func column(m [][]float64, j int) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[j]
	}

	return out
}

// allClose reports whether a and b agree entry-wise within the usual
// numpy-style mixed tolerance |a-b| <= atol + rtol*|b|.
func allClose(a, b []float64, rtol, atol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > atol+rtol*math.Abs(b[i]) {
			return false
		}
	}

	return true
}

// containsClose reports whether xs already holds a vector close to x.
func containsClose(xs [][]float64, x []float64) bool {
	for _, e := range xs {
		if allClose(x, e, 1e-5, 1e-8) {
			return true
		}
	}

	return false
}

// softmaxStable returns softmax(logits) computed after subtracting the
// maximum logit, so large dual weights cannot overflow.
func softmaxStable(logits []float64) []float64 {
	maxL := floats.Max(logits)

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxL)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// bisectGrid finds the point of the grid where kl(mu, .) crosses threshold,
// by bisection over grid indices. The grid must start at mu, so the
// divergence is monotone along it; the search narrows until the bracket
// width is below one grid cell and returns the last evaluated point.
func bisectGrid(mu float64, grid []float64, threshold float64, kl func(x, y float64) float64) float64 {
	p, q := 0, len(grid)
	x := grid[0]
	for {
		i := (p + q) / 2
		x = grid[i]
		if kl(mu, x) < threshold {
			p = i
		} else {
			q = i
		}
		if p+1 >= q {
			return x
		}
	}
}

// klGaussian is the KL divergence between unit-class Gaussians with means x
// and y and common scale sigma.
func klGaussian(x, y, sigma float64) float64 {
	d := x - y

	return d * d / (2 * sigma * sigma)
}

// klBernoulli is the KL divergence between Bernoulli(p) and Bernoulli(q),
// with both arguments floored away from {0,1} to keep the logs finite.
func klBernoulli(p, q float64) float64 {
	p = clip(p, precision, 1-precision)
	q = clip(q, precision, 1-precision)

	return p*math.Log(p/q) + (1-p)*math.Log((1-p)/(1-q))
}
