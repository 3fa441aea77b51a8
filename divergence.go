package cge

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

//////
// Divergence projections.
//////

// bernoulliMargin keeps projected Bernoulli means away from {0,1}.
const bernoulliMargin = 1e-3

// projection is the result of projecting the current mean estimate onto the
// hyperplane separating two candidate policies: the minimal-divergence
// alternative mean vector, the divergence achieved, and (for the
// constraint-aware Gaussian variant) the Lagrange multipliers of the
// constraint correction.
type projection struct {
	instance    []float64
	value       float64
	multipliers []float64
}

// gaussianProject computes the closed-form minimal-divergence mean vector on
// the hyperplane lambda.(pi1 - pi2) = 0 under the Gaussian model:
//
//	v          = pi1 - pi2
//	normalizer = sum(v^2 / w)
//	lagrange   = (mu.v) / normalizer
//	lambda     = mu - lagrange * v / w
//	value      = sum(w * (mu - lambda)^2) / (2 sigma^2)
//
// Every weight-derived denominator is floored at precision.
func gaussianProject(w, mu, pi1, pi2 []float64, sigma float64) projection {
	n := len(mu)

	v := make([]float64, n)
	floats.SubTo(v, pi1, pi2)

	var normalizer float64
	for i := range v {
		normalizer += v[i] * v[i] / (w[i] + precision)
	}
	lagrange := floats.Dot(mu, v) / (normalizer + precision)

	lam := make([]float64, n)
	var value float64
	for i := range lam {
		lam[i] = mu[i] - lagrange*v[i]/(w[i]+precision)
		d := mu[i] - lam[i]
		value += w[i] * d * d
	}
	value /= 2 * sigma * sigma

	return projection{instance: lam, value: value}
}

// gaussianProjectConstrained extends gaussianProject with a correction for
// uncertain constraints: on top of the closed-form projection it solves a
// small auxiliary convex program over non-negative Lagrange multipliers x,
//
//	minimize  value + x . (b - A w)
//	s.t.      x >= 0,  sum(x) <= value / min(A w - b)
//
// and folds the optimum into the reported divergence. The objective is linear
// in x, so the optimum sits at a vertex: all budget on the most negative
// coefficient, or zero when no coefficient is negative. When the allocation
// is strictly feasible the budget bound is negative and only the zero vector
// is admissible, so the correction vanishes.
func gaussianProjectConstrained(w, mu, pi1, pi2 []float64, a [][]float64, b []float64, sigma float64) projection {
	p := gaussianProject(w, mu, pi1, pi2, sigma)

	gamma := matVec(a, w)
	floats.Sub(gamma, b) // gamma = A w - b
	budget := p.value / (floats.Min(gamma) + precision)

	mult := make([]float64, len(b))
	if budget > 0 {
		// coefficient of x_j in the objective is b_j - (A w)_j = -gamma_j,
		// so the budget goes to the largest gamma entry
		j := argmax(gamma)
		if gamma[j] > 0 {
			mult[j] = budget
			p.value += mult[j] * -gamma[j]
		}
	}
	p.multipliers = mult

	return p
}

// bernoulliProject numerically solves
//
//	minimize  sum(w * KL_Bernoulli(mu, lambda))
//	s.t.      (pi1 - pi2) . lambda = 0,  lambda in [margin, 1-margin]
//
// by Lagrangian duality: for a fixed multiplier nu the problem separates into
// one monotone scalar root per coordinate, and the hyperplane residual is
// monotone in nu, so both levels are solved by bisection. The dual bracket is
// warm-started from the Gaussian closed form's multiplier.
func bernoulliProject(w, mu, pi1, pi2 []float64) projection {
	n := len(mu)
	muC := clipSlice(copyFloats(mu), bernoulliMargin, 1-bernoulliMargin)

	v := make([]float64, n)
	floats.SubTo(v, pi1, pi2)
	if floats.Norm(v, 1) <= precision {
		return projection{instance: muC, value: 0}
	}

	lamFor := func(nu float64) []float64 {
		lam := make([]float64, n)
		for i := range lam {
			lam[i] = bernoulliCoordinate(w[i], muC[i], nu*v[i])
		}
		return lam
	}
	residual := func(nu float64) float64 {
		return floats.Dot(v, lamFor(nu))
	}

	// Gaussian warm start for the dual bracket; residual is non-increasing
	// in nu, so expand until the root is bracketed.
	var normalizer float64
	for i := range v {
		normalizer += v[i] * v[i] / (w[i] + precision)
	}
	nu0 := floats.Dot(muC, v) / (normalizer + precision)

	lo, hi := nu0-1, nu0+1
	for i := 0; i < 60 && residual(lo) < 0; i++ {
		lo -= math.Abs(lo) + 1
	}
	for i := 0; i < 60 && residual(hi) > 0; i++ {
		hi += math.Abs(hi) + 1
	}

	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if residual(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	lam := lamFor((lo + hi) / 2)
	var value float64
	for i := range lam {
		value += w[i] * klBernoulli(muC[i], lam[i])
	}

	return projection{instance: lam, value: value}
}

// bernoulliCoordinate minimizes w*KL(mu, lambda) + c*lambda over lambda in
// [margin, 1-margin]. The stationarity condition
//
//	w * (lambda - mu) / (lambda (1 - lambda)) + c = 0
//
// has a left-hand side strictly increasing in lambda, so the minimizer is the
// clamped root, found by bisection.
func bernoulliCoordinate(w, mu, c float64) float64 {
	lo, hi := bernoulliMargin, 1-bernoulliMargin

	grad := func(lam float64) float64 {
		return w*(lam-mu)/(lam*(1-lam)+precision) + c
	}

	if grad(lo) >= 0 {
		return lo
	}
	if grad(hi) <= 0 {
		return hi
	}
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if grad(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return (lo + hi) / 2
}
