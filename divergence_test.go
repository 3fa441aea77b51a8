package cge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestGaussianProjectIdenticalPolicies(t *testing.T) {
	mu := []float64{1.5, 1.0}
	pi := []float64{1, 0}

	p := gaussianProject([]float64{0.5, 0.5}, mu, pi, pi, 1)

	assert.InDelta(t, 0, p.value, 1e-9)
	for i := range mu {
		assert.InDelta(t, mu[i], p.instance[i], 1e-6)
	}
}

func TestGaussianProjectTwoArms(t *testing.T) {
	w := []float64{0.5, 0.5}
	mu := []float64{1.5, 1.0}
	pi1 := []float64{1, 0}
	pi2 := []float64{0, 1}

	p := gaussianProject(w, mu, pi1, pi2, 1)

	// Closed form: both means meet at the weighted midpoint 1.25 and the
	// divergence is gap^2/8 per unit weight.
	assert.InDelta(t, 1.25, p.instance[0], 1e-6)
	assert.InDelta(t, 1.25, p.instance[1], 1e-6)
	assert.InDelta(t, 0.03125, p.value, 1e-6)

	// The alternative sits on the separating hyperplane.
	v := []float64{pi1[0] - pi2[0], pi1[1] - pi2[1]}
	assert.InDelta(t, 0, floats.Dot(v, p.instance), 1e-6)
}

func TestGaussianProjectConstrainedFeasibleAllocation(t *testing.T) {
	w := []float64{0.5, 0.5}
	mu := []float64{1.5, 1.0}
	pi1 := []float64{1, 0}
	pi2 := []float64{0, 1}
	a := [][]float64{{1, 0}}
	b := []float64{1}

	plain := gaussianProject(w, mu, pi1, pi2, 1)
	p := gaussianProjectConstrained(w, mu, pi1, pi2, a, b, 1)

	// Strictly feasible allocation: the multiplier budget is negative, so
	// the correction vanishes.
	assert.InDelta(t, plain.value, p.value, 1e-9)
	for _, m := range p.multipliers {
		assert.InDelta(t, 0, m, 1e-12)
	}
}

func TestBernoulliProjectHyperplane(t *testing.T) {
	w := []float64{0.5, 0.5}
	mu := []float64{0.8, 0.4}
	pi1 := []float64{1, 0}
	pi2 := []float64{0, 1}

	p := bernoulliProject(w, mu, pi1, pi2)

	// The hyperplane forces equal coordinates; the common value lies between
	// the two means.
	assert.InDelta(t, p.instance[0], p.instance[1], 1e-5)
	assert.Greater(t, p.instance[0], mu[1])
	assert.Less(t, p.instance[0], mu[0])
	assert.Greater(t, p.value, 0.0)
}

func TestBernoulliProjectIdenticalPolicies(t *testing.T) {
	mu := []float64{0.7, 0.3}
	pi := []float64{0.5, 0.5}

	p := bernoulliProject([]float64{0.5, 0.5}, mu, pi, pi)

	assert.InDelta(t, 0, p.value, 1e-9)
}

func TestBestResponsePicksClosestNeighbor(t *testing.T) {
	w := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	mu := []float64{1.5, 1.0, 0.0}
	pi := []float64{1, 0, 0}
	neighbors := [][]float64{{0, 1, 0}, {0, 0, 1}}

	value, instance, mult := BestResponse(w, mu, pi, neighbors, nil, nil, Gaussian, 1)

	// Arm 2 is much further from arm 1 than arm 2's gap, so the confusable
	// instance flips arms 1 and 2.
	direct := gaussianProject(w, mu, pi, neighbors[0], 1)
	assert.InDelta(t, direct.value, value, 1e-9)
	assert.InDelta(t, instance[0], instance[1], 1e-6)
	assert.Empty(t, mult)
}

func TestBestResponseEmptyNeighbors(t *testing.T) {
	mu := []float64{1.5, 1.0}

	value, instance, _ := BestResponse([]float64{0.5, 0.5}, mu, []float64{1, 0}, nil, nil, nil, Gaussian, 1)

	assert.True(t, math.IsInf(value, 1))
	assert.Equal(t, mu, instance)
}

func TestBestResponseParallelMatchesSequential(t *testing.T) {
	// More neighbors than the parallel threshold; the result must still be
	// the first minimum in neighbor order.
	n := 4
	mu := []float64{2.0, 1.0, 0.5, 0.25}
	pi := []float64{1, 0, 0, 0}
	w := []float64{0.25, 0.25, 0.25, 0.25}

	var neighbors [][]float64
	for i := 1; i < n; i++ {
		for j := 0; j < 3; j++ {
			nb := make([]float64, n)
			nb[i] = 1
			neighbors = append(neighbors, nb)
		}
	}

	value, _, _ := BestResponse(w, mu, pi, neighbors, nil, nil, Gaussian, 1)

	best := math.Inf(1)
	for _, nb := range neighbors {
		if p := gaussianProject(w, mu, pi, nb, 1); p.value < best {
			best = p.value
		}
	}
	assert.InDelta(t, best, value, 1e-9)
}
