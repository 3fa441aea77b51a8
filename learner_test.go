package cge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestAdaHedgeConvergesToLowestLoss(t *testing.T) {
	learner := NewAdaHedge(3, 1)

	for i := 0; i < 200; i++ {
		learner.Update([]float64{0, 1, 1})
	}

	w := learner.Weights()
	assert.InDelta(t, 1, floats.Sum(w), 1e-9)
	assert.Greater(t, w[0], 0.9)
	for _, v := range w {
		assert.Greater(t, v, 0.0)
	}
}

func TestAdaHedgeWeightsAreCopies(t *testing.T) {
	learner := NewAdaHedge(2, 1)

	w := learner.Weights()
	w[0] = 42

	assert.InDelta(t, 0.5, learner.Weights()[0], 1e-9)
}

func TestAdaGradStaysInPolytope(t *testing.T) {
	g, h := stackConstraints([][]float64{{1, 0, 0}}, []float64{0.4}, 3)

	learner, err := NewAdaGrad(g, h, 1)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		learner.Update([]float64{1, 0, 2})

		w := learner.Weights()
		assert.InDelta(t, 1, floats.Sum(w), 1e-4)
		assert.LessOrEqual(t, w[0], 0.4+1e-4)
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestAdaGradFavorsLowLossArm(t *testing.T) {
	g, h := stackConstraints(nil, nil, 3)

	learner, err := NewAdaGrad(g, h, 1)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		learner.Update([]float64{0, 1, 1})
	}

	w := learner.Weights()
	assert.Greater(t, w[0], w[1])
	assert.Greater(t, w[0], w[2])
}

func TestOGDConvergesToLowestLoss(t *testing.T) {
	learner := NewOnlineGradientDescent(3)

	for i := 0; i < 100; i++ {
		learner.Update([]float64{0, 1, 1})
	}

	w := learner.Weights()
	assert.InDelta(t, 1, floats.Sum(w), 1e-9)
	assert.Greater(t, w[0], 0.99)
}

func TestL1ProjectionFeasiblePointIsFixed(t *testing.T) {
	g, h := stackConstraints(nil, nil, 3)
	target := []float64{0.2, 0.3, 0.5}

	x, err := solveL1Projection(target, g, h)
	require.NoError(t, err)

	for i := range target {
		assert.InDelta(t, target[i], x[i], 1e-6)
	}
}

func TestL1ProjectionRestoresFeasibility(t *testing.T) {
	g, h := stackConstraints(nil, nil, 3)
	target := []float64{0.9, 0.9, -0.2}

	x, err := solveL1Projection(target, g, h)
	require.NoError(t, err)

	assert.InDelta(t, 1, floats.Sum(x), 1e-6)
	for _, v := range x {
		assert.GreaterOrEqual(t, v, -1e-8)
	}
}
