package cge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestProjectSimplexAlreadyFeasible(t *testing.T) {
	point := []float64{0.2, 0.3, 0.5}

	got, err := ProjectFeasible(point, nil, nil)
	require.NoError(t, err)

	for i := range point {
		assert.InDelta(t, point[i], got[i], 1e-9)
	}
}

func TestProjectSimplexClipsNegative(t *testing.T) {
	got, err := ProjectFeasible([]float64{2, 0, -1}, nil, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, got[0], 1e-9)
	assert.InDelta(t, 0, got[1], 1e-9)
	assert.InDelta(t, 0, got[2], 1e-9)
}

func TestProjectFeasibleHalfspace(t *testing.T) {
	a := [][]float64{{1, 0, 0}}
	b := []float64{0.2}

	got, err := ProjectFeasible([]float64{1, 0, 0}, a, b)
	require.NoError(t, err)

	assert.InDelta(t, 1, floats.Sum(got), feasTol)
	assert.LessOrEqual(t, got[0], b[0]+feasTol)

	// The first coordinate should sit on the halfspace boundary: pulling it
	// below 0.2 only increases the distance.
	assert.InDelta(t, 0.2, got[0], 1e-4)
}

func TestProjectFeasibleInfeasibleSystem(t *testing.T) {
	// sum(x) = 1 cannot coexist with x1+x2+x3 <= -1.
	a := [][]float64{{1, 1, 1}}
	b := []float64{-1}

	_, err := ProjectFeasible([]float64{0.3, 0.3, 0.4}, a, b)
	assert.ErrorIs(t, err, ErrInfeasibleProjection)
}

func TestProjectFeasibleSumPostcondition(t *testing.T) {
	a := [][]float64{{1, 1, 0, 0}, {0, 0, 1, 1}}
	b := []float64{0.6, 0.7}

	got, err := ProjectFeasible([]float64{5, -3, 0.1, 0.9}, a, b)
	require.NoError(t, err)

	assert.LessOrEqual(t, math.Abs(floats.Sum(got)-1), feasTol)
	for i, row := range a {
		assert.LessOrEqual(t, floats.Dot(row, got), b[i]+feasTol)
	}
	for _, v := range got {
		assert.GreaterOrEqual(t, v, -feasTol)
	}
}
