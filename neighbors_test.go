package cge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestNeighborsSimplexVertex(t *testing.T) {
	policy, active, err := SolvePolicy([]float64{1, 0, 0}, nil, nil)
	require.NoError(t, err)

	neighbors := Neighbors(policy, active.G, active.H, active.Slack)

	// One pivot away from a simplex vertex are the other two vertices.
	assert.True(t, containsClose(neighbors, []float64{0, 1, 0}))
	assert.True(t, containsClose(neighbors, []float64{0, 0, 1}))
	for _, nb := range neighbors {
		assert.True(t, feasible(nb, active.G, active.H))
	}
}

func TestNeighborsDeduplicated(t *testing.T) {
	policy, active, err := SolvePolicy([]float64{1, 0, 0, 0}, nil, nil)
	require.NoError(t, err)

	neighbors := Neighbors(policy, active.G, active.H, active.Slack)
	for i := range neighbors {
		for j := i + 1; j < len(neighbors); j++ {
			assert.False(t, allClose(neighbors[i], neighbors[j], 1e-5, 1e-8),
				"neighbors %d and %d coincide", i, j)
		}
	}
}

func TestEnumeratePoliciesSimplex(t *testing.T) {
	g, h := stackConstraints(nil, nil, 3)

	policies := EnumeratePolicies(g, h, 3)

	// The plain simplex has exactly its three unit vertices.
	require.Len(t, policies, 3)
	for _, p := range policies {
		assert.InDelta(t, 1, floats.Sum(p), feasTol)
		assert.InDelta(t, 1, floats.Max(p), 1e-8)
	}
}

func TestNeighborsSubsetOfEnumeration(t *testing.T) {
	means := []float64{1.5, 1, 1.5, 0.4, 0.3, 0.2}
	a := [][]float64{
		{1, 1, 0, 0, 0, 0},
		{0, 0, 1, 1, 1, 0},
	}
	b := []float64{0.5, 0.5}

	policy, active, err := SolvePolicy(means, a, b)
	require.NoError(t, err)

	neighbors := Neighbors(policy, active.G, active.H, active.Slack)
	require.NotEmpty(t, neighbors)

	all := EnumeratePolicies(active.G, active.H, len(means))
	for i, nb := range neighbors {
		assert.True(t, containsClose(all, nb), "neighbor %d is not a basic feasible solution", i)
	}
}
