package cge

import (
	"math"
	"sync"
)

//////
// Best response of the instance player.
//////

// parallelThreshold is the neighbor count above which projections are
// evaluated concurrently. Below it the goroutine overhead is not worth it.
const parallelThreshold = 8

// BestResponse applies the divergence projection of the selected noise model
// to every neighbor of the optimal policy and returns the minimizing one: the
// hardest-to-distinguish alternative instance the environment could present
// given the allocation w. This is the inner minimization of the max-min game
// defining the sample-complexity lower bound.
//
// Parameters:
// - w: allocation weights, one per arm
// - mu: current mean estimate
// - pi: current optimal policy
// - neighbors: the confusable alternative policies
// - a, b: the (possibly confidence-shrunk) constraint system used by the
//   Gaussian constraint correction; pass a nil to skip the correction
// - model, sigma: noise model and scale
//
// Ties resolve to the first minimum in neighbor order. An empty neighbor set
// yields +Inf divergence with zero multipliers: the current policy has no
// confusable alternative, so any stopping test comparing against a finite
// threshold fires immediately.
func BestResponse(w, mu, pi []float64, neighbors [][]float64, a [][]float64, b []float64, model NoiseModel, sigma float64) (float64, []float64, []float64) {
	mult := make([]float64, len(b))
	if len(neighbors) == 0 {
		return math.Inf(1), copyFloats(mu), mult
	}

	projectOne := func(neighbor []float64) projection {
		switch {
		case model == Bernoulli:
			return bernoulliProject(w, mu, pi, neighbor)
		case a == nil:
			return gaussianProject(w, mu, pi, neighbor, sigma)
		default:
			return gaussianProjectConstrained(w, mu, pi, neighbor, a, b, sigma)
		}
	}

	projections := make([]projection, len(neighbors))
	if len(neighbors) >= parallelThreshold {
		// Projections are independent per neighbor; fan out and keep results
		// indexed so the argmin below stays deterministic.
		var wg sync.WaitGroup
		for i, neighbor := range neighbors {
			wg.Add(1)
			go func(i int, neighbor []float64) {
				defer wg.Done()
				projections[i] = projectOne(neighbor)
			}(i, neighbor)
		}
		wg.Wait()
	} else {
		for i, neighbor := range neighbors {
			projections[i] = projectOne(neighbor)
		}
	}

	best := 0
	for i, p := range projections {
		if p.value < projections[best].value {
			best = i
		}
	}

	chosen := projections[best]
	if chosen.multipliers != nil {
		mult = chosen.multipliers
	}

	return chosen.value, chosen.instance, mult
}
