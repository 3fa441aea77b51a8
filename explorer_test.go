package cge

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioConfig() (Config, *GaussianBandit) {
	means := []float64{1.5, 1, 1.5, 0.4, 0.3, 0.2}
	a := [][]float64{
		{1, 1, 0, 0, 0, 0},
		{0, 0, 1, 1, 1, 0},
	}
	b := []float64{0.5, 0.5}

	bandit := NewGaussianBandit(means, a, b, 1, 99)
	cfg := DefaultConfig(6, bandit.SampleConstraintMatrix(), b)
	cfg.Seed = 99

	return cfg, bandit
}

func TestExplorerWarmupRoundRobin(t *testing.T) {
	a := [][]float64{{1, 1, 1}}
	b := []float64{1}

	cfg := DefaultConfig(3, a, b)
	cfg.IniPhase = 2
	cfg.Learner = LearnerAdaHedge

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	for round := 0; round < 6; round++ {
		d := exp.Act()

		assert.Equal(t, round%3, d.Arm)
		assert.Nil(t, d.Policy)
		assert.False(t, d.Stop)
		assert.NoError(t, d.Err)

		exp.Update(d.Arm, 0.5, []float64{1})
	}
	assert.Equal(t, 6, exp.Round())
}

func TestExplorerConfigValidation(t *testing.T) {
	_, err := NewExplorer(Config{NumArms: 1, Delta: 0.1})
	assert.Error(t, err)

	cfg := DefaultConfig(2, [][]float64{{1, 1}}, []float64{0.5})
	cfg.Delta = 0
	_, err = NewExplorer(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig(2, [][]float64{{1}}, []float64{0.5})
	_, err = NewExplorer(cfg)
	assert.Error(t, err)
}

func TestExplorerBernoulliWarmupLength(t *testing.T) {
	cfg := DefaultConfig(2, [][]float64{{1, 0}}, []float64{0.6})
	cfg.Model = Bernoulli
	cfg.Learner = LearnerAdaHedge
	cfg.IniPhase = 1

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	// Bernoulli runs extend the warm-up to 10 passes per arm.
	for round := 0; round < 2*10; round++ {
		d := exp.Act()
		assert.Nil(t, d.Policy, "round %d should still be warm-up", round)
		exp.Update(d.Arm, float64(round%2), []float64{0.5})
	}
}

func TestExplorerFreezesOnInfeasibleEstimates(t *testing.T) {
	// Coefficients this large stay far above the bound even after the
	// confidence shrink, so the polytope is empty: the first adaptive
	// round's LP must fail and the decision must freeze instead of crash.
	cfg := DefaultConfig(2, [][]float64{{10, 10}}, []float64{0.5})
	cfg.Learner = LearnerAdaHedge

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	for round := 0; round < 2; round++ {
		d := exp.Act()
		exp.Update(d.Arm, 0.5, []float64{10})
	}

	d := exp.Act()
	assert.ErrorIs(t, d.Err, ErrNoOptimalPolicy)
	assert.Nil(t, d.Policy)
	assert.False(t, d.Stop)
	assert.False(t, exp.Stopped())

	// The loop keeps going: updates still apply and the next round freezes
	// the same way.
	exp.Update(d.Arm, 0.5, []float64{10})
	assert.ErrorIs(t, exp.Act().Err, ErrNoOptimalPolicy)
}

func TestEllipsoidNormIdentityPrior(t *testing.T) {
	cfg := DefaultConfig(2, [][]float64{{1, 0}}, []float64{0.6})
	cfg.Learner = LearnerAdaHedge

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	// Unpulled arms still have a unit Gram entry from the identity prior.
	assert.InDelta(t, 1, exp.ellipsoidNorm([]float64{1, 0}), 1e-12)

	exp.pulls = []float64{1, 3}
	// 0.25/(1+1) + 0.25/(1+3)
	assert.InDelta(t, 0.1875, exp.ellipsoidNorm([]float64{0.5, 0.5}), 1e-12)
}

func TestStoppingStatisticUsesEllipsoidRadius(t *testing.T) {
	cfg := DefaultConfig(2, [][]float64{{1, 1}}, []float64{0.3})
	cfg.Learner = LearnerAdaHedge

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)
	exp.meanRewards = []float64{1.5, 1.0}
	exp.pulls = []float64{5, 5}
	exp.t = 10

	pi := []float64{1, 0}
	neighbors := [][]float64{{0, 1}}
	fT := 2.0
	wtNorm := exp.ellipsoidNorm(pi) // 1/6

	lhs, rhs := exp.stoppingStatistic(10, fT, wtNorm, pi, neighbors)

	value, _, mult := BestResponse([]float64{0.5, 0.5}, exp.meanRewards, pi, neighbors,
		exp.estA, exp.b, Gaussian, 1)
	require.Greater(t, mult[0], 0.0, "the constraint correction must be live")

	// The gap term shrinks the estimate by the ellipsoid radius: the single
	// row [1, 1] becomes [1-r, 1-r], so shrunk.pi = 1-r.
	radius := fT * math.Sqrt(wtNorm)
	wantLHS := 10*value + mult[0]*(0.3-(1-radius))
	beta := math.Log((1 + math.Log(10)) * 2 / cfg.Delta)
	wantRHS := beta + mult[0]*(radius+1)

	assert.InDelta(t, wantLHS, lhs, 1e-9)
	assert.InDelta(t, wantRHS, rhs, 1e-9)
	assert.False(t, exp.stoppingCriterion(10, fT, wtNorm, pi, neighbors))
}

func TestConfidenceIntervalMonotone(t *testing.T) {
	cfg := DefaultConfig(2, [][]float64{{1, 0}}, []float64{0.6})
	cfg.Learner = LearnerAdaHedge

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)
	exp.Update(0, 0.7, []float64{0.5})
	exp.Update(1, 0.2, []float64{0.5})

	prevLB, prevUB := exp.confidenceInterval(0, 0.1)
	for _, threshold := range []float64{0.3, 1, 3, 10} {
		lb, ub := exp.confidenceInterval(0, threshold)

		assert.LessOrEqual(t, lb, prevLB, "threshold %v", threshold)
		assert.GreaterOrEqual(t, ub, prevUB, "threshold %v", threshold)
		prevLB, prevUB = lb, ub
	}
}

func TestExplorerAdaptiveRoundProducesPolicy(t *testing.T) {
	cfg, bandit := scenarioConfig()

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	var d Decision
	for round := 0; round < 30; round++ {
		d = exp.Act()
		rewards := bandit.SampleMeans()
		costs := bandit.SampleConstraintMatrix()
		exp.Update(d.Arm, rewards[d.Arm], column(costs, d.Arm))
	}

	require.NoError(t, d.Err)
	require.NotNil(t, d.Policy)
	require.NotNil(t, d.Diag)
	assert.Len(t, d.Diag.Allocation, 6)
	assert.GreaterOrEqual(t, d.Diag.BestResponseValue, 0.0)
}

func TestExplorerStopsOnScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("full stopping-time scenario")
	}

	cfg, bandit := scenarioConfig()

	exp, err := NewExplorer(cfg)
	require.NoError(t, err)

	res, err := RunExperiment(bandit, exp, 100000, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, res.Stopped, "stopping test never fired in %d rounds", res.StoppingTime)
	assert.True(t, res.Correct, "recommended %v, want %v", res.Policy, res.TruePolicy)
	assert.Greater(t, res.StoppingTime, 6*cfg.IniPhase)
}
