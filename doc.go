// Package cge implements sequential best-policy identification for
// linearly-constrained multi-armed bandits at a fixed confidence level. Each
// round it picks one arm, observes a noisy reward and a noisy estimate of the
// arm's constraint contribution, and stops once a generalized likelihood-ratio
// test certifies the recommended policy with probability at least 1-delta.
//
// # Features
//
// The package includes the following key features:
//
//   - Game-theoretic Sampling: The allocation over arms is learned online as
//     one side of a zero-sum game against the hardest-to-distinguish
//     alternative instance
//   - LP Policy Oracle: The current best policy is the optimum of a linear
//     program over the constraint polytope intersected with the simplex
//   - Polytope Neighbor Enumeration: Confusable alternative policies are the
//     vertices one pivot away from the optimum, cached per policy
//   - Two Noise Models: Gaussian (closed-form divergence projection, with a
//     constraint-uncertainty correction) and Bernoulli (numerical dual solve)
//   - Three Allocation Learners: AdaHedge, constrained full-matrix AdaGrad
//     (default), and plain online gradient descent
//   - Tracking Rules: D-tracking with forced exploration, or cumulative
//     tracking with a vanishing inflation
//   - GLR Stopping Rule: Evidence accumulates at the empirical allocation and
//     is tested against a log-growing threshold adjusted for constraint and
//     ellipsoid uncertainty
//   - Reproducibility: Every explorer and environment owns a seeded random
//     stream; a fixed seed reproduces the entire run
//
// # Installation
//
// To install the package, use:
//
//	go get github.com/thalesfsp/cge
//
// # Usage
//
// Build a configuration, an explorer and an environment, then drive the
// Act/Update round loop:
//
//	a := [][]float64{{1, 1, 0, 0, 0, 0}, {0, 0, 1, 1, 1, 0}}
//	b := []float64{0.5, 0.5}
//	means := []float64{1.5, 1, 1.5, 0.4, 0.3, 0.2}
//
//	bandit := NewGaussianBandit(means, a, b, 1, 42)
//
//	cfg := DefaultConfig(6, bandit.SampleConstraintMatrix(), b)
//	cfg.Delta = 0.01
//	cfg.Seed = 42
//
//	exp, err := NewExplorer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for !exp.Stopped() {
//	    d := exp.Act()
//	    rewards := bandit.SampleMeans()
//	    costs := bandit.SampleConstraintMatrix()
//
//	    cost := make([]float64, len(costs))
//	    for j, row := range costs {
//	        cost[j] = row[d.Arm]
//	    }
//	    exp.Update(d.Arm, rewards[d.Arm], cost)
//	}
//
// The experiment harness wraps this loop with regret and violation
// accounting; see RunExperiment and RunTrials.
//
// # Configuration
//
// The Config struct controls the explorer:
//
//	type Config struct {
//	    NumArms               int          // Number of arms
//	    InitialConstraints    [][]float64  // Initial constraint estimate
//	    ConstraintBounds      []float64    // Right-hand side b
//	    Delta                 float64      // Confidence parameter
//	    IniPhase              int          // Warm-up passes per arm
//	    Sigma                 float64      // Gaussian noise scale
//	    RestrictedExploration bool         // Re-project the allocation
//	    Model                 NoiseModel   // Gaussian | Bernoulli
//	    Tracking              TrackingRule // DTracking | CTracking
//	    Learner               LearnerKind  // AdaGrad | AdaHedge | OGD
//	    LossRescale           float64      // Learner loss rescale
//	    Seed                  uint64       // Trial seed
//	}
//
// DefaultConfig returns the validated defaults: Gaussian noise, delta 0.01,
// unit sigma, restricted exploration, D-tracking, the AdaGrad learner.
//
// # Failure Semantics
//
// A round whose linear program or projection fails returns a Decision with a
// nil Policy and a wrapped sentinel error (ErrNoOptimalPolicy,
// ErrInfeasibleProjection, ErrGameUnsolved). The caller reuses its previous
// decision and keeps sampling; the round loop never panics on a failed round.
package cge
