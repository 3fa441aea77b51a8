package cge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

//////
// Explorer.
//////

// Grid bounds for the Gaussian confidence search. Means outside this range are
// outside the regime the algorithm is calibrated for.
const (
	gaussianUpper = 10
	gaussianLower = -1
)

// bernoulliMeanClip keeps Bernoulli mean estimates away from {0,1} so the KL
// terms in the loss stay finite.
const bernoulliMeanClip = 1e-4

// bernoulliIniPhase is the minimum warm-up passes for Bernoulli runs; fewer
// leaves all-zero or all-one estimates that stall the confidence search.
const bernoulliIniPhase = 10

// explorerState is the phase of the round loop.
type explorerState int

const (
	stateWarmup explorerState = iota
	stateAdaptive
	stateStopped
)

// Explorer drives the sequential identification loop: it owns the empirical
// state (pull counts, mean estimates, constraint estimates), the allocation
// learner, the neighbor cache and the random stream, and exposes the
// Act/Update round protocol.
//
// Usage example:
//
//	exp, err := NewExplorer(cfg)
//	if err != nil { ... }
//
//	for !exp.Stopped() {
//		d := exp.Act()
//		if d.Policy == nil && d.Err == nil {
//			// warm-up round
//		}
//		reward, cost := env.Sample(d.Arm)
//		exp.Update(d.Arm, reward, cost)
//	}
type Explorer struct {
	cfg Config

	n        int
	iniPhase int

	state explorerState
	t     int

	pulls       []float64
	meanRewards []float64
	estA        [][]float64
	b           []float64

	learner   AllocationLearner
	neighbors map[string][][]float64
	cumTarget []float64

	lastArm int
}

// NewExplorer validates the configuration and builds an Explorer in the
// warm-up state. The allocation learner is constructed here: the constrained
// AdaGrad variant receives the constraint polytope shrunk by the round-zero
// confidence radius, the other two are unconstrained.
func NewExplorer(cfg Config) (*Explorer, error) {
	n := cfg.NumArms
	if n < 2 {
		return nil, fmt.Errorf("explorer: need at least 2 arms, got %d", n)
	}
	if len(cfg.InitialConstraints) != len(cfg.ConstraintBounds) {
		return nil, fmt.Errorf("explorer: %d constraint rows vs %d bounds",
			len(cfg.InitialConstraints), len(cfg.ConstraintBounds))
	}
	for i, row := range cfg.InitialConstraints {
		if len(row) != n {
			return nil, fmt.Errorf("explorer: constraint row %d has %d columns, want %d", i, len(row), n)
		}
	}
	if cfg.Delta <= 0 || cfg.Delta >= 1 {
		return nil, fmt.Errorf("explorer: delta must be in (0,1), got %v", cfg.Delta)
	}

	iniPhase := cfg.IniPhase
	if iniPhase < 1 {
		iniPhase = 1
	}
	if cfg.Model == Bernoulli && iniPhase < bernoulliIniPhase {
		iniPhase = bernoulliIniPhase
	}

	e := &Explorer{
		cfg:         cfg,
		n:           n,
		iniPhase:    iniPhase,
		pulls:       make([]float64, n),
		meanRewards: make([]float64, n),
		estA:        copyMatrix(cfg.InitialConstraints),
		b:           copyFloats(cfg.ConstraintBounds),
		neighbors:   make(map[string][][]float64),
	}

	switch cfg.Learner {
	case LearnerAdaHedge:
		e.learner = NewAdaHedge(n, cfg.LossRescale)
	case LearnerOGD:
		e.learner = NewOnlineGradientDescent(n)
	default:
		// Round-zero confidence radius for the learner polytope.
		nf := float64(n)
		f0 := 1 + math.Sqrt(0.5*math.Log(2*nf/cfg.Delta))
		w0 := 2 * nf * math.Log(1+1/nf)
		g, h := stackConstraints(shiftMatrix(e.estA, f0*math.Sqrt(w0)), e.b, n)

		learner, err := NewAdaGrad(g, h, cfg.LossRescale)
		if err != nil {
			return nil, fmt.Errorf("explorer: %w", err)
		}
		e.learner = learner
	}

	return e, nil
}

// Round returns the number of completed rounds.
func (e *Explorer) Round() int { return e.t }

// Stopped reports whether the stopping test has fired.
func (e *Explorer) Stopped() bool { return e.state == stateStopped }

// Pulls returns a copy of the per-arm pull counts.
func (e *Explorer) Pulls() []float64 { return copyFloats(e.pulls) }

// MeanRewards returns a copy of the running mean reward estimates.
func (e *Explorer) MeanRewards() []float64 { return copyFloats(e.meanRewards) }

// ConstraintEstimate returns a copy of the running constraint estimate.
func (e *Explorer) ConstraintEstimate() [][]float64 { return copyMatrix(e.estA) }

// Act runs one round of the state machine and returns the decision: the arm
// to sample, the stopping flag, and the recommended policy.
//
// During warm-up the arms are cycled deterministically and Policy is nil. In
// the adaptive phase a nil Policy with a non-nil Err means the round's
// optimization failed; the previous arm and recommendation are carried in the
// decision and no internal state is mutated, so the caller can simply keep
// going.
func (e *Explorer) Act() Decision {
	if e.state == stateWarmup {
		if e.t < e.n*e.iniPhase {
			e.lastArm = e.t % e.n
			return Decision{Arm: e.lastArm}
		}
		e.state = stateAdaptive
	}

	tf := float64(e.t)
	nf := float64(e.n)

	// Confidence radius terms for this round.
	fT := 1 + math.Sqrt(0.5*math.Log(2*nf/e.cfg.Delta+(nf/4)*math.Log(1+tf/nf)))
	wBonus := 2 * nf * math.Log(1+1/(nf+tf))

	shrunkLP := shiftMatrix(e.estA, fT*math.Sqrt(wBonus))
	pi, active, err := SolvePolicy(e.meanRewards, shrunkLP, e.b)
	if err != nil {
		return e.frozen(err)
	}

	neighbors := e.cachedNeighbors(pi, active)

	wtNorm := e.ellipsoidNorm(pi)
	shrunkBR := shiftMatrix(e.estA, fT*math.Sqrt(wtNorm))

	weights := e.learner.Weights()
	if e.cfg.RestrictedExploration {
		weights, err = ProjectFeasible(weights, shrunkBR, e.b)
		if err != nil {
			return e.frozen(err)
		}
	}

	value, instance, mult := BestResponse(weights, e.meanRewards, pi, neighbors,
		shrunkBR, e.b, e.cfg.Model, e.cfg.Sigma)

	// Per-arm loss: exploration-forcing term vs the two KL terms from the
	// confidence bounds to the worst-case alternative, plus the constraint
	// correction from the multipliers.
	ftLog := math.Log(tf)
	loss := make([]float64, e.n)
	for a := 0; a < e.n; a++ {
		lb, ub := e.confidenceInterval(a, ftLog/e.pulls[a])
		loss[a] = math.Max(ftLog/e.pulls[a],
			math.Max(e.kl(lb, instance[a]), e.kl(ub, instance[a])))
	}
	corr := vecMat(mult, shrunkBR)
	signed := make([]float64, e.n)
	for a := range signed {
		signed[a] = -(loss[a] + corr[a])
	}
	e.learner.Update(signed)

	arm := e.chooseArm(tf, weights)

	stop := e.stoppingCriterion(tf, fT, wtNorm, pi, neighbors)
	if stop {
		e.state = stateStopped
	}

	e.lastArm = arm

	return Decision{
		Arm:    arm,
		Stop:   stop,
		Policy: pi,
		Diag: &Diagnostics{
			BestResponseValue:    value,
			BestResponseInstance: instance,
			Multipliers:          mult,
			Allocation:           weights,
			OptimalPolicy:        pi,
		},
	}
}

// Update folds one observation into the empirical state: reward is the sample
// from the pulled arm, cost is the sampled constraint-contribution column of
// that arm (one entry per constraint row).
func (e *Explorer) Update(arm int, reward float64, cost []float64) {
	e.t++
	e.pulls[arm]++

	k := e.pulls[arm]
	e.meanRewards[arm] += (reward - e.meanRewards[arm]) / k
	if e.cfg.Model == Bernoulli {
		e.meanRewards[arm] = clip(e.meanRewards[arm], bernoulliMeanClip, 1-bernoulliMeanClip)
	}

	for j := range e.estA {
		e.estA[j][arm] += (cost[j] - e.estA[j][arm]) / k
	}
}

// frozen wraps a round failure into a decision that repeats the previous arm
// and recommendation without mutating any state.
func (e *Explorer) frozen(err error) Decision {
	return Decision{
		Arm:    e.lastArm,
		Policy: nil,
		Err:    fmt.Errorf("round %d: %w", e.t, err),
	}
}

// cachedNeighbors returns the neighbor set of the policy, computing and
// caching it on first sight. The cache is keyed by the policy value, not the
// drifting constraint estimate; recomputation per estimate would dominate the
// round cost for a negligible accuracy gain.
func (e *Explorer) cachedNeighbors(pi []float64, active *ActiveSet) [][]float64 {
	key := canonicalKey(pi)
	if cached, ok := e.neighbors[key]; ok {
		return cached
	}

	nb := Neighbors(pi, active.G, active.H, active.Slack)
	e.neighbors[key] = nb

	return nb
}

// confidenceInterval returns the per-arm lower and upper confidence bounds:
// the points where the model KL from the empirical mean crosses the threshold,
// found by bisection over a fine grid on either side of the mean.
func (e *Explorer) confidenceInterval(arm int, threshold float64) (float64, float64) {
	mu := e.meanRewards[arm]

	lo, hi := float64(gaussianLower), float64(gaussianUpper)
	if e.cfg.Model == Bernoulli {
		lo, hi = bernoulliMeanClip, 1-bernoulliMeanClip
	}

	lb := bisectGrid(mu, linspace(mu, lo, confidenceGridSize), threshold, e.kl)
	ub := bisectGrid(mu, linspace(mu, hi, confidenceGridSize), threshold, e.kl)

	return lb, ub
}

// kl is the model divergence between two means.
func (e *Explorer) kl(x, y float64) float64 {
	if e.cfg.Model == Bernoulli {
		return klBernoulli(x, y)
	}

	return klGaussian(x, y, e.cfg.Sigma)
}

// chooseArm applies forced exploration and the configured tracking rule.
func (e *Explorer) chooseArm(tf float64, weights []float64) int {
	if e.cfg.Tracking == DTracking {
		// Forced exploration keeps every count growing like sqrt(t), which
		// the confidence bounds require.
		if floats.Min(e.pulls) < math.Sqrt(tf)-float64(e.n)/2 {
			return argmin(e.pulls)
		}

		gap := make([]float64, e.n)
		for i := range gap {
			gap[i] = e.pulls[i] - tf*weights[i]
		}
		return argmin(gap)
	}

	// Cumulative tracking: inflate the allocation toward uniform, accumulate,
	// and play the most under-tracked arm.
	eps := 1 / (2 * math.Sqrt(tf+float64(e.n*e.n)))
	if e.cumTarget == nil {
		e.cumTarget = make([]float64, e.n)
	}
	for i := range e.cumTarget {
		e.cumTarget[i] += (weights[i] + eps) / (1 + float64(e.n)*eps)
	}

	gap := make([]float64, e.n)
	floats.SubTo(gap, e.pulls, e.cumTarget)

	return argmin(gap)
}

// ellipsoidNorm is pi . Gram^{-1} . pi. The Gram accumulator starts at the
// identity and gains one arm-indicator outer product per pull, so it stays
// diagonal with entries 1 + pulls and the inverse is closed-form.
func (e *Explorer) ellipsoidNorm(pi []float64) float64 {
	var norm float64
	for i, p := range pi {
		norm += p * p / (1 + e.pulls[i])
	}

	return norm
}

// stoppingCriterion evaluates the generalized likelihood-ratio test at the
// empirical allocation: accumulated evidence t*value, corrected for the
// constraint gap, must clear a log-growing threshold inflated by the
// multiplier and ellipsoid uncertainty.
func (e *Explorer) stoppingCriterion(tf, fT, wtNorm float64, pi []float64, neighbors [][]float64) bool {
	lhs, rhs := e.stoppingStatistic(tf, fT, wtNorm, pi, neighbors)

	return lhs > rhs
}

// stoppingStatistic computes both sides of the stopping test. The constraint
// gap term shrinks the estimate by the ellipsoid radius f_t*sqrt(w_t_norm),
// not the exploration-bonus radius the policy oracle uses.
func (e *Explorer) stoppingStatistic(tf, fT, wtNorm float64, pi []float64, neighbors [][]float64) (float64, float64) {
	empirical := make([]float64, e.n)
	for i, p := range e.pulls {
		empirical[i] = p / tf
	}

	value, _, mult := BestResponse(empirical, e.meanRewards, pi, neighbors,
		e.estA, e.b, e.cfg.Model, e.cfg.Sigma)

	radius := fT * math.Sqrt(wtNorm)
	gap := matVec(shiftMatrix(e.estA, radius), pi)
	floats.SubTo(gap, e.b, gap) // b - shrunk*pi

	beta := math.Log((1 + math.Log(tf)) * 2 / e.cfg.Delta)
	lhs := tf*value + floats.Dot(mult, gap)
	rhs := beta + floats.Sum(mult)*(radius+1)

	return lhs, rhs
}

// canonicalKey renders a policy as a cache key with 9-decimal coordinates, so
// numerically identical vertices reached through different estimates share a
// neighbor set.
func canonicalKey(pi []float64) string {
	var sb strings.Builder
	for i, v := range pi {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strconv.FormatFloat(math.Round(v*1e9)/1e9, 'f', 9, 64))
	}

	return sb.String()
}
