package cge

//////
// Const, vars, types.
//////

// Numerical constants shared across the package. They mirror the tolerances
// the algorithm is specified against and should not be tuned per call site.
const (
	// precision is the floor added to any denominator that could vanish
	// (weight vectors, normalizers). Values below it are treated as zero.
	precision = 1e-12

	// feasTol is the tolerance used for every feasibility check: a policy x
	// is accepted when Ax <= b + feasTol and |sum(x) - 1| <= feasTol.
	feasTol = 1e-5

	// activeTol decides whether a stacked constraint is active at a vertex:
	// a slack with absolute value below it counts as zero.
	activeTol = 1e-9

	// confidenceGridSize is the number of grid points used by the monotone
	// root search that produces per-arm confidence bounds.
	confidenceGridSize = 5000
)

// NoiseModel selects the observation noise model assumed by the divergence
// projections, the confidence bounds and the stopping rule.
type NoiseModel int

const (
	// Gaussian assumes unit-scale Gaussian rewards. Projections onto the
	// separating hyperplane have a closed form.
	Gaussian NoiseModel = iota

	// Bernoulli assumes {0,1} rewards. Projections are solved numerically
	// and mean estimates are clipped away from the boundary.
	Bernoulli
)

// String returns the YAML/CLI name of the noise model.
func (m NoiseModel) String() string {
	switch m {
	case Bernoulli:
		return "bernoulli"
	default:
		return "gaussian"
	}
}

// TrackingRule selects how the explorer converts the learned allocation into
// a concrete arm choice each round.
type TrackingRule int

const (
	// DTracking plays argmin(pulls - t*allocation) and force-plays the
	// least-pulled arm whenever some count falls below sqrt(t) - arms/2.
	DTracking TrackingRule = iota

	// CTracking accumulates a slightly inflated allocation over time and
	// plays the arm most under-tracked relative to the cumulative target.
	CTracking
)

// LearnerKind selects the online algorithm used by the allocation player.
type LearnerKind int

const (
	// LearnerAdaGrad is the constrained full-matrix AdaGrad variant. It is
	// the default: more expensive per round, but it adapts curvature per arm
	// and keeps the allocation inside the constraint polytope.
	LearnerAdaGrad LearnerKind = iota

	// LearnerAdaHedge is the AdaHedge exponential-weights variant with an
	// adaptive learning rate. It ignores side constraints.
	LearnerAdaHedge

	// LearnerOGD is plain online gradient descent with a 1/sqrt(t) step and
	// a simplex projection. Provided as a lightweight fallback.
	LearnerOGD
)

// AllocationLearner is the contract shared by the three allocation-player
// variants. Weights is a pure read; Update mutates internal state using the
// most recent round's per-arm loss.
//
// Implementations:
// - AdaHedge: adaptive exponential weights (sublinear regret)
// - AdaGrad: full-matrix preconditioning plus polytope re-projection
// - OnlineGradientDescent: subgradient step plus simplex projection
type AllocationLearner interface {
	// Weights returns the current allocation proposal. The returned slice is
	// a copy; callers may mutate it freely.
	Weights() []float64

	// Update consumes the per-arm loss observed for the weights returned by
	// the preceding Weights call.
	Update(loss []float64)
}

// ConstraintSystem bundles the linear constraints A x <= b that every policy
// must satisfy, on top of the implicit probability simplex. The column count
// of A equals the arm count; shapes are fixed for the life of a run.
type ConstraintSystem struct {
	// A holds one row per constraint and one column per arm.
	A [][]float64

	// B holds the right-hand side, one entry per row of A.
	B []float64
}

// ActiveSet reports the constraint structure at an LP optimum: the fully
// stacked inequality system that was actually solved (original rows plus the
// simplex encoding) and the slack of each stacked row at the solution. A zero
// slack marks an active constraint.
type ActiveSet struct {
	// G is the stacked constraint matrix [A; -I; 1^T; -1^T].
	G [][]float64

	// H is the stacked right-hand side [b; 0; 1; -1].
	H []float64

	// Slack is H - G*x at the optimum, entry-wise non-negative up to
	// numerical tolerance.
	Slack []float64
}

// Diagnostics carries the per-round internals of an adaptive round, for
// logging and analysis. All slices are owned by the caller of Act.
type Diagnostics struct {
	// BestResponseValue is the minimal divergence to a confusing alternative
	// at the current allocation.
	BestResponseValue float64

	// BestResponseInstance is the alternative mean vector achieving it.
	BestResponseInstance []float64

	// Multipliers are the Lagrange multipliers of the constraint correction.
	Multipliers []float64

	// Allocation is the (possibly re-projected) allocation used this round.
	Allocation []float64

	// OptimalPolicy is the LP-optimal policy under current estimates.
	OptimalPolicy []float64
}

// Decision is the outcome of one Explorer.Act call.
//
// Policy is nil in exactly two cases: during the warm-up phase, and when the
// round's optimization failed (Err is then non-nil). In both cases the caller
// should reuse its previously observed (arm, stop, policy) triple rather than
// treat the round as terminal.
type Decision struct {
	// Arm is the arm to sample this round.
	Arm int

	// Stop reports whether the stopping statistic cleared its threshold.
	Stop bool

	// Policy is the currently recommended policy, or nil (see above).
	Policy []float64

	// Diag holds round internals when the round completed adaptively.
	Diag *Diagnostics

	// Err records why the round could not produce a fresh decision. It wraps
	// ErrNoOptimalPolicy or ErrInfeasibleProjection; the round loop must not
	// abort on it.
	Err error
}

// Config holds the constructor parameters of an Explorer. Shapes are fixed at
// construction; means and constraint coefficients are estimated online.
//
// Usage example:
//
//	cfg := DefaultConfig(6, aInit, []float64{0.5, 0.5})
//	cfg.Delta = 0.01
//	cfg.Seed = 42
//	exp, err := NewExplorer(cfg)
type Config struct {
	// NumArms is the number of arms. Must match the column count of
	// InitialConstraints.
	NumArms int

	// InitialConstraints is the initial estimate of the constraint matrix,
	// one row per constraint, one column per arm. It seeds the online
	// estimator and is not read again after construction.
	InitialConstraints [][]float64

	// ConstraintBounds is the (known) right-hand side b.
	ConstraintBounds []float64

	// Delta is the confidence parameter: the recommendation is correct with
	// probability at least 1-Delta.
	Delta float64

	// IniPhase is how many times each arm is played round-robin before the
	// adaptive phase starts. Bernoulli runs override it to 10 to avoid
	// degenerate all-zero or all-one estimates.
	IniPhase int

	// Sigma is the noise scale of the Gaussian model.
	Sigma float64

	// RestrictedExploration re-projects the learned allocation onto the
	// confidence-shrunk feasible region each round.
	RestrictedExploration bool

	// Model selects the assumed noise model.
	Model NoiseModel

	// Tracking selects the tracking rule.
	Tracking TrackingRule

	// Learner selects the allocation-player variant.
	Learner LearnerKind

	// LossRescale rescales learner losses to avoid numerical issues in the
	// exponential-weights update. The default is 0.01.
	LossRescale float64

	// Seed is the trial's random seed, varied per trial by the harness. The
	// round loop is deterministic given its observations, so reproducing a
	// run needs this seed only where the environment stream is derived from
	// it.
	Seed uint64
}

// DefaultConfig returns a configuration with the defaults the algorithm was
// validated with: Gaussian noise, delta 0.01, unit sigma, one warm-up pass,
// restricted exploration, D-tracking and the constrained AdaGrad learner.
func DefaultConfig(numArms int, initialConstraints [][]float64, bounds []float64) Config {
	return Config{
		NumArms:               numArms,
		InitialConstraints:    initialConstraints,
		ConstraintBounds:      bounds,
		Delta:                 0.01,
		IniPhase:              1,
		Sigma:                 1,
		RestrictedExploration: true,
		Model:                 Gaussian,
		Tracking:              DTracking,
		Learner:               LearnerAdaGrad,
		LossRescale:           0.01,
		Seed:                  1,
	}
}
