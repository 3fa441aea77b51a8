package cge

import "errors"

//////
// Error taxonomy.
//////

// ErrInfeasibleProjection is returned when no point satisfies the stacked
// constraint system handed to ProjectFeasible. It indicates a misconfigured
// constraint system and is fatal for the call; callers must propagate it
// rather than silently return an invalid point.
var ErrInfeasibleProjection = errors.New("cge: projection target set is infeasible")

// ErrNoOptimalPolicy is returned when the per-round linear program is
// infeasible or the solver fails to converge. It is non-fatal: the explorer
// freezes the round's decision to the previous one and keeps sampling.
var ErrNoOptimalPolicy = errors.New("cge: no optimal policy for current estimates")

// ErrGameUnsolved is returned when every rung of the tolerance/restart ladder
// in SolveGame fails to converge. Handled like ErrNoOptimalPolicy.
var ErrGameUnsolved = errors.New("cge: allocation game did not converge")

// errDegenerateBasis marks a rank-deficient candidate basis during neighbor
// enumeration. It is not an error condition: degenerate bases are simply
// excluded from the neighbor set, so it never crosses the package boundary.
var errDegenerateBasis = errors.New("cge: degenerate basis")
