package cge

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

//////
// Experiment harness.
//////

// correctTol is the coordinate-wise tolerance at which a recommended policy
// counts as the true optimum.
const correctTol = 1e-3

// ExperimentResult is the outcome of a single trial.
type ExperimentResult struct {
	// StoppingTime is the number of rounds until the stopping test fired, or
	// the round budget if it never did.
	StoppingTime int

	// Stopped reports whether the stopping test fired within the budget.
	Stopped bool

	// Correct reports whether the recommendation matches the true optimal
	// policy coordinate-wise within 1e-3.
	Correct bool

	// Policy is the recommended policy at stopping.
	Policy []float64

	// TruePolicy is the optimal policy under the true means and constraints.
	TruePolicy []float64

	// Violations counts the rounds whose recommendation violated the true
	// constraints beyond tolerance.
	Violations int

	// RegretTrace is the per-round simple regret of the recommendation
	// against the true optimum. Warm-up and frozen rounds repeat the previous
	// entry.
	RegretTrace []float64

	// Elapsed is the wall-clock duration of the trial.
	Elapsed time.Duration
}

// RunExperiment runs one trial: the explorer against the bandit until the
// stopping test fires or maxRounds is exhausted. Rounds whose decision carries
// a nil policy (warm-up or a failed optimization) reuse the previous
// recommendation, per the freeze semantics of Act.
func RunExperiment(bandit Bandit, explorer *Explorer, maxRounds int, log zerolog.Logger) (*ExperimentResult, error) {
	start := time.Now()

	truth := bandit.Constraints()
	truePi, _, err := SolvePolicy(bandit.Means(), truth.A, truth.B)
	if err != nil {
		return nil, fmt.Errorf("experiment: true optimum: %w", err)
	}
	trueMeans := bandit.Means()
	trueValue := floats.Dot(trueMeans, truePi)

	res := &ExperimentResult{TruePolicy: truePi}

	var policy []float64
	var regret float64

	for round := 0; round < maxRounds; round++ {
		d := explorer.Act()
		if d.Err != nil {
			log.Warn().Err(d.Err).Int("round", round).Msg("round frozen")
		}
		if d.Policy != nil {
			policy = d.Policy
			regret = trueValue - floats.Dot(trueMeans, policy)
			if violates(truth.A, truth.B, policy) {
				res.Violations++
			}
		}
		res.RegretTrace = append(res.RegretTrace, regret)

		rewards := bandit.SampleMeans()
		costs := bandit.SampleConstraintMatrix()
		explorer.Update(d.Arm, rewards[d.Arm], column(costs, d.Arm))

		if d.Stop {
			res.Stopped = true
			break
		}
	}

	res.StoppingTime = explorer.Round()
	res.Policy = policy
	res.Correct = policy != nil && allClose(policy, truePi, 0, correctTol)
	res.Elapsed = time.Since(start)

	log.Info().
		Int("stopping_time", res.StoppingTime).
		Bool("stopped", res.Stopped).
		Bool("correct", res.Correct).
		Int("violations", res.Violations).
		Dur("elapsed", res.Elapsed).
		Msg("trial finished")

	return res, nil
}

// TrialStats aggregates repeated trials of one scenario.
type TrialStats struct {
	Trials       int
	Correct      int
	MeanStop     float64
	MedianStop   float64
	StdDevStop   float64
	MeanElapsed  time.Duration
	TotalElapsed time.Duration
}

// RunTrials runs the scenario's trial count with one shared bandit stream and
// a distinct explorer seed per trial, then aggregates stopping times.
func RunTrials(sc *Scenario, log zerolog.Logger) (*TrialStats, error) {
	bandit, err := sc.Bandit()
	if err != nil {
		return nil, err
	}

	stats := &TrialStats{Trials: sc.Trials}
	stops := make([]float64, 0, sc.Trials)

	for trial := 0; trial < sc.Trials; trial++ {
		cfg, err := sc.Config()
		if err != nil {
			return nil, err
		}
		cfg.InitialConstraints = bandit.SampleConstraintMatrix()
		cfg.Seed = sc.Seed + uint64(trial)

		explorer, err := NewExplorer(cfg)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		res, err := RunExperiment(bandit, explorer, sc.MaxRounds, log.With().Int("trial", trial).Logger())
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		stops = append(stops, float64(res.StoppingTime))
		if res.Correct {
			stats.Correct++
		}
		stats.TotalElapsed += res.Elapsed
	}

	sort.Float64s(stops)
	stats.MeanStop = stat.Mean(stops, nil)
	stats.MedianStop = stat.Quantile(0.5, stat.Empirical, stops, nil)
	stats.StdDevStop = stat.StdDev(stops, nil)
	if sc.Trials > 0 {
		stats.MeanElapsed = stats.TotalElapsed / time.Duration(sc.Trials)
	}

	return stats, nil
}

// Scenario is the YAML description of an experiment: the true instance plus
// the explorer configuration and trial budget.
type Scenario struct {
	Means       []float64   `yaml:"means"`
	Constraints [][]float64 `yaml:"constraints"`
	Bounds      []float64   `yaml:"bounds"`

	Delta       float64 `yaml:"delta"`
	Sigma       float64 `yaml:"sigma"`
	Model       string  `yaml:"model"`
	Tracking    string  `yaml:"tracking"`
	Learner     string  `yaml:"learner"`
	IniPhase    int     `yaml:"ini_phase"`
	Restricted  *bool   `yaml:"restricted"`
	LossRescale float64 `yaml:"loss_rescale"`

	Seed      uint64 `yaml:"seed"`
	MaxRounds int    `yaml:"max_rounds"`
	Trials    int    `yaml:"trials"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}

	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Means) < 2 {
		return fmt.Errorf("need at least 2 means, got %d", len(sc.Means))
	}
	if len(sc.Constraints) != len(sc.Bounds) {
		return fmt.Errorf("%d constraint rows vs %d bounds", len(sc.Constraints), len(sc.Bounds))
	}
	for i, row := range sc.Constraints {
		if len(row) != len(sc.Means) {
			return fmt.Errorf("constraint row %d has %d columns, want %d", i, len(row), len(sc.Means))
		}
	}

	return nil
}

// Config builds the explorer configuration for the scenario. Unset fields
// fall back to the package defaults.
func (sc *Scenario) Config() (Config, error) {
	cfg := DefaultConfig(len(sc.Means), copyMatrix(sc.Constraints), copyFloats(sc.Bounds))

	if sc.Delta > 0 {
		cfg.Delta = sc.Delta
	}
	if sc.Sigma > 0 {
		cfg.Sigma = sc.Sigma
	}
	if sc.IniPhase > 0 {
		cfg.IniPhase = sc.IniPhase
	}
	if sc.LossRescale > 0 {
		cfg.LossRescale = sc.LossRescale
	}
	if sc.Restricted != nil {
		cfg.RestrictedExploration = *sc.Restricted
	}
	cfg.Seed = sc.Seed

	switch sc.Model {
	case "", "gaussian":
		cfg.Model = Gaussian
	case "bernoulli":
		cfg.Model = Bernoulli
	default:
		return Config{}, fmt.Errorf("unknown model %q", sc.Model)
	}

	switch sc.Tracking {
	case "", "d":
		cfg.Tracking = DTracking
	case "c":
		cfg.Tracking = CTracking
	default:
		return Config{}, fmt.Errorf("unknown tracking rule %q", sc.Tracking)
	}

	switch sc.Learner {
	case "", "adagrad":
		cfg.Learner = LearnerAdaGrad
	case "adahedge":
		cfg.Learner = LearnerAdaHedge
	case "ogd":
		cfg.Learner = LearnerOGD
	default:
		return Config{}, fmt.Errorf("unknown learner %q", sc.Learner)
	}

	return cfg, nil
}

// Bandit builds the environment for the scenario.
func (sc *Scenario) Bandit() (Bandit, error) {
	switch sc.Model {
	case "bernoulli":
		for i, p := range sc.Means {
			if p < 0 || p > 1 {
				return nil, fmt.Errorf("bernoulli mean %d out of [0,1]: %v", i, p)
			}
		}
		return NewBernoulliBandit(sc.Means, sc.Constraints, sc.Bounds, sc.Seed), nil
	case "", "gaussian":
		sigma := sc.Sigma
		if sigma <= 0 {
			sigma = 1
		}
		return NewGaussianBandit(sc.Means, sc.Constraints, sc.Bounds, sigma, sc.Seed), nil
	default:
		return nil, fmt.Errorf("unknown model %q", sc.Model)
	}
}

// violates reports whether pi breaks any constraint beyond tolerance.
func violates(a [][]float64, b []float64, pi []float64) bool {
	for i, row := range a {
		if floats.Dot(row, pi) > b[i]+feasTol {
			return true
		}
	}

	return false
}
