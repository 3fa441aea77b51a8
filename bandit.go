package cge

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Bandit environments.
//////

// Bandit is a sampling environment: it knows the true means and the true
// constraint matrix, and produces noisy observations of both. Each
// implementation owns a seeded random stream, so a fixed seed reproduces the
// whole observation sequence.
type Bandit interface {
	// Means returns the true mean rewards.
	Means() []float64

	// Constraints returns the true constraint system.
	Constraints() ConstraintSystem

	// SampleMeans draws one noisy reward per arm.
	SampleMeans() []float64

	// SampleConstraintMatrix draws one noisy observation of the full
	// constraint matrix.
	SampleConstraintMatrix() [][]float64
}

// GaussianBandit draws rewards from per-arm Gaussians with common scale sigma
// and constraint observations from unit-scale Gaussians centered at the true
// coefficients.
type GaussianBandit struct {
	means  []float64
	system ConstraintSystem
	sigma  float64
	src    rand.Source
}

// NewGaussianBandit returns a Gaussian environment over the given true means
// and constraints.
func NewGaussianBandit(means []float64, a [][]float64, b []float64, sigma float64, seed uint64) *GaussianBandit {
	return &GaussianBandit{
		means:  copyFloats(means),
		system: ConstraintSystem{A: copyMatrix(a), B: copyFloats(b)},
		sigma:  sigma,
		src:    rand.NewSource(seed),
	}
}

// Means returns the true mean rewards.
func (g *GaussianBandit) Means() []float64 { return copyFloats(g.means) }

// Constraints returns the true constraint system.
func (g *GaussianBandit) Constraints() ConstraintSystem {
	return ConstraintSystem{A: copyMatrix(g.system.A), B: copyFloats(g.system.B)}
}

// SampleMeans draws one noisy reward per arm.
func (g *GaussianBandit) SampleMeans() []float64 {
	out := make([]float64, len(g.means))
	for i, mu := range g.means {
		out[i] = distuv.Normal{Mu: mu, Sigma: g.sigma, Src: g.src}.Rand()
	}

	return out
}

// SampleConstraintMatrix draws a unit-scale Gaussian observation of every
// constraint coefficient.
func (g *GaussianBandit) SampleConstraintMatrix() [][]float64 {
	out := make([][]float64, len(g.system.A))
	for i, row := range g.system.A {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = distuv.Normal{Mu: v, Sigma: 1, Src: g.src}.Rand()
		}
	}

	return out
}

// BernoulliBandit draws {0,1} rewards with the true means as success
// probabilities. Constraint observations are unit-scale Gaussian, matching the
// ellipsoid model the explorer builds for them.
type BernoulliBandit struct {
	means  []float64
	system ConstraintSystem
	src    rand.Source
}

// NewBernoulliBandit returns a Bernoulli environment over the given true
// means and constraints. Means must lie in [0,1].
func NewBernoulliBandit(means []float64, a [][]float64, b []float64, seed uint64) *BernoulliBandit {
	return &BernoulliBandit{
		means:  copyFloats(means),
		system: ConstraintSystem{A: copyMatrix(a), B: copyFloats(b)},
		src:    rand.NewSource(seed),
	}
}

// Means returns the true mean rewards.
func (b *BernoulliBandit) Means() []float64 { return copyFloats(b.means) }

// Constraints returns the true constraint system.
func (b *BernoulliBandit) Constraints() ConstraintSystem {
	return ConstraintSystem{A: copyMatrix(b.system.A), B: copyFloats(b.system.B)}
}

// SampleMeans draws one Bernoulli reward per arm.
func (b *BernoulliBandit) SampleMeans() []float64 {
	out := make([]float64, len(b.means))
	for i, p := range b.means {
		out[i] = distuv.Bernoulli{P: p, Src: b.src}.Rand()
	}

	return out
}

// SampleConstraintMatrix draws a unit-scale Gaussian observation of every
// constraint coefficient.
func (b *BernoulliBandit) SampleConstraintMatrix() [][]float64 {
	out := make([][]float64, len(b.system.A))
	for i, row := range b.system.A {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = distuv.Normal{Mu: v, Sigma: 1, Src: b.src}.Rand()
		}
	}

	return out
}
