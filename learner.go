package cge

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

//////
// Allocation learners.
//////

// weightClip keeps learner weights strictly inside (0, 1) so that downstream
// divisions by weight entries stay finite.
const weightClip = 1e-12

// AdaHedge is the adaptive exponential-weights allocation player. It keeps
// dual weights theta and a monotonically non-decreasing scale gamma; each
// update grows gamma by the mixability gap of the round, then recomputes the
// weights as a numerically stabilized softmax of theta/gamma. Guarantees
// sublinear regret against the best fixed allocation in hindsight without any
// learning-rate tuning.
type AdaHedge struct {
	alpha       float64
	lossRescale float64

	w     []float64
	theta []float64
	gamma float64
	t     int
}

// NewAdaHedge returns an AdaHedge learner over d arms starting from the
// uniform allocation.
func NewAdaHedge(d int, lossRescale float64) *AdaHedge {
	w := make([]float64, d)
	for i := range w {
		w[i] = 1 / float64(d)
	}

	return &AdaHedge{
		alpha:       4,
		lossRescale: lossRescale,
		w:           w,
		theta:       make([]float64, d),
		gamma:       1e-5,
	}
}

// Weights returns the current allocation.
func (a *AdaHedge) Weights() []float64 {
	return copyFloats(a.w)
}

// Update applies one AdaHedge step for the observed per-arm loss.
func (a *AdaHedge) Update(loss []float64) {
	a.t++

	l := copyFloats(loss)
	floats.Scale(a.lossRescale, l)
	floats.Sub(a.theta, l)

	totalLoss := floats.Dot(a.w, l)

	var delta float64
	if a.t == 1 {
		delta = totalLoss - floats.Min(l) + 1e-5
	} else {
		// log-sum-exp mixability gap, computed shifted so large losses
		// cannot overflow the exponential
		g := math.Max(a.gamma, precision)
		shift := math.Inf(-1)
		for _, v := range l {
			if -v/g > shift {
				shift = -v / g
			}
		}
		var sum float64
		for i, v := range l {
			sum += a.w[i] * math.Exp(-v/g-shift)
		}
		delta = a.gamma*(shift+math.Log(sum)) + totalLoss
	}

	a.gamma += delta / (a.alpha * a.alpha)

	logits := make([]float64, len(a.theta))
	for i, th := range a.theta {
		logits[i] = th / a.gamma
	}
	a.w = softmaxStable(logits)
}

// AdaGrad is the constrained full-matrix AdaGrad allocation player. It
// accumulates the outer-product matrix of observed losses, preconditions the
// gradient step by the inverse square root of that matrix (ridge-regularized),
// and re-projects the result onto the allocation polytope by minimizing the
// L1 deviation subject to the polytope's linear constraints, one small LP
// per update. More expensive than AdaHedge but adapts curvature per arm.
type AdaGrad struct {
	eta         float64
	ridge       float64
	lossRescale float64

	d int
	t int
	w []float64
	h *mat.SymDense

	// allocation polytope G w <= H
	g  [][]float64
	hb []float64
}

// NewAdaGrad returns an AdaGrad learner constrained to {w : g w <= h}. The
// initial allocation is the uniform vector projected onto the polytope.
func NewAdaGrad(g [][]float64, h []float64, lossRescale float64) (*AdaGrad, error) {
	if len(g) == 0 {
		return nil, fmt.Errorf("adagrad: empty allocation polytope")
	}
	d := len(g[0])

	w := make([]float64, d)
	for i := range w {
		w[i] = 1 / float64(d)
	}
	w, err := ProjectFeasible(w, g, h)
	if err != nil {
		return nil, fmt.Errorf("adagrad: %w", err)
	}

	return &AdaGrad{
		eta:         1 / math.Sqrt2,
		ridge:       0.01,
		lossRescale: lossRescale,
		d:           d,
		w:           clipSlice(w, weightClip, 1-weightClip),
		h:           mat.NewSymDense(d, nil),
		g:           copyMatrix(g),
		hb:          copyFloats(h),
	}, nil
}

// Weights returns the current allocation.
func (a *AdaGrad) Weights() []float64 {
	return copyFloats(a.w)
}

// Update applies one preconditioned mirror-descent step followed by the L1
// re-projection onto the allocation polytope.
func (a *AdaGrad) Update(loss []float64) {
	a.t++

	l := copyFloats(loss)
	floats.Scale(a.lossRescale, l)

	for i := 0; i < a.d; i++ {
		for j := i; j < a.d; j++ {
			a.h.SetSym(i, j, a.h.At(i, j)+l[i]*l[j])
		}
	}

	ridged := mat.NewSymDense(a.d, nil)
	ridged.CopySym(a.h)
	for i := 0; i < a.d; i++ {
		ridged.SetSym(i, i, ridged.At(i, i)+a.ridge)
	}

	var eig mat.EigenSym
	if !eig.Factorize(ridged, true) {
		return // keep the previous allocation for this round
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// target = w - eta * H^{-1/2} l
	target := copyFloats(a.w)
	for k := 0; k < a.d; k++ {
		scale := 1 / math.Sqrt(math.Max(vals[k], precision))
		var proj float64
		for j := 0; j < a.d; j++ {
			proj += vecs.At(j, k) * l[j]
		}
		for i := 0; i < a.d; i++ {
			target[i] -= a.eta * scale * vecs.At(i, k) * proj
		}
	}

	x, err := solveL1Projection(target, a.g, a.hb)
	if err != nil {
		x, err = ProjectFeasible(target, a.g, a.hb)
		if err != nil {
			return
		}
	}

	a.w = clipSlice(x, weightClip, 1-weightClip)
}

// solveL1Projection minimizes |x - target|_1 subject to g x <= h, as a linear
// program in the split variables u, v >= 0 with x = target + u - v.
func solveL1Projection(target []float64, g [][]float64, h []float64) ([]float64, error) {
	n := len(target)
	m := len(g)

	// Inequality block: [G  -G] z <= h - G target, followed by -z <= 0.
	rows := m + 2*n
	gLP := mat.NewDense(rows, 2*n, nil)
	hLP := make([]float64, rows)
	for i, row := range g {
		for j := 0; j < n; j++ {
			gLP.Set(i, j, row[j])
			gLP.Set(i, n+j, -row[j])
		}
		hLP[i] = h[i] - floats.Dot(row, target)
	}
	for j := 0; j < 2*n; j++ {
		gLP.Set(m+j, j, -1)
	}

	c := make([]float64, 2*n)
	for i := range c {
		c[i] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, gLP, hLP, nil, nil)
	_, z, err := lp.Simplex(cStd, aStd, bStd, lpTol, nil)
	if err != nil {
		return nil, fmt.Errorf("l1 projection: %w", err)
	}

	// Recover the free variables: z_j = z+_j - z-_j with the z- block offset
	// by 2n in the standard form.
	x := copyFloats(target)
	for i := 0; i < n; i++ {
		u := z[i] - z[2*n+i]
		v := z[n+i] - z[3*n+i]
		x[i] += u - v
	}

	return x, nil
}

// OnlineGradientDescent is the lightweight fallback allocation player: a
// plain subgradient step with a 1/sqrt(t) learning rate followed by a
// projection onto the plain simplex (no side constraints).
type OnlineGradientDescent struct {
	lr0        float64
	t          int
	allocation []float64
}

// NewOnlineGradientDescent returns an OGD learner over d arms starting from
// the uniform allocation with unit initial learning rate.
func NewOnlineGradientDescent(d int) *OnlineGradientDescent {
	alloc := make([]float64, d)
	for i := range alloc {
		alloc[i] = 1 / float64(d)
	}

	return &OnlineGradientDescent{lr0: 1, allocation: alloc}
}

// Weights returns the current allocation.
func (o *OnlineGradientDescent) Weights() []float64 {
	return copyFloats(o.allocation)
}

// Update applies one projected subgradient step.
func (o *OnlineGradientDescent) Update(loss []float64) {
	o.t++
	lr := o.lr0 / math.Sqrt(float64(o.t))

	floats.AddScaled(o.allocation, -lr, loss)
	o.allocation = projectSimplex(o.allocation)
}
