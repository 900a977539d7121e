// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/dual"
	"github.com/zeta1999/operon/numdiff"
	"github.com/zeta1999/operon/residual"
	"github.com/zeta1999/operon/tree"
)

// lmResult is the internal counterpart to Summary, carrying the fitted
// vector alongside the reporting fields.
type lmResult struct {
	x                      []float64
	iterations             int
	initialCost, finalCost float64
	termination            Termination
}

const (
	initialDamping = 1e-3
	dampingUp      = 10.0
	dampingDown    = 10.0
	costTol        = 1e-12
	stepTol        = 1e-10
)

// jacobianFunc evaluates the residual vector at x into r and the
// Jacobian (len(r) x len(x)) into J.
type jacobianFunc func(x []float64, r []float64, J *mat.Dense)

// runLM is the trust-region Levenberg-Marquardt loop shared by both
// Jacobian strategies. m is the residual count, p the parameter count.
func runLM(m, p int, x0 []float64, maxIter int, jac jacobianFunc, residualOnly func(x, r []float64), logger *Logger) lmResult {
	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	J := mat.NewDense(m, p, nil)

	residualOnly(x, r)
	cost := 0.5 * sumSquares(r)
	initialCost := cost

	if logger.enable(LogLast) {
		logger.log("lm: start cost=%g params=%d residuals=%d\n", cost, p, m)
	}

	if maxIter == 0 {
		return lmResult{x: x, iterations: 0, initialCost: initialCost, finalCost: cost, termination: Converged}
	}

	lambda := initialDamping
	trial := make([]float64, p)
	rTrial := make([]float64, m)

	iter := 0
	for ; iter < maxIter; iter++ {
		jac(x, r, J)

		delta, ok := dampedStep(J, r, lambda, m, p)
		if !ok {
			if logger.enable(LogLast) {
				logger.log("lm: singular Jacobian at iteration %d\n", iter)
			}
			return lmResult{x: x, iterations: iter, initialCost: initialCost, finalCost: cost, termination: SingularJacobian}
		}

		stepNorm := 0.0
		for i := range trial {
			trial[i] = x[i] + delta[i]
			stepNorm += delta[i] * delta[i]
		}
		stepNorm = math.Sqrt(stepNorm)

		residualOnly(trial, rTrial)
		trialCost := 0.5 * sumSquares(rTrial)

		if logger.enable(LogTrace) {
			logger.log("lm: iter=%d cost=%g trial=%g lambda=%g |step|=%g\n", iter, cost, trialCost, lambda, stepNorm)
		}
		if logger.enable(LogVerbose) {
			logger.log("lm: x=%v trial=%v\n", x, trial)
		}

		if trialCost < cost {
			copy(x, trial)
			copy(r, rTrial)
			improved := cost - trialCost
			cost = trialCost
			lambda /= dampingDown
			if lambda < 1e-12 {
				lambda = 1e-12
			}
			if improved < costTol || stepNorm < stepTol {
				iter++
				if logger.enable(LogLast) {
					logger.log("lm: converged at iteration %d cost=%g\n", iter, cost)
				}
				return lmResult{x: x, iterations: iter, initialCost: initialCost, finalCost: cost, termination: Converged}
			}
		} else {
			lambda *= dampingUp
			if lambda > 1e12 {
				if logger.enable(LogLast) {
					logger.log("lm: no progress at iteration %d, damping saturated\n", iter)
				}
				return lmResult{x: x, iterations: iter + 1, initialCost: initialCost, finalCost: cost, termination: NoProgress}
			}
		}
	}

	if logger.enable(LogLast) {
		logger.log("lm: iteration cap reached, cost=%g\n", cost)
	}
	return lmResult{x: x, iterations: iter, initialCost: initialCost, finalCost: cost, termination: MaxIterations}
}

// dampedStep solves the augmented dense-QR least-squares system
//
//	[      J      ] δ ≈ [ -r ]
//	[ √λ · I(p×p) ]     [  0 ]
//
// which is algebraically equivalent to the damped normal equations
// (JᵀJ + λI)δ = -Jᵀr, but is solved directly via QR on the tall
// augmented matrix instead of forming JᵀJ explicitly (better
// conditioned, and the dense-QR trust-region method the specification
// calls for).
func dampedStep(J *mat.Dense, r []float64, lambda float64, m, p int) ([]float64, bool) {
	a := mat.NewDense(m+p, p, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, J.At(i, j))
		}
	}
	sqrtLambda := math.Sqrt(lambda)
	for i := 0; i < p; i++ {
		a.Set(m+i, i, sqrtLambda)
	}

	b := mat.NewVecDense(m+p, nil)
	for i := 0; i < m; i++ {
		b.SetVec(i, -r[i])
	}

	var delta mat.VecDense
	if err := delta.SolveVec(a, b); err != nil {
		return nil, false
	}

	out := make([]float64, p)
	for i := range out {
		out[i] = delta.AtVec(i)
	}
	return out, true
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

// runAutodiff drives the LM loop with a forward-mode dual functor: one
// Evaluate pass over the dual residual functor yields both the residual
// vector and the full Jacobian, since each Dual already carries its row
// of partials with respect to every parameter.
func runAutodiff(t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, coeffs []float64, maxIter int, logger *Logger) lmResult {
	p := len(coeffs)
	m := rng.Size

	dualFunctor := residual.New[dual.Dual](t, ds, target, rng, dual.DualBuilder{N: p})
	scalarFunctor := residual.New[dual.Scalar](t, ds, target, rng, dual.ScalarBuilder{})

	buf := make([]dual.Dual, m)
	jac := func(x []float64, r []float64, J *mat.Dense) {
		dualFunctor.Evaluate(x, buf)
		for i, d := range buf {
			r[i] = d.Value
			for j := 0; j < p; j++ {
				J.Set(i, j, d.Grad[j])
			}
		}
	}

	residualOnly := scalarResidualFunc(scalarFunctor)

	return runLM(m, p, coeffs, maxIter, jac, residualOnly, logger)
}

// runNumeric drives the LM loop with numdiff.ApproxSpec (kept from the
// teacher, adapted) supplying the Jacobian by central differences over
// the plain-scalar residual functor.
func runNumeric(t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, coeffs []float64, maxIter int, logger *Logger) lmResult {
	p := len(coeffs)
	m := rng.Size

	scalarFunctor := residual.New[dual.Scalar](t, ds, target, rng, dual.ScalarBuilder{})
	residualOnly := scalarResidualFunc(scalarFunctor)

	approx := &numdiff.ApproxSpec{
		N:      p,
		M:      m,
		Object: residualOnly,
		Method: numdiff.Central,
	}
	diff := make([]float64, p*m)

	jac := func(x []float64, r []float64, J *mat.Dense) {
		xCopy := append([]float64(nil), x...)
		if err := approx.Diff(xCopy, diff); err != nil {
			// Diff only fails on malformed dimensions, which cannot
			// happen here since N, M and the buffer sizes are fixed
			// above; treat a defensive failure as a locally flat
			// Jacobian instead of panicking. The damped solve then
			// yields a zero step, which is never accepted, so the loop
			// ends with NoProgress or MaxIterations.
			for i := range diff {
				diff[i] = 0
			}
		}
		residualOnly(x, r)
		for i := 0; i < m; i++ {
			for j := 0; j < p; j++ {
				J.Set(i, j, diff[j+i*p])
			}
		}
	}

	return runLM(m, p, coeffs, maxIter, jac, residualOnly, logger)
}

// scalarResidualFunc adapts a residual.Functor[dual.Scalar] to the flat
// []float64 -> []float64 callback shape numdiff.ApproxSpec.Object and
// the LM loop's residualOnly hook both expect.
func scalarResidualFunc(f *residual.Functor[dual.Scalar]) func(x, y []float64) {
	buf := make([]dual.Scalar, f.NumResiduals())
	return func(x, y []float64) {
		f.Evaluate(x, buf)
		for i, v := range buf {
			y[i] = float64(v)
		}
	}
}
