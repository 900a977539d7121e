// Package numdiff estimates the Jacobian of a vector-valued function by
// finite differences. It backs the "numeric" Jacobian mode of the
// coefficient optimizer: the Object callback is wired to a residual
// functor so that ApproxSpec.Diff produces the Jacobian the trust-region
// loop needs when forward-mode autodiff is disabled.
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

// Method selects the finite-difference stencil.
type Method int

const (
	// Forward uses the first-order-accurate one-sided difference.
	Forward Method = iota
	// Central uses the second-order-accurate two-sided difference. This
	// is the method the coefficient optimizer's numeric Jacobian mode
	// always requests, since its residual functor has no bound
	// constraints to force a one-sided step near an edge.
	Central
)

// ApproxSpec estimates the derivatives of Object at a point by finite
// differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type ApproxSpec struct {
	N, M int
	// Object is the function whose Jacobian is estimated. x is an
	// n-vector; the result is written into the m-vector y.
	Object func(x, y []float64)
	// Method selects the finite-difference stencil.
	Method Method
	// RelStep is the relative step size used to derive the absolute
	// step, h = RelStep * sign(x0) * abs(x0); where that step vanishes
	// in floating point, the default step is used for that entry. Left at
	// zero, a method-appropriate default, eps * sign(x0) * max(1, abs(x0))
	// with eps the sqrt or cube root of machine epsilon, is used instead.
	RelStep float64
	// AbsStep, if non-zero, overrides RelStep with a fixed absolute
	// step. For Central its sign is ignored.
	AbsStep float64
	approxCtx
}

type approxCtx struct {
	f0, fx  []float64
	absStep []float64
}

// Check validates the parameters and (re)sizes the scratch buffers
// ApproxSpec reuses across calls.
func (as *ApproxSpec) Check(x0, diff []float64) error {
	switch {
	case as.N <= 0 || as.M <= 0:
		return errors.New("negative dimensions")
	case as.Method != Forward && as.Method != Central:
		return errors.New("unknown method")
	case as.Object == nil:
		return errors.New("object function is required")
	case as.N != len(x0):
		return errors.New("invalid x0 dimensions")
	case as.N*as.M != len(diff):
		return errors.New("invalid diff dimensions")
	}

	if len(as.fx) != as.M*(int(as.Method)+1) {
		as.f0 = make([]float64, as.M)
		as.fx = make([]float64, as.M*(int(as.Method)+1))
	}
	if len(as.absStep) != as.N {
		as.absStep = make([]float64, as.N)
	}
	return nil
}

// Diff computes an approximation of the Jacobian of Object at x0 by
// finite differences, writing the column-major N*M result into diff.
func (as *ApproxSpec) Diff(x0, diff []float64) error {
	if err := as.Check(x0, diff); err != nil {
		return err
	}

	as.absoluteStep(x0)

	if as.Method == Central {
		as.approxCentral(x0, diff)
	} else {
		as.approxForward(x0, diff)
	}

	return nil
}

func (as *ApproxSpec) absoluteStep(x0 []float64) {
	h := as.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var eps float64
	switch as.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs := as.AbsStep
	rel := as.RelStep
	if abs == 0 && rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
	} else {
		for i, v := range x0 {
			s := abs
			if s == 0 {
				s = math.Copysign(rel, v) * math.Abs(v)
			}
			d := (v + s) - v
			if d == 0 {
				s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			}
			h[i] = s
		}
	}

	if as.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
}

func (as *ApproxSpec) approxForward(x0, df []float64) {
	f0, fx, h, n := as.f0, as.fx, as.absStep, as.N
	if len(h) != len(x0) || len(f0) != len(fx) {
		panic("bound check error")
	}

	fun := as.Object
	fun(x0, as.f0)
	for i, s := range h {
		t := x0[i]
		x0[i] = t + s
		fun(x0, fx)
		d := 1.0 / s
		for j := range f0 {
			df[i+j*n] = (fx[j] - f0[j]) * d
		}
		x0[i] = t
	}
}

func (as *ApproxSpec) approxCentral(x0, df []float64) {
	f0, h, n, m := as.f0, as.absStep, as.N, as.M
	f1, f2 := as.fx[:m], as.fx[m:]
	if len(h) != len(x0) || len(f0) != len(f1) || len(f0) != len(f2) {
		panic("bound check error")
	}

	fun := as.Object
	fun(x0, as.f0)
	for i, s := range h {
		x := x0[i]
		d := 1.0 / (2 * s)

		x0[i] = x - s
		fun(x0, f1)
		x0[i] = x + s
		fun(x0, f2)
		for j := range f0 {
			df[i+j*n] = (f2[j] - f1[j]) * d
		}
		x0[i] = x
	}
}
