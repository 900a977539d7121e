// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dual provides the two scalar types the batched interpreter is
// monomorphized over: Scalar for plain evaluation, and Dual for
// forward-mode automatic differentiation. Both implement Field[T], the
// compile-time-polymorphism arithmetic capability set described in the
// original specification's design notes.
package dual

import "math"

// Field is the arithmetic capability set the interpreter needs: the
// four binary arithmetic operators and the elementary unary functions,
// closed over T so both Scalar and Dual can satisfy it without operator
// overloading (which Go does not have).
type Field[T any] interface {
	AddF(T) T
	SubF(T) T
	MulF(T) T
	DivF(T) T
	Log() T
	Exp() T
	Sin() T
	Cos() T
	Tan() T
	Sqrt() T
	Cbrt() T
	Square() T
	Float() float64
	IsFinite() bool
}

// Scalar is a plain float64 used for evaluation mode. It exists as a
// distinct named type (rather than using float64 directly as the type
// parameter) purely so it can carry the Field[Scalar] methods.
type Scalar float64

func (s Scalar) AddF(o Scalar) Scalar { return s + o }
func (s Scalar) SubF(o Scalar) Scalar { return s - o }
func (s Scalar) MulF(o Scalar) Scalar { return s * o }
func (s Scalar) DivF(o Scalar) Scalar { return s / o }

func (s Scalar) Log() Scalar    { return Scalar(math.Log(float64(s))) }
func (s Scalar) Exp() Scalar    { return Scalar(math.Exp(float64(s))) }
func (s Scalar) Sin() Scalar    { return Scalar(math.Sin(float64(s))) }
func (s Scalar) Cos() Scalar    { return Scalar(math.Cos(float64(s))) }
func (s Scalar) Tan() Scalar    { return Scalar(math.Tan(float64(s))) }
func (s Scalar) Sqrt() Scalar   { return Scalar(math.Sqrt(float64(s))) }
func (s Scalar) Square() Scalar { return s * s }

// Cbrt delegates to math.Cbrt, which already returns a signed real
// result for negative inputs (e.g. Cbrt(-8) == -2). No extra primitive
// is required to satisfy the "signed cube root" requirement.
func (s Scalar) Cbrt() Scalar { return Scalar(math.Cbrt(float64(s))) }

func (s Scalar) Float() float64  { return float64(s) }
func (s Scalar) IsFinite() bool  { f := float64(s); return !math.IsNaN(f) && !math.IsInf(f, 0) }
func FromFloat64(v float64) Scalar { return Scalar(v) }

// Dual carries a value and its partial derivatives with respect to an
// external parameter vector (the coefficient vector CO searches). Grad
// has one entry per parameter; a Dual constructed for parameter k via
// Seed has Grad[k]==1 and every other entry 0.
type Dual struct {
	Value float64
	Grad  []float64
}

// NewDual returns a constant dual (zero gradient) of the given value,
// sized to n parameters.
func NewDual(value float64, n int) Dual {
	return Dual{Value: value, Grad: make([]float64, n)}
}

// Seed returns a dual representing parameter index k of n, i.e. the
// point in parameter space where ∂/∂p_k = 1 and all other partials are
// zero.
func Seed(value float64, k, n int) Dual {
	d := NewDual(value, n)
	d.Grad[k] = 1
	return d
}

func (d Dual) Float() float64 { return d.Value }
func (d Dual) IsFinite() bool {
	if math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return false
	}
	for _, g := range d.Grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return false
		}
	}
	return true
}

func (d Dual) AddF(o Dual) Dual {
	r := Dual{Value: d.Value + o.Value, Grad: make([]float64, len(d.Grad))}
	for i := range r.Grad {
		r.Grad[i] = d.Grad[i] + o.Grad[i]
	}
	return r
}

func (d Dual) SubF(o Dual) Dual {
	r := Dual{Value: d.Value - o.Value, Grad: make([]float64, len(d.Grad))}
	for i := range r.Grad {
		r.Grad[i] = d.Grad[i] - o.Grad[i]
	}
	return r
}

func (d Dual) MulF(o Dual) Dual {
	r := Dual{Value: d.Value * o.Value, Grad: make([]float64, len(d.Grad))}
	for i := range r.Grad {
		r.Grad[i] = d.Grad[i]*o.Value + d.Value*o.Grad[i]
	}
	return r
}

func (d Dual) DivF(o Dual) Dual {
	inv := 1 / o.Value
	r := Dual{Value: d.Value * inv, Grad: make([]float64, len(d.Grad))}
	for i := range r.Grad {
		r.Grad[i] = (d.Grad[i] - r.Value*o.Grad[i]) * inv
	}
	return r
}

func (d Dual) Log() Dual {
	r := Dual{Value: math.Log(d.Value), Grad: make([]float64, len(d.Grad))}
	inv := 1 / d.Value
	for i, g := range d.Grad {
		r.Grad[i] = g * inv
	}
	return r
}

func (d Dual) Exp() Dual {
	v := math.Exp(d.Value)
	r := Dual{Value: v, Grad: make([]float64, len(d.Grad))}
	for i, g := range d.Grad {
		r.Grad[i] = g * v
	}
	return r
}

func (d Dual) Sin() Dual {
	r := Dual{Value: math.Sin(d.Value), Grad: make([]float64, len(d.Grad))}
	c := math.Cos(d.Value)
	for i, g := range d.Grad {
		r.Grad[i] = g * c
	}
	return r
}

func (d Dual) Cos() Dual {
	r := Dual{Value: math.Cos(d.Value), Grad: make([]float64, len(d.Grad))}
	s := -math.Sin(d.Value)
	for i, g := range d.Grad {
		r.Grad[i] = g * s
	}
	return r
}

func (d Dual) Tan() Dual {
	t := math.Tan(d.Value)
	r := Dual{Value: t, Grad: make([]float64, len(d.Grad))}
	sec2 := 1 + t*t
	for i, g := range d.Grad {
		r.Grad[i] = g * sec2
	}
	return r
}

func (d Dual) Sqrt() Dual {
	v := math.Sqrt(d.Value)
	r := Dual{Value: v, Grad: make([]float64, len(d.Grad))}
	dv := 0.5 / v
	for i, g := range d.Grad {
		r.Grad[i] = g * dv
	}
	return r
}

// Cbrt is the signed cube root, matching Scalar.Cbrt's resolution of the
// "signed cube root" requirement. Its derivative is singular at 0; the
// derivative there is defined as 0 rather than +Inf, consistent with
// the interpreter's later non-finite sanitization never having to see
// an infinite partial from this one elementary function.
func (d Dual) Cbrt() Dual {
	v := math.Cbrt(d.Value)
	r := Dual{Value: v, Grad: make([]float64, len(d.Grad))}
	var dv float64
	if v != 0 {
		dv = 1 / (3 * v * v)
	}
	for i, g := range d.Grad {
		r.Grad[i] = g * dv
	}
	return r
}

func (d Dual) Square() Dual {
	r := Dual{Value: d.Value * d.Value, Grad: make([]float64, len(d.Grad))}
	two := 2 * d.Value
	for i, g := range d.Grad {
		r.Grad[i] = g * two
	}
	return r
}
