// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package residual implements the residual functor (RF): it wraps the
// batched interpreter to present residual[i] = predicted[i] - target[i]
// to the nonlinear least-squares driver in optimize.
package residual

import (
	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/dual"
	"github.com/zeta1999/operon/interpreter"
	"github.com/zeta1999/operon/tree"
)

// Functor holds immutable references to the tree, dataset, target and
// range it was built against, and is templated over the scalar type so
// the optimizer can drive it with either plain scalars or duals.
type Functor[T dual.Field[T]] struct {
	Tree    tree.Tree
	Dataset *dataset.Dataset
	Target  []float64
	Range   tree.Range
	Builder interpreter.Builder[T]
}

// New builds a Functor. target must have length rng.Size.
func New[T dual.Field[T]](t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, b interpreter.Builder[T]) *Functor[T] {
	if len(target) != rng.Size {
		panic("residual: target length must equal range size")
	}
	return &Functor[T]{Tree: t, Dataset: ds, Target: target, Range: rng, Builder: b}
}

// Evaluate computes residual[i] = predicted[i] - target[i] into out,
// which must have length Range.Size. params propagates into the
// interpreter exactly as Evaluate's own parameter vector does.
func (f *Functor[T]) Evaluate(params []float64, out []T) {
	if len(out) != f.Range.Size {
		panic("residual: output length must equal range size")
	}
	interpreter.EvaluateInto(f.Tree, f.Dataset, f.Range, params, f.Builder, out)
	for i := range out {
		out[i] = out[i].SubF(f.Builder.Build(f.Target[i], -1))
	}
}

// NumResiduals is Range.Size, the residual count the optimizer's cost
// function is configured with.
func (f *Functor[T]) NumResiduals() int {
	return f.Range.Size
}
