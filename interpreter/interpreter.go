// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interpreter implements the batched interpreter (BI): it
// evaluates a linear program (tree.Tree) against a dataset.Dataset over
// a row range, producing a length-Range.Size vector of values. It is
// parameterized over the numeric scalar type so the same routine serves
// plain floating-point evaluation and forward-mode automatic
// differentiation, per the "polymorphism over scalar type" design note.
package interpreter

import (
	"math"
	"reflect"
	"sync"

	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/dual"
	"github.com/zeta1999/operon/tree"
)

// DefaultBatch matches the reference implementation's compile-time batch
// size: rows are processed in batches of this many at a time to
// amortize per-node dispatch overhead.
const DefaultBatch = 64

// Builder constructs a T from a literal float64 and, for types that
// track derivatives, a parameter index to seed the gradient at.
// paramIndex < 0 means "not a tunable parameter" (e.g. a raw dataset
// reading): the resulting value must carry a zero gradient.
type Builder[T dual.Field[T]] interface {
	Build(value float64, paramIndex int) T
}

var scratchPools sync.Map // map[reflect.Type]*sync.Pool

//go:noinline
func poolFor[T any]() *sync.Pool {
	var zero T
	rt := reflect.TypeOf(zero)
	v, _ := scratchPools.LoadOrStore(rt, &sync.Pool{})
	return v.(*sync.Pool)
}

//go:noinline
func getScratch[T any](n int) []T {
	pool := poolFor[T]()
	if v := pool.Get(); v != nil {
		s := v.([]T)
		if cap(s) >= n {
			return s[:n]
		}
	}
	return make([]T, n)
}

//go:noinline
func putScratch[T any](s []T) {
	poolFor[T]().Put(s)
}

// columnSlot is setup-pass-resolved metadata for one node: which dataset
// column a Variable reads from, and the coefficient-vector index its
// weight is bound to (or -1 if no parameter vector was supplied, i.e.
// literal mode). Constants keep -1 here: their value is resolved once
// into constVal during setup.
type columnSlot struct {
	datasetCol int
	paramIdx   int
}

// Evaluate runs the batched interpreter over the whole range, returning
// a freshly allocated result vector. params may be nil, in which case
// every Constant/Variable uses its literal Node.Value.
//go:noinline
func Evaluate[T dual.Field[T]](t tree.Tree, ds *dataset.Dataset, rng tree.Range, params []float64, b Builder[T]) []T {
	out := make([]T, rng.Size)
	EvaluateInto(t, ds, rng, params, b, out)
	return out
}

// EvaluateInto writes into a caller-provided span of length rng.Size,
// using the reference batch size.
//
//go:noinline
func EvaluateInto[T dual.Field[T]](t tree.Tree, ds *dataset.Dataset, rng tree.Range, params []float64, b Builder[T], out []T) {
	EvaluateBatchInto(t, ds, rng, params, b, out, DefaultBatch)
}

// EvaluateBatch is EvaluateInto's allocating counterpart with an
// explicit batch size, used to exercise the batch-invariance property.
//go:noinline
func EvaluateBatch[T dual.Field[T]](t tree.Tree, ds *dataset.Dataset, rng tree.Range, params []float64, b Builder[T], batch int) []T {
	out := make([]T, rng.Size)
	EvaluateBatchInto(t, ds, rng, params, b, out, batch)
	return out
}

// EvaluateBatchInto is the core of BI: setup pass once, then a batched
// pass over [rng.Start, rng.Start+rng.Size), followed by non-finite
// sanitization of the output.
//
//go:noinline
func EvaluateBatchInto[T dual.Field[T]](t tree.Tree, ds *dataset.Dataset, rng tree.Range, params []float64, b Builder[T], out []T, batch int) {
	if batch < 1 {
		batch = DefaultBatch
	}
	if len(out) != rng.Size {
		panic("interpreter: output span length must equal range size")
	}

	n := len(t)
	slots := make([]columnSlot, n)
	constVal := make([]T, n) // pre-broadcast Constant values, valid for every batch

	paramCursor := 0
	for i, node := range t {
		slots[i].paramIdx = -1
		switch {
		case node.Type == tree.Constant:
			idx := -1
			val := node.Value
			if params != nil {
				val = params[paramCursor]
				idx = paramCursor
			}
			constVal[i] = b.Build(val, idx)
			paramCursor++
		case node.Type == tree.Variable:
			slots[i].datasetCol = ds.GetIndex(node.HashValue)
			slots[i].paramIdx = -1
			if params != nil {
				slots[i].paramIdx = paramCursor
			}
			paramCursor++
		case node.Type.IsBinary(), node.Type.IsUnary():
			// no setup-time state
		default:
			panic(tree.ErrUnknownNodeType)
		}
	}

	scratch := getScratch[T](n * batch)
	defer putScratch(scratch)
	col := func(i int) []T { return scratch[i*batch : i*batch+batch] }

	for row := 0; row < rng.Size; row += batch {
		remaining := batch
		if row+remaining > rng.Size {
			remaining = rng.Size - row
		}

		for i, node := range t {
			ci := col(i)
			switch node.Type {
			case tree.Add:
				left, right := operands(t, i)
				l, r := col(left), col(right)
				for k := 0; k < remaining; k++ {
					ci[k] = l[k].AddF(r[k])
				}
			case tree.Sub:
				left, right := operands(t, i)
				l, r := col(left), col(right)
				for k := 0; k < remaining; k++ {
					ci[k] = l[k].SubF(r[k])
				}
			case tree.Mul:
				left, right := operands(t, i)
				l, r := col(left), col(right)
				for k := 0; k < remaining; k++ {
					ci[k] = l[k].MulF(r[k])
				}
			case tree.Div:
				left, right := operands(t, i)
				l, r := col(left), col(right)
				for k := 0; k < remaining; k++ {
					ci[k] = l[k].DivF(r[k])
				}
			case tree.Log:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Log()
				}
			case tree.Exp:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Exp()
				}
			case tree.Sin:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Sin()
				}
			case tree.Cos:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Cos()
				}
			case tree.Tan:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Tan()
				}
			case tree.Sqrt:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Sqrt()
				}
			case tree.Cbrt:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Cbrt()
				}
			case tree.Square:
				c := col(i - 1)
				for k := 0; k < remaining; k++ {
					ci[k] = c[k].Square()
				}
			case tree.Constant:
				v := constVal[i]
				for k := 0; k < remaining; k++ {
					ci[k] = v
				}
			case tree.Variable:
				slot := slots[i]
				raw := ds.Values().Segment(slot.datasetCol, rng.Start+row, remaining)
				weightVal := node.Value
				if slot.paramIdx >= 0 {
					weightVal = params[slot.paramIdx]
				}
				weight := b.Build(weightVal, slot.paramIdx)
				for k := 0; k < remaining; k++ {
					ci[k] = weight.MulF(b.Build(raw[k], -1))
				}
			default:
				panic(tree.ErrUnknownNodeType)
			}
		}

		rootCol := col(n - 1)
		copy(out[row:row+remaining], rootCol[:remaining])
	}

	sanitize(out)
}

// operands returns the indices of the first and second operand of the
// binary operator at index i, per the postfix arena addressing scheme:
// the first operand is i-1, the second is i-1-Length(i-1)-1.
//go:noinline
func operands(t tree.Tree, i int) (first, second int) {
	first = tree.FirstOperand(i)
	second = tree.SecondOperand(i, t[first].Length)
	return
}

// sanitize replaces any NaN/±Inf entry in out with the midpoint of the
// finite min/max, and clamps every finite entry to [min, max]. If no
// finite value exists, out is filled with the midpoint of T's own
// min/max (never dividing by zero or propagating NaN).
//go:noinline
func sanitize[T dual.Field[T]](out []T) {
	min, max := math.Inf(1), math.Inf(-1)
	anyFinite := false
	for _, v := range out {
		if v.IsFinite() {
			f := v.Float()
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
			anyFinite = true
		}
	}

	if !anyFinite {
		mid := (math.MaxFloat64 + (-math.MaxFloat64)) / 2
		for i := range out {
			out[i] = rebuildAt(out[i], mid)
		}
		return
	}

	mid := (min + max) / 2
	for i, v := range out {
		if !v.IsFinite() {
			out[i] = rebuildAt(v, mid)
			continue
		}
		f := v.Float()
		if f < min {
			out[i] = rebuildAt(v, min)
		} else if f > max {
			out[i] = rebuildAt(v, max)
		}
	}
}

// rebuildAt replaces the value component of v with f, preserving its
// concrete type's zero-gradient shape for Dual (a sanitized entry
// carries no useful derivative information, since it no longer reflects
// the original computation).
func rebuildAt[T dual.Field[T]](v T, f float64) T {
	switch x := any(v).(type) {
	case dual.Scalar:
		return any(dual.Scalar(f)).(T)
	case dual.Dual:
		return any(dual.NewDual(f, len(x.Grad))).(T)
	default:
		panic("interpreter: sanitize does not know how to rebuild this scalar type")
	}
}
