// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import "errors"

// Tree is an ordered sequence of Nodes in postfix order: every operator
// appears after its operands, and the root is the final element.
type Tree []Node

// ErrUnknownNodeType is panicked when the interpreter or a validator
// encounters a NodeType outside the closed set. This is a programming
// error per the error-handling taxonomy, never recovered inside the
// package.
var ErrUnknownNodeType = errors.New("tree: unknown node type")

// ErrArity is panicked by Validate when a binary operator does not have
// arity exactly 2. Reimplementations that want variadic reduction would
// relax this; this module takes Open Question option (a): assert and
// reject.
var ErrArity = errors.New("tree: binary operator arity must be 2")

// Root returns the last node of the program, or panics on an empty tree
// (a malformed program is a programming error, not a runtime condition
// to recover from).
func (t Tree) Root() Node {
	if len(t) == 0 {
		panic("tree: empty program has no root")
	}
	return t[len(t)-1]
}

// Size returns the total number of nodes.
func (t Tree) Size() int {
	return len(t)
}

// FirstOperand returns the index of the operator's first operand: the
// node immediately preceding it at i-1. Binary subtrees are laid out
// with the first operand closest to the operator and the second
// operand further back, so for Sub(a, b) the node at i-1 holds a and
// the node at SecondOperand(i, ...) holds b.
func FirstOperand(i int) int {
	return i - 1
}

// SecondOperand returns the index of the second operand of the binary
// operator at index i, given the subtree length of its first operand.
func SecondOperand(i int, firstOperandLength int) int {
	return i - 1 - firstOperandLength - 1
}

// Validate checks the structural invariants spec.md §3 and §9 require:
// Length(root)+1 == size(nodes), binary operators have arity exactly 2,
// and every operand index referenced by an operator lies within range.
// It panics on violation (with ErrArity or ErrUnknownNodeType, or with a
// descriptive string for a structural fault), consistent with the "programming errors are fatal"
// taxonomy — callers that want a non-fatal check should recover around
// this call themselves.
func (t Tree) Validate() {
	if len(t) == 0 {
		panic("tree: empty program")
	}
	if t.Root().Length+1 != len(t) {
		panic("tree: root length does not cover the whole program")
	}
	for i, n := range t {
		switch {
		case n.Type.IsBinary():
			if n.Arity != 2 {
				panic(ErrArity)
			}
			if i-1 < 0 {
				panic("tree: binary operator missing first operand")
			}
			firstLen := t[i-1].Length
			second := SecondOperand(i, firstLen)
			if second < 0 {
				panic("tree: binary operator missing second operand")
			}
			wantLen := (i - 1 - second) + t[second].Length + 1
			if n.Length != wantLen {
				panic("tree: cached subtree length inconsistent with operands")
			}
		case n.Type.IsUnary():
			if i-1 < 0 {
				panic("tree: unary operator missing operand")
			}
			if n.Length != t[i-1].Length+1 {
				panic("tree: cached subtree length inconsistent with operand")
			}
		case n.Type.IsTerminal():
			if n.Length != 0 {
				panic("tree: terminal must have zero length")
			}
		default:
			panic(ErrUnknownNodeType)
		}
	}
}

// Range is a half-open row interval [Start, Start+Size) into a Dataset.
type Range struct {
	Start, Size int
}

// End returns the exclusive upper bound of the range.
func (r Range) End() int {
	return r.Start + r.Size
}

// GetCoefficients extracts the coefficient vector from t: one entry per
// Constant node and one per Variable node (its weight), in traversal
// (postfix/index) order. This is the parameter space CO searches.
func (t Tree) GetCoefficients() []float64 {
	coeffs := make([]float64, 0, len(t))
	for _, n := range t {
		if n.Type.IsTerminal() {
			coeffs = append(coeffs, n.Value)
		}
	}
	return coeffs
}

// SetCoefficients writes coeffs back into t's Constant/Variable values in
// the same traversal order GetCoefficients used. Panics if the length
// does not match the number of terminals — a caller supplying a vector
// from a different tree is a programming error.
func (t Tree) SetCoefficients(coeffs []float64) {
	idx := 0
	for i := range t {
		if t[i].Type.IsTerminal() {
			if idx >= len(coeffs) {
				panic("tree: coefficient vector shorter than terminal count")
			}
			t[i].Value = coeffs[idx]
			idx++
		}
	}
	if idx != len(coeffs) {
		panic("tree: coefficient vector longer than terminal count")
	}
}

// NumCoefficients returns the number of Constant+Variable terminals,
// without allocating a vector.
func (t Tree) NumCoefficients() int {
	n := 0
	for _, node := range t {
		if node.Type.IsTerminal() {
			n++
		}
	}
	return n
}
