// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tree implements the linear program representation (LPR): a
// flat postfix encoding of a symbolic expression tree with per-node
// subtree length cached, so that child lookup is O(1) arithmetic on
// indices instead of a pointer chase.
package tree

import "fmt"

// NodeType tags the role a Node plays in the postfix program. The set is
// closed: binary arithmetic, unary transcendental/algebraic, and the two
// terminal kinds.
type NodeType uint8

const (
	Add NodeType = iota
	Sub
	Mul
	Div
	Log
	Exp
	Sin
	Cos
	Tan
	Sqrt
	Cbrt
	Square
	Constant
	Variable
)

func (t NodeType) String() string {
	switch t {
	case Add:
		return "Add"
	case Sub:
		return "Sub"
	case Mul:
		return "Mul"
	case Div:
		return "Div"
	case Log:
		return "Log"
	case Exp:
		return "Exp"
	case Sin:
		return "Sin"
	case Cos:
		return "Cos"
	case Tan:
		return "Tan"
	case Sqrt:
		return "Sqrt"
	case Cbrt:
		return "Cbrt"
	case Square:
		return "Square"
	case Constant:
		return "Constant"
	case Variable:
		return "Variable"
	default:
		return fmt.Sprintf("NodeType(%d)", uint8(t))
	}
}

// IsBinary reports whether t takes exactly two operands.
func (t NodeType) IsBinary() bool {
	return t == Add || t == Sub || t == Mul || t == Div
}

// IsUnary reports whether t takes exactly one operand.
func (t NodeType) IsUnary() bool {
	switch t {
	case Log, Exp, Sin, Cos, Tan, Sqrt, Cbrt, Square:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether t is a leaf (Constant or Variable).
func (t NodeType) IsTerminal() bool {
	return t == Constant || t == Variable
}

// DefaultArity returns the fixed arity for unaries and terminals, and 2
// for the binary arithmetic operators (the interpreter never consumes
// more than two operands for them; see the Open Questions in DESIGN.md).
func (t NodeType) DefaultArity() int {
	switch {
	case t.IsBinary():
		return 2
	case t.IsUnary():
		return 1
	default:
		return 0
	}
}

// Node is a tagged value in the postfix program.
type Node struct {
	Type      NodeType
	Arity     int
	Length    int // count of descendant nodes, excluding this one
	Depth     int
	Value     float64 // literal coefficient (Constant) or weight (Variable)
	HashValue uint64  // dataset column hash, meaningful only for Variable
}

// IsLeaf reports whether the node has no operands.
func (n Node) IsLeaf() bool {
	return n.Length == 0
}
