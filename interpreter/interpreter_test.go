package interpreter_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/dual"
	"github.com/zeta1999/operon/interpreter"
	"github.com/zeta1999/operon/tree"
)

func constant(v float64) tree.Node {
	return tree.Node{Type: tree.Constant, Value: v}
}

func variable(hash uint64, weight float64) tree.Node {
	return tree.Node{Type: tree.Variable, Value: weight, HashValue: hash}
}

func binOp(typ tree.NodeType, leftLen, rightLen int) tree.Node {
	return tree.Node{Type: typ, Arity: 2, Length: leftLen + rightLen + 2}
}

func unOp(typ tree.NodeType, operandLen int) tree.Node {
	return tree.Node{Type: typ, Arity: 1, Length: operandLen + 1}
}

func evalFloats(t *testing.T, prog tree.Tree, ds *dataset.Dataset, rng tree.Range) []float64 {
	out := interpreter.Evaluate[dual.Scalar](prog, ds, rng, nil, dual.ScalarBuilder{})
	result := make([]float64, len(out))
	for i, v := range out {
		result[i] = float64(v)
	}
	_ = t
	return result
}

// Scenario 1: Add(Constant(1), Constant(2)) over a range of size 4.
func TestScenarioAddConstants(t *testing.T) {
	prog := tree.Tree{constant(1), constant(2), binOp(tree.Add, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {0, 0, 0, 0}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 4})
	assert.Equal(t, []float64{3, 3, 3, 3}, got)
}

// Scenario 2: Mul(Variable(x, weight=2), Constant(3)) on x = [1,2,3,4].
func TestScenarioMulVariableConstant(t *testing.T) {
	prog := tree.Tree{variable(1, 2), constant(3), binOp(tree.Mul, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 2, 3, 4}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 4})
	assert.Equal(t, []float64{6, 12, 18, 24}, got)
}

// Scenario 3: Sub(Variable(x,1), Variable(y,1)) on x=[5,5,5], y=[1,2,3].
//
// The interpreter addresses a binary operator's first (semantic, left)
// operand at index i-1 and its second operand further back (see
// tree.FirstOperand/SecondOperand), so the first operand must be placed
// immediately before the operator in postfix order: here that is x, so
// y comes first in the node slice and x second.
func TestScenarioSubVariables(t *testing.T) {
	prog := tree.Tree{variable(2, 1), variable(1, 1), binOp(tree.Sub, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{
		1: {5, 5, 5},
		2: {1, 2, 3},
	})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 3})
	assert.Equal(t, []float64{4, 3, 2}, got)
}

// Scenario 4: Div(Constant(1), Variable(x,1)) on x=[1,0,-1]; the middle
// entry (division by zero) must be sanitized to the finite midrange.
// Constant(1) is the semantic first (numerator) operand, so it is
// placed immediately before the operator; Variable(x) (the denominator)
// comes first in the node slice.
func TestScenarioDivSanitizesNonFinite(t *testing.T) {
	prog := tree.Tree{variable(1, 1), constant(1), binOp(tree.Div, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 0, -1}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 3})
	for _, v := range got {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.InDelta(t, 0.0, got[1], 1e-12)
}

// Scenario 5: Square(Variable(x,1)) on x=[-2,-1,0,1,2].
func TestScenarioSquare(t *testing.T) {
	prog := tree.Tree{variable(1, 1), unOp(tree.Square, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {-2, -1, 0, 1, 2}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 5})
	assert.Equal(t, []float64{4, 1, 0, 1, 4}, got)
}

// Identity property: tree = x (single Variable, weight 1) reproduces the
// dataset column over the range exactly.
func TestIdentity(t *testing.T) {
	prog := tree.Tree{variable(1, 1)}
	ds, err := dataset.New(map[uint64][]float64{1: {9, 8, 7, 6, 5}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 1, Size: 3})
	assert.Equal(t, []float64{8, 7, 6}, got)
}

// Non-finite robustness: log(x) over x <= 0 stays finite and bounded.
func TestLogNonFiniteRobustness(t *testing.T) {
	prog := tree.Tree{variable(1, 1), unOp(tree.Log, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {-1, 0, 1, math.E}})
	require.NoError(t, err)

	got := evalFloats(t, prog, ds, tree.Range{Start: 0, Size: 4})
	var min, max float64 = math.Inf(1), math.Inf(-1)
	for _, v := range got {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	assert.GreaterOrEqual(t, got[3], min)
	assert.LessOrEqual(t, got[3], max)
}

// Determinism: two consecutive evaluations produce bit-identical output.
func TestDeterminism(t *testing.T) {
	prog := tree.Tree{variable(1, 3), constant(2), binOp(tree.Add, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 2, 3, 4, 5, 6, 7, 8, 9}})
	require.NoError(t, err)

	rng := tree.Range{Start: 0, Size: 9}
	a := evalFloats(t, prog, ds, rng)
	b := evalFloats(t, prog, ds, rng)
	assert.Equal(t, a, b)
}

// Batch invariance: output does not depend on the batch size.
func TestBatchInvariance(t *testing.T) {
	prog := tree.Tree{variable(1, 2), constant(1), binOp(tree.Add, 0, 0)}
	col := make([]float64, 137)
	for i := range col {
		col[i] = float64(i) * 0.37
	}
	ds, err := dataset.New(map[uint64][]float64{1: col})
	require.NoError(t, err)

	rng := tree.Range{Start: 0, Size: 137}
	reference := interpreter.EvaluateBatch[dual.Scalar](prog, ds, rng, nil, dual.ScalarBuilder{}, 64)
	for _, batch := range []int{1, 3, 7, 16, 64, 200} {
		got := interpreter.EvaluateBatch[dual.Scalar](prog, ds, rng, nil, dual.ScalarBuilder{}, batch)
		assert.Equal(t, reference, got, "batch size %d", batch)
	}
}

// Parameter equivalence: Evaluate(t, d, r, nil) == Evaluate(t, d, r, GetCoefficients(t)).
func TestParameterEquivalence(t *testing.T) {
	prog := tree.Tree{variable(1, 2.5), constant(1.5), binOp(tree.Mul, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 2, 3, 4}})
	require.NoError(t, err)

	rng := tree.Range{Start: 0, Size: 4}
	withNil := evalFloats(t, prog, ds, rng)

	coeffs := prog.GetCoefficients()
	withParams := interpreter.Evaluate[dual.Scalar](prog, ds, rng, coeffs, dual.ScalarBuilder{})
	withParamsFloat := make([]float64, len(withParams))
	for i, v := range withParams {
		withParamsFloat[i] = float64(v)
	}
	assert.Equal(t, withNil, withParamsFloat)
}

// Coefficient round-trip: SetCoefficients(GetCoefficients(t)) changes
// nothing observable.
func TestCoefficientRoundTripEvaluation(t *testing.T) {
	prog := tree.Tree{variable(1, 2.5), constant(1.5), binOp(tree.Mul, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 2, 3, 4}})
	require.NoError(t, err)

	rng := tree.Range{Start: 0, Size: 4}
	before := evalFloats(t, prog, ds, rng)
	prog.SetCoefficients(prog.GetCoefficients())
	after := evalFloats(t, prog, ds, rng)
	assert.Equal(t, before, after)
}

// Autodiff consistency: the value component of Evaluate<Dual> equals
// Evaluate<Scalar>, and its Jacobian matches a finite-difference
// estimate within tolerance.
func TestAutodiffConsistency(t *testing.T) {
	prog := tree.Tree{variable(1, 2.0), constant(3.0), binOp(tree.Mul, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: {1, 2, 3, 4}})
	require.NoError(t, err)

	rng := tree.Range{Start: 0, Size: 4}
	params := prog.GetCoefficients()

	scalarOut := interpreter.Evaluate[dual.Scalar](prog, ds, rng, params, dual.ScalarBuilder{})
	dualOut := interpreter.Evaluate[dual.Dual](prog, ds, rng, params, dual.DualBuilder{N: len(params)})

	for i := range dualOut {
		assert.InDelta(t, float64(scalarOut[i]), dualOut[i].Value, 1e-12)
	}

	const h = 1e-6
	for i := range dualOut {
		for p := range params {
			plus := append([]float64(nil), params...)
			minus := append([]float64(nil), params...)
			plus[p] += h
			minus[p] -= h
			outPlus := interpreter.Evaluate[dual.Scalar](prog, ds, rng, plus, dual.ScalarBuilder{})
			outMinus := interpreter.Evaluate[dual.Scalar](prog, ds, rng, minus, dual.ScalarBuilder{})
			fd := (float64(outPlus[i]) - float64(outMinus[i])) / (2 * h)
			assert.InDelta(t, fd, dualOut[i].Grad[p], 1e-4, "row %d param %d", i, p)
		}
	}
}
