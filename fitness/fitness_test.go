package fitness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/fitness"
	"github.com/zeta1999/operon/optimize"
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

func newIndividual(t *testing.T, weight, additive float64, x, target []float64) *fitness.Individual {
	prog := tree.Tree{variable(1, weight), constant(additive), binOp(tree.Add, 0, 0)}
	ds, err := dataset.New(map[uint64][]float64{1: x})
	require.NoError(t, err)
	return &fitness.Individual{Tree: prog, Dataset: ds, Target: target}
}

func TestNMSEPerfectFitIsZero(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	target := make([]float64, len(x))
	for i, v := range x {
		target[i] = 2*v + 1
	}
	ind := newIndividual(t, 2, 1, x, target)

	e := fitness.NewNMSE(fitness.Config{})
	nmse := e.Evaluate(tree.Range{Start: 0, Size: len(x)}, ind)
	assert.InDelta(t, 0.0, nmse, 1e-12)
	assert.EqualValues(t, 1, e.FitnessEvaluations())
	assert.EqualValues(t, 0, e.LocalEvaluations())
}

func TestNMSEWithFittingReducesErrorAndRecordsIterations(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	target := make([]float64, len(x))
	for i, v := range x {
		target[i] = 5*v + 2
	}
	ind := newIndividual(t, 1, 0, x, target)

	e := fitness.NewNMSE(fitness.Config{Iterations: 30, Mode: optimize.Autodiff, WriteCoefficients: true})
	nmse := e.Evaluate(tree.Range{Start: 0, Size: len(x)}, ind)

	assert.Less(t, nmse, 1e-6)
	assert.EqualValues(t, 1, e.FitnessEvaluations())
	assert.Greater(t, e.LocalEvaluations(), int64(0))
}

func TestRSquaredPerfectFitIsZero(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	target := make([]float64, len(x))
	for i, v := range x {
		target[i] = 3*v - 4
	}
	ind := newIndividual(t, 3, -4, x, target)

	e := fitness.NewRSquared(fitness.Config{})
	oneMinusR2 := e.Evaluate(tree.Range{Start: 0, Size: len(x)}, ind)
	assert.InDelta(t, 0.0, oneMinusR2, 1e-9)
}

func TestRSquaredUncorrelatedIsWorstCase(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	// A constant prediction has zero variance, so its correlation with
	// any target is undefined (NaN); the evaluator must fall back to the
	// worst admissible 1-R² = 1 rather than propagate NaN.
	ind := newIndividual(t, 0, 5, x, []float64{1, 2, 3, 4})

	e := fitness.NewRSquared(fitness.Config{})
	oneMinusR2 := e.Evaluate(tree.Range{Start: 0, Size: len(x)}, ind)
	assert.Equal(t, 1.0, oneMinusR2)
}

func TestCountersAccumulateAcrossEvaluations(t *testing.T) {
	x := []float64{1, 2, 3}
	target := []float64{1, 2, 3}
	e := fitness.NewNMSE(fitness.Config{Iterations: 5, Mode: optimize.Autodiff})

	for i := 0; i < 3; i++ {
		ind := newIndividual(t, 1, 0, x, target)
		e.Evaluate(tree.Range{Start: 0, Size: len(x)}, ind)
	}
	assert.EqualValues(t, 3, e.FitnessEvaluations())
}

func TestPrepareIsANoOp(t *testing.T) {
	e := fitness.NewNMSE(fitness.Config{})
	assert.NotPanics(t, func() { e.Prepare(nil) })

	r := fitness.NewRSquared(fitness.Config{})
	assert.NotPanics(t, func() { r.Prepare(nil) })
}

// Evaluate honors Range.Start: the fitness reduction must only consider
// the window it was asked about, not the whole target vector. x[2,3,4]
// = [2,3,4]; with weight 2 the prediction over that window is [4,6,8],
// which only matches target[2:5] (not target[0:3] or the full vector),
// so a passing NMSE of 0 here proves the offset was honored.
func TestEvaluateHonorsRangeOffset(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	target := []float64{99, 99, 4, 6, 8, 99}
	ind := newIndividual(t, 2, 0, x, target)

	e := fitness.NewNMSE(fitness.Config{})
	nmse := e.Evaluate(tree.Range{Start: 2, Size: 3}, ind)
	assert.InDelta(t, 0.0, nmse, 1e-12)
}
