// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fitness implements the fitness evaluators (FE) that sit above
// the numeric core: per candidate individual, optionally invoke the
// coefficient optimizer, evaluate the fitted tree, and reduce
// prediction vs target to a scalar error.
package fitness

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/dual"
	"github.com/zeta1999/operon/interpreter"
	"github.com/zeta1999/operon/optimize"
	"github.com/zeta1999/operon/tree"
)

// Individual is the thin view FE needs of a candidate: its tree plus
// the dataset and target it is evaluated against. Population
// management, tree construction, and everything upstream of it are
// external collaborators, out of scope here.
type Individual struct {
	Tree    tree.Tree
	Dataset *dataset.Dataset
	Target  []float64
}

// Evaluator is the common shape of both fitness variants.
type Evaluator interface {
	// Evaluate reduces prediction vs target over rng to a scalar error.
	Evaluate(rng tree.Range, ind *Individual) float64
	// Prepare is a population-wide hook, stateless in this release.
	Prepare(population []*Individual)
	// FitnessEvaluations is the number of Evaluate calls observed so far.
	FitnessEvaluations() int64
	// LocalEvaluations is the accumulated optimizer iteration count
	// across all Evaluate calls so far.
	LocalEvaluations() int64
}

// Config shared by both evaluator variants: how many CO iterations (if
// any) to spend fitting coefficients before the final evaluation.
type Config struct {
	Iterations        int
	Mode              optimize.Mode
	WriteCoefficients bool
}

type counters struct {
	fitnessEvaluations int64
	localEvaluations   int64
}

func (c *counters) record(optIterations int) {
	atomic.AddInt64(&c.fitnessEvaluations, 1)
	atomic.AddInt64(&c.localEvaluations, int64(optIterations))
}

func (c *counters) FitnessEvaluations() int64 { return atomic.LoadInt64(&c.fitnessEvaluations) }
func (c *counters) LocalEvaluations() int64   { return atomic.LoadInt64(&c.localEvaluations) }

// fit runs CO against ind over rng when cfg.Iterations > 0, and always
// produces the final prediction vector for rng. ind.Target is indexed
// by absolute row, the same way ind.Dataset is, so it is windowed to
// rng before being handed to Optimize (which requires a target of
// exactly rng.Size, row-aligned from index 0) and before the local
// reduction below.
func fit(cfg Config, rng tree.Range, ind *Individual) (prediction []float64, optIterations int) {
	target := ind.Target[rng.Start:rng.End()]
	if cfg.Iterations > 0 {
		summary := optimize.Optimize(ind.Tree, ind.Dataset, target, rng, optimize.Options{
			Iterations:        cfg.Iterations,
			WriteCoefficients: cfg.WriteCoefficients,
			Mode:              cfg.Mode,
		})
		optIterations = summary.IterationsPerformed
	}

	out := interpreter.Evaluate[dual.Scalar](ind.Tree, ind.Dataset, rng, nil, dual.ScalarBuilder{})
	prediction = make([]float64, len(out))
	for i, v := range out {
		prediction[i] = float64(v)
	}
	return prediction, optIterations
}

// NMSE is the normalized-mean-squared-error evaluator: mean squared
// error divided by the variance of the target, falling back to the
// largest representable scalar when the result is non-finite.
type NMSE struct {
	Config
	counters
}

func NewNMSE(cfg Config) *NMSE {
	return &NMSE{Config: cfg}
}

func (e *NMSE) Prepare(population []*Individual) {}

func (e *NMSE) Evaluate(rng tree.Range, ind *Individual) float64 {
	prediction, iters := fit(e.Config, rng, ind)
	defer e.record(iters)

	target := ind.Target[rng.Start:rng.End()]
	_, variance := stat.MeanVariance(target, nil)

	mse := 0.0
	for i, p := range prediction {
		d := p - target[i]
		mse += d * d
	}
	mse /= float64(len(prediction))

	nmse := mse / variance
	if math.IsNaN(nmse) || math.IsInf(nmse, 0) {
		return math.MaxFloat64
	}
	return nmse
}

// RSquared is the 1-R² evaluator: one minus the clamped squared
// Pearson correlation between prediction and target, treating a
// non-finite r² as 0 (the worst admissible value, since it yields the
// worst 1-R² = 1).
type RSquared struct {
	Config
	counters
}

func NewRSquared(cfg Config) *RSquared {
	return &RSquared{Config: cfg}
}

func (e *RSquared) Prepare(population []*Individual) {}

func (e *RSquared) Evaluate(rng tree.Range, ind *Individual) float64 {
	prediction, iters := fit(e.Config, rng, ind)
	defer e.record(iters)

	target := ind.Target[rng.Start:rng.End()]
	r := stat.Correlation(prediction, target, nil)
	r2 := r * r
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	r2 = clamp(r2, 0, 1)
	return 1 - r2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
