// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optimize implements the coefficient optimizer (CO): it drives
// a trust-region Levenberg-Marquardt loop over the residual functor
// with either autodiff or finite-difference Jacobians, writes fitted
// coefficients back into the tree, and returns a summary. The whole
// pipeline is one Optimize call configured by Options and returning a
// Summary, for bounded-iteration nonlinear least squares.
package optimize

import (
	"github.com/zeta1999/operon/dataset"
	"github.com/zeta1999/operon/tree"
)

// Mode selects the Jacobian strategy: forward-mode autodiff (one dual
// pass per iteration yields the full Jacobian) or finite differences
// via numdiff.
type Mode int

const (
	Autodiff Mode = iota
	Numeric
)

func (m Mode) String() string {
	if m == Numeric {
		return "numeric"
	}
	return "autodiff"
}

// Termination records why the Levenberg-Marquardt loop stopped.
type Termination int

const (
	// NoCoefficients means the tree had no Constant/Variable terminals;
	// Optimize returns immediately with an empty summary, per spec.
	NoCoefficients Termination = iota
	// Converged means the step norm or cost improvement fell below
	// tolerance, or that the iteration cap was zero and no step was
	// attempted.
	Converged
	// MaxIterations means the iteration cap was reached without
	// converging.
	MaxIterations
	// NoProgress means repeated damping increases failed to find any
	// improving step.
	NoProgress
	// SingularJacobian means the dense-QR solve of the damped normal
	// equations failed (rank-deficient Jacobian).
	SingularJacobian
)

func (t Termination) String() string {
	switch t {
	case NoCoefficients:
		return "no-coefficients"
	case Converged:
		return "converged"
	case MaxIterations:
		return "max-iterations"
	case NoProgress:
		return "no-progress"
	case SingularJacobian:
		return "singular-jacobian"
	default:
		return "unknown"
	}
}

// Options configures a single Optimize call.
type Options struct {
	// Iterations is the requested iteration budget. The actual cap
	// passed to the inner loop is max(0, Iterations-1), a documented
	// off-by-one workaround carried forward from the original
	// specification rather than silently corrected.
	Iterations int
	// WriteCoefficients, when true, writes the (possibly updated)
	// coefficient vector back into the tree in traversal order.
	WriteCoefficients bool
	// Report enables progress logging to Logger (or stderr if Logger is
	// nil). Reporting is free-form and not part of the contract.
	Report bool
	// Mode selects the Jacobian strategy.
	Mode Mode
	// Logger receives progress output when Report is true.
	Logger *Logger
}

// Summary is CO's return-by-value result: it never surfaces an error
// across the package boundary, per the "core never throws into caller
// scope" guarantee. Optimization failures are recorded as a
// Termination, not propagated as a Go error.
type Summary struct {
	IterationsPerformed int
	InitialCost         float64
	FinalCost           float64
	Termination         Termination
}

// Optimize extracts coefficients from t, fits them against target over
// rng by nonlinear least squares, optionally writes the result back
// into t, and returns a summary. It never panics on ill-conditioned
// input — a singular Jacobian is reported via Termination, leaving the
// tree's coefficients unchanged (WriteCoefficients is skipped in that
// case, as the tree must be left either at its original or
// best-so-far state, not a nonsensical one).
func Optimize(t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, opt Options) Summary {
	coeffs := t.GetCoefficients()
	if len(coeffs) == 0 {
		return Summary{Termination: NoCoefficients}
	}

	logger := opt.Logger
	if logger == nil {
		logger = defaultLogger()
		if opt.Report {
			logger.Level = LogLast
		}
	}
	if !opt.Report {
		logger = &Logger{Level: LogNoop, Out: logger.Out}
	}

	cap := opt.Iterations - 1
	if cap < 0 {
		cap = 0
	}

	var res lmResult
	switch opt.Mode {
	case Numeric:
		res = runNumeric(t, ds, target, rng, coeffs, cap, logger)
	default:
		res = runAutodiff(t, ds, target, rng, coeffs, cap, logger)
	}

	if opt.WriteCoefficients && res.termination != SingularJacobian {
		t.SetCoefficients(res.x)
	}

	return Summary{
		IterationsPerformed: res.iterations,
		InitialCost:         res.initialCost,
		FinalCost:           res.finalCost,
		Termination:         res.termination,
	}
}

// OptimizeAutodiff is a convenience alias for Optimize with
// Mode: Autodiff.
func OptimizeAutodiff(t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, iterations int, writeCoefficients bool) Summary {
	return Optimize(t, ds, target, rng, Options{
		Iterations:        iterations,
		WriteCoefficients: writeCoefficients,
		Mode:              Autodiff,
	})
}

// OptimizeNumeric is a convenience alias for Optimize with
// Mode: Numeric.
func OptimizeNumeric(t tree.Tree, ds *dataset.Dataset, target []float64, rng tree.Range, iterations int, writeCoefficients bool) Summary {
	return Optimize(t, ds, target, rng, Options{
		Iterations:        iterations,
		WriteCoefficients: writeCoefficients,
		Mode:              Numeric,
	})
}
