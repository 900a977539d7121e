// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dataset implements the dataset view (DV): an immutable
// column-major numeric matrix with variable-hash-to-column lookup,
// providing constant-time sub-range column access for the interpreter.
//
// CSV ingest and variable-hash bookkeeping are external collaborators
// (out of scope, per the original specification); New only assembles an
// already-parsed, already-hashed column set.
package dataset

import "fmt"

// Matrix is a column-major view over the dataset's raw values.
type Matrix struct {
	rows int
	cols [][]float64
}

// Column returns the full column at index k.
func (m Matrix) Column(k int) []float64 {
	return m.cols[k]
}

// Segment returns a contiguous view of n scalars from column k, starting
// at offset. No bounds check is performed: a range extending beyond the
// dataset is undefined behavior by contract, per the error-handling
// taxonomy (the caller guarantees in-range access).
func (m Matrix) Segment(k, offset, n int) []float64 {
	return m.cols[k][offset : offset+n]
}

// NumRows reports the number of rows shared by every column.
func (m Matrix) NumRows() int {
	return m.rows
}

// NumColumns reports the number of columns.
func (m Matrix) NumColumns() int {
	return len(m.cols)
}

// Dataset is an immutable column-major numeric matrix with a hash index.
// Once constructed it is read-shared across an arbitrary number of
// concurrent Evaluate/Optimize calls.
type Dataset struct {
	matrix Matrix
	index  map[uint64]int
}

// New assembles a Dataset from a set of already-hashed columns. All
// columns must have equal length; New returns an error rather than
// panicking because malformed input here originates outside the core
// (the caller's variable-hash bookkeeping), not from a structural
// invariant of the core itself.
func New(columns map[uint64][]float64) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset: no columns provided")
	}

	index := make(map[uint64]int, len(columns))
	cols := make([][]float64, 0, len(columns))
	rows := -1

	hashes := make([]uint64, 0, len(columns))
	for h := range columns {
		hashes = append(hashes, h)
	}
	// Deterministic column order: ascending hash. The order itself is
	// not part of the contract (lookup is always by hash), but fixing it
	// keeps GetIndex's return value stable across calls with the same
	// input map.
	for i := 0; i < len(hashes); i++ {
		for j := i + 1; j < len(hashes); j++ {
			if hashes[j] < hashes[i] {
				hashes[i], hashes[j] = hashes[j], hashes[i]
			}
		}
	}

	for _, h := range hashes {
		col := columns[h]
		if rows == -1 {
			rows = len(col)
		} else if len(col) != rows {
			return nil, fmt.Errorf("dataset: column %d has %d rows, want %d", h, len(col), rows)
		}
		index[h] = len(cols)
		cols = append(cols, col)
	}

	return &Dataset{
		matrix: Matrix{rows: rows, cols: cols},
		index:  index,
	}, nil
}

// GetIndex resolves a variable hash to its column index. It is a total
// function for known variables; looking up an unknown hash is a
// programming error (the caller's variable bookkeeping guarantees
// coverage) and panics rather than returning an (index, ok) pair.
func (d *Dataset) GetIndex(hash uint64) int {
	idx, ok := d.index[hash]
	if !ok {
		panic(fmt.Sprintf("dataset: unknown variable hash %d", hash))
	}
	return idx
}

// Values returns the underlying column-major matrix view.
func (d *Dataset) Values() Matrix {
	return d.matrix
}

// NumRows reports the number of rows in the dataset.
func (d *Dataset) NumRows() int {
	return d.matrix.rows
}
