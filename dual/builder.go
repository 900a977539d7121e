// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dual

// ScalarBuilder constructs Scalar values for evaluation mode. The
// parameter index is irrelevant for a plain scalar: there is no
// gradient to seed.
type ScalarBuilder struct{}

func (ScalarBuilder) Build(value float64, _ int) Scalar {
	return Scalar(value)
}

// DualBuilder constructs Dual values seeded against an n-parameter
// vector for optimization mode. A negative paramIndex yields a constant
// (zero-gradient) dual, used for raw dataset readings that are not
// themselves tunable parameters.
type DualBuilder struct {
	N int
}

func (b DualBuilder) Build(value float64, paramIndex int) Dual {
	if paramIndex < 0 {
		return NewDual(value, b.N)
	}
	return Seed(value, paramIndex, b.N)
}
