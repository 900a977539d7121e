// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output. Adapted
// from the teacher's L-BFGS-B driver logger for the Levenberg-Marquardt
// iteration trace; reporting is free-form and not part of the contract
// (it only ever goes to an io.Writer, never returned to the caller).
type LogLevel int

const (
	// LogNoop emits no output (level < 0).
	LogNoop LogLevel = -1
	// LogLast prints one line when the loop starts and one when it stops.
	LogLast LogLevel = 0
	// LogTrace prints cost and damping factor every iteration.
	LogTrace LogLevel = 1
	// LogVerbose additionally prints the current and trial coefficient
	// vectors every iteration.
	LogVerbose LogLevel = 2
)

// Logger handles reporting output for the optimizer. The writer must be
// safe for the caller's concurrency model; the core itself never writes
// from more than one goroutine per Optimize call.
type Logger struct {
	Level LogLevel
	Out   io.Writer
}

func (l *Logger) enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if l == nil || l.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(l.Out, format, a...)
}

// defaultLogger returns a no-op logger writing to stderr if asked to be
// enabled later, matching the teacher's convention of always having a
// live writer behind the level gate.
func defaultLogger() *Logger {
	return &Logger{Level: LogNoop, Out: os.Stderr}
}
