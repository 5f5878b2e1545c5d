package asm

import (
	"fmt"
	"io"
)

// SourcePosition is "file:line", optionally extended with "->" arrows
// that record the chain of macro-invocation call sites leading to a
// node (SPEC_FULL.md §3).
type SourcePosition string

// Extend appends a call-site position, forming the "->" arrow chain
// recorded when a macro body node is cloned into an expansion.
func (p SourcePosition) Extend(callSite SourcePosition) SourcePosition {
	if callSite == "" {
		return p
	}
	return p + "->" + callSite
}

// Diagnostic is a single reported problem or warning.
type Diagnostic struct {
	Point   SourcePosition
	Message string
	Warning bool
}

// Diagnostics is the process-wide error/warning sink described in
// SPEC_FULL.md §1 and grounded on db47h-ngaro's asm.ErrAsm: a typed
// slice of positioned messages, which Err() exposes as a Go error.
// Inside the pipeline it is never used as an error value -- the pass
// driver consults Count() between passes instead of unwinding a Go
// error value, per spec.md §7 ("errors are never raised as exceptional
// control flow; they are data"). AssembleFiles returns Err() once the
// run has reported any error.
type Diagnostics struct {
	items     []Diagnostic
	errCount  int
	noWarn    bool
	out       io.Writer
}

// NewDiagnostics creates a sink that writes formatted diagnostics to w
// as they are recorded. noWarn suppresses warnings entirely (still
// recorded for tests, but not printed and never counted as errors).
func NewDiagnostics(w io.Writer, noWarn bool) *Diagnostics {
	return &Diagnostics{out: w, noWarn: noWarn}
}

// Error reports a hard error at point, bumping the error counter.
func (d *Diagnostics) Error(point SourcePosition, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	d.items = append(d.items, Diagnostic{Point: point, Message: msg})
	d.errCount++
	if d.out != nil {
		fmt.Fprintf(d.out, "%s: %s\n", point, msg)
	}
}

// Warn reports a warning. Warnings never bump the error counter.
func (d *Diagnostics) Warn(point SourcePosition, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	d.items = append(d.items, Diagnostic{Point: point, Message: msg, Warning: true})
	if d.noWarn {
		return
	}
	if d.out != nil {
		fmt.Fprintf(d.out, "%s: warning: %s\n", point, msg)
	}
}

// Count returns the number of hard errors reported so far.
func (d *Diagnostics) Count() int { return d.errCount }

// All returns every recorded diagnostic, errors and warnings alike.
func (d *Diagnostics) All() []Diagnostic { return d.items }

// Report prints the final one-line summary mandated by spec.md §6.
func (d *Diagnostics) Report() {
	if d.out == nil {
		return
	}
	switch d.errCount {
	case 0:
		fmt.Fprintln(d.out, "No errors")
	case 1:
		fmt.Fprintln(d.out, "1 error")
	default:
		fmt.Fprintf(d.out, "%d errors\n", d.errCount)
	}
}

// Err returns the sink as a Go error value for callers that expect one
// (AssembleFiles's error return), matching the shape of db47h-ngaro's
// ErrAsm. The Error name is taken by the reporting method above, so the
// error interface is carried by a small adapter type.
func (d *Diagnostics) Err() error { return diagError{d} }

type diagError struct{ d *Diagnostics }

func (e diagError) Error() string {
	d := e.d
	if d.errCount == 0 {
		return "no errors"
	}
	if d.errCount == 1 {
		return "1 error"
	}
	return fmt.Sprintf("%d errors", d.errCount)
}

// Level is a verbosity level as enumerated in spec.md §6.
type Level int

const (
	LevelQuiet Level = iota
	LevelSummary
	LevelFiles
	LevelPasses
	LevelIR
	LevelLabels
)

// Logger is the ambient leveled logger threaded through the pipeline.
// No external logging library appears anywhere in the retrieval pack,
// so this follows the teacher's own log/logLine/logSection idiom
// (beevik-go6502/asm/asm.go) rather than reaching for one.
type Logger struct {
	w     io.Writer
	level Level
}

// NewLogger constructs a Logger writing to w at the given level.
func NewLogger(w io.Writer, level Level) *Logger {
	return &Logger{w: w, level: level}
}

func (l *Logger) enabled(level Level) bool {
	return l != nil && l.w != nil && l.level >= level
}

// Summary prints the final byte-count summary line (level >= 1).
func (l *Logger) Summary(format string, args ...interface{}) {
	if l.enabled(LevelSummary) {
		fmt.Fprintf(l.w, format+"\n", args...)
	}
}

// File announces a source file being read (level >= 2).
func (l *Logger) File(format string, args ...interface{}) {
	if l.enabled(LevelFiles) {
		fmt.Fprintf(l.w, format+"\n", args...)
	}
}

// Pass announces a pass beginning (level >= 3).
func (l *Logger) Pass(format string, args ...interface{}) {
	if l.enabled(LevelPasses) {
		fmt.Fprintf(l.w, format+"\n", args...)
	}
}

// IR dumps the IR tree after a pass (level >= 4).
func (l *Logger) IR(dump func() string) {
	if l.enabled(LevelIR) {
		fmt.Fprintln(l.w, dump())
	}
}

// Labels dumps the label table after a pass (level >= 5).
func (l *Logger) Labels(dump func() string) {
	if l.enabled(LevelLabels) {
		fmt.Fprintln(l.w, dump())
	}
}
