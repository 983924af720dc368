package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// DebugLevel controls how much the engine prints about its work.
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugSQL
	DebugTrace
)

// DebugContext carries the engine's debug output settings.
type DebugContext struct {
	Level       DebugLevel
	Writer      io.Writer
	ColorOutput bool
}

// DefaultDebugContext returns debugging switched off.
func DefaultDebugContext() *DebugContext {
	return &DebugContext{Level: DebugOff, Writer: os.Stdout, ColorOutput: true}
}

func (d *DebugContext) enabled(level DebugLevel) bool {
	return d != nil && d.Level >= level
}

// logSQL prints a rendered statement and its parameter values.
func (d *DebugContext) logSQL(op, entity, sqlText string, values []any) {
	if !d.enabled(DebugSQL) {
		return
	}
	if d.ColorOutput {
		color.New(color.FgCyan, color.Bold).Fprintf(d.Writer, "[%s] ", op)
	} else {
		fmt.Fprintf(d.Writer, "[%s] ", op)
	}
	fmt.Fprintf(d.Writer, "%s\n[SQL] %s\n[VALUES] %v\n", entity, sqlText, values)
}

// logTrace prints an operation timing line.
func (d *DebugContext) logTrace(op, entity string, elapsed time.Duration, affected int64) {
	if !d.enabled(DebugTrace) {
		return
	}
	fmt.Fprintf(d.Writer, "[TRACE] %s on %s: %v, %d row(s)\n", op, entity, elapsed, affected)
}

// logWarn prints a warning (used by the null-and-log enum policy).
func (d *DebugContext) logWarn(format string, args ...any) {
	if d == nil || d.Writer == nil {
		return
	}
	if d.ColorOutput {
		color.New(color.FgYellow, color.Bold).Fprint(d.Writer, "[WARN] ")
	} else {
		fmt.Fprint(d.Writer, "[WARN] ")
	}
	fmt.Fprintf(d.Writer, format+"\n", args...)
}
