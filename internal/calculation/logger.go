package calculation

import (
	"fmt"
	"io"
)

// Logger is the structured-event sink the engine records to at well-defined
// points (year starts, allocation decisions, tax and debt events).
// Implementations should be fast; the default is a no-op and the engine
// never owns the sink's lifecycle.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger implements Logger with no output.
type NopLogger struct{}

func (NopLogger) Debugf(format string, args ...any) {}
func (NopLogger) Infof(format string, args ...any)  {}
func (NopLogger) Warnf(format string, args ...any)  {}
func (NopLogger) Errorf(format string, args ...any) {}

// WriterLogger writes leveled lines to an io.Writer. Debug lines are dropped
// unless Verbose is set. Used by the CLI's --verbose flag.
type WriterLogger struct {
	W       io.Writer
	Verbose bool
}

func (l WriterLogger) log(level, format string, args ...any) {
	fmt.Fprintf(l.W, "%-5s %s\n", level, fmt.Sprintf(format, args...))
}

func (l WriterLogger) Debugf(format string, args ...any) {
	if l.Verbose {
		l.log("DEBUG", format, args...)
	}
}
func (l WriterLogger) Infof(format string, args ...any)  { l.log("INFO", format, args...) }
func (l WriterLogger) Warnf(format string, args ...any)  { l.log("WARN", format, args...) }
func (l WriterLogger) Errorf(format string, args ...any) { l.log("ERROR", format, args...) }
