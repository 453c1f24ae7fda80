// Package logger defines the logging interface used throughout stratadb.
// Call sites depend on this interface, never directly on zap, so the
// concrete implementation (package logger/zap) can be swapped without
// touching planner/executor/index code — the same separation the teacher
// keeps between types.Logger and logger/zap.
package logger

import "go.uber.org/zap/zapcore"

// StandardLogger mirrors the traditional Debug/Info/Warn/Error/Fatal shape.
type StandardLogger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// StructuredLogger adds key-value pairs to a message.
type StructuredLogger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Logger is the interface every engine component logs through.
type Logger interface {
	StandardLogger
	StructuredLogger

	// With returns a child logger tagged with the given subsystem/field
	// name, e.g. logger.New("root").With("planner").
	With(fields ...string) Logger
	// WithObject attaches a zap-marshalable object under name, used for
	// statement/plan dumps at Debug level.
	WithObject(name string, obj zapcore.ObjectMarshaler) Logger
}

// nop is the zero-value Logger used when no implementation is wired,
// e.g. in unit tests that don't care about log output.
type nop struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

func (nop) Debug(args ...any) {}
func (nop) Info(args ...any)  {}
func (nop) Warn(args ...any)  {}
func (nop) Error(args ...any) {}
func (nop) Fatal(args ...any) {}

func (nop) Debugf(format string, args ...any) {}
func (nop) Infof(format string, args ...any)  {}
func (nop) Warnf(format string, args ...any)  {}
func (nop) Errorf(format string, args ...any) {}
func (nop) Fatalf(format string, args ...any) {}

func (nop) Debugw(msg string, keysAndValues ...any) {}
func (nop) Infow(msg string, keysAndValues ...any)  {}
func (nop) Warnw(msg string, keysAndValues ...any)  {}
func (nop) Errorw(msg string, keysAndValues ...any) {}

func (n nop) With(fields ...string) Logger                                 { return n }
func (n nop) WithObject(name string, obj zapcore.ObjectMarshaler) Logger   { return n }
