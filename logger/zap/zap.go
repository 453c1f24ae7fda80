// Package zap implements logger.Logger on top of go.uber.org/zap, the way
// the teacher's logger/zap package implements types.Logger: construct a
// *zap.Logger from an encoder/writer/level core, then adapt it to the
// engine's own interface instead of leaking zap types into call sites.
package zap

import (
	"os"
	"strings"

	"github.com/forbearing/stratadb/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures encoder behavior for constructors, mirroring the
// teacher's DisableMsg/DisableLevel/TSLayout knobs.
type Option struct {
	DisableMsg   bool
	DisableLevel bool
	Level        string // "debug"|"info"|"warn"|"error", default "info"
	Format       string // "json"|"console", default "json"
}

// Log implements logger.Logger backed by *zap.SugaredLogger.
type Log struct {
	s  *zap.SugaredLogger
	zl *zap.Logger
}

var _ logger.Logger = (*Log)(nil)

// New builds the root Log for the given subsystem name ("" for the
// engine-wide root logger). Prefer root.With("planner") over calling New
// again so every subsystem shares one encoder/level configuration.
func New(name string, opts ...Option) *Log {
	var o Option
	if len(opts) > 0 {
		o = opts[0]
	}
	zl := zap.New(
		zapcore.NewCore(newEncoder(o), newWriter(), newLevel(o)),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.FatalLevel),
	)
	if name != "" {
		zl = zl.Named(name)
	}
	return &Log{s: zl.Sugar(), zl: zl}
}

func (l *Log) Debug(args ...any) { l.s.Debug(args...) }
func (l *Log) Info(args ...any)  { l.s.Info(args...) }
func (l *Log) Warn(args ...any)  { l.s.Warn(args...) }
func (l *Log) Error(args ...any) { l.s.Error(args...) }
func (l *Log) Fatal(args ...any) { l.s.Fatal(args...) }

func (l *Log) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Log) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *Log) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l *Log) Fatalf(format string, args ...any) { l.s.Fatalf(format, args...) }

func (l *Log) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Log) Infow(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Log) Warnw(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Log) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// With returns a child logger named parent.child1.child2...
func (l *Log) With(fields ...string) logger.Logger {
	zl := l.zl
	for _, f := range fields {
		zl = zl.Named(f)
	}
	return &Log{s: zl.Sugar(), zl: zl}
}

// WithObject pre-attaches a zap.Object field, used for statement/plan
// dumps logged at Debug level.
func (l *Log) WithObject(name string, obj zapcore.ObjectMarshaler) logger.Logger {
	zl := l.zl.With(zap.Object(name, obj))
	return &Log{s: zl.Sugar(), zl: zl}
}

// Sync flushes any buffered log entries; call during shutdown.
func (l *Log) Sync() error { return l.zl.Sync() }

func newWriter() zapcore.WriteSyncer {
	return zapcore.Lock(zapcore.AddSync(os.Stdout))
}

func newLevel(o Option) zapcore.Level {
	if o.Level == "" {
		return zapcore.InfoLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func newEncoder(o Option) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if o.DisableMsg {
		cfg.MessageKey = ""
	}
	if o.DisableLevel {
		cfg.LevelKey = ""
	}
	if strings.ToLower(o.Format) == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}
