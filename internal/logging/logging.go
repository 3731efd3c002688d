// Package logging builds the zap loggers used by the gokanplan binaries.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoding of a Logger.
type Config struct {
	Level    string
	Encoding string // "json" or "console"
}

// Logger wraps a zap.Logger whose level can be changed while it runs.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Build writes entries below error to stdout and the rest to stderr.
func Build(cfg Config) (*Logger, error) {
	return BuildTo(cfg, os.Stdout, os.Stderr)
}

// BuildTo is Build with explicit sinks.
func BuildTo(cfg Config, out, errOut io.Writer) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("logger level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	switch orDefault(cfg.Encoding, "json") {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("logger encoding %q: want json or console", cfg.Encoding)
	}

	high := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl >= zapcore.ErrorLevel
	})
	low := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return level.Enabled(lvl) && lvl < zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(out), low),
		zapcore.NewCore(encoder.Clone(), zapcore.AddSync(errOut), high),
	)
	return &Logger{Logger: zap.New(core, zap.AddCaller()), level: level}, nil
}

// Level reports the current level.
func (l *Logger) Level() zapcore.Level { return l.level.Level() }

// SetLevel changes the level in place. Loggers derived with With or
// Named share the change.
func (l *Logger) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger level: %w", err)
	}
	if lvl != l.level.Level() {
		l.level.SetLevel(lvl)
		l.Info("log level updated", zap.Stringer("level", lvl))
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
