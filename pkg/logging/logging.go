// Package logging builds the zap loggers used across arenabuf.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names understood by New in addition to the zap levels.
const (
	// LevelNoop discards everything.
	LevelNoop = "noop"
	// LevelTest logs everything in development format.
	LevelTest = "test"
)

// New returns a sugared logger writing JSON to stderr at level. Level names
// are zap's (debug, info, warn, error, ...), case-insensitive, plus noop and
// test.
func New(level string) (*zap.SugaredLogger, error) {
	switch strings.ToLower(level) {
	case LevelNoop:
		return zap.NewNop().Sugar(), nil
	case LevelTest:
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		return l.Sugar(), nil
	}

	if err := ValidLevel(level); err != nil {
		return nil, err
	}
	lvl, _ := zapcore.ParseLevel(strings.ToLower(level))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

// ValidLevel reports whether New accepts level.
func ValidLevel(level string) error {
	switch strings.ToLower(level) {
	case LevelNoop, LevelTest:
		return nil
	}
	if _, err := zapcore.ParseLevel(strings.ToLower(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return nil
}

// WithServiceName names a logger after the component using it.
func WithServiceName(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return log.Named(name).With("service", name)
}
