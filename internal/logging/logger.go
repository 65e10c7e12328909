// Package logging provides the process-wide structured logger for dualplan.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

// Options select the logger flavour
type Options struct {
	Level       string // debug, info, warn, error
	Environment string // "production" selects JSON output
}

// Build constructs a logger for opts without installing it
func Build(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	// progress and results go to stdout, logs stay on stderr
	cfg.OutputPaths = []string{"stderr"}

	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// Init builds and installs the global logger. Falls back to a nop logger if
// the configuration is unusable.
func Init(opts Options) {
	l, err := Build(opts)
	if err != nil {
		l = zap.NewNop()
	}
	Set(l)
}

// Set installs l as the global logger
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	sugar = l.Sugar()
}

// L returns the global structured logger
func L() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init(Options{})
		return L()
	}
	return l
}

// S returns the global sugared logger (printf-style)
func S() *zap.SugaredLogger {
	_ = L()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes any buffered log entries. Call before app exit.
func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// With returns the global logger with additional structured fields
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// OrDefault returns l, or the global logger when l is nil
func OrDefault(l *zap.Logger) *zap.Logger {
	if l == nil {
		return L()
	}
	return l
}
