// Package rmlog builds the zap logger used across RecordManager. It
// mirrors the "one NewLogger entry point, terminal-vs-json style"
// shape used elsewhere in the example pack's zap-based services, cut
// down to the two styles this CLI actually needs.
package rmlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the logger's output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
)

// Config configures New.
type Config struct {
	Style Style
	Level string // parsed with zapcore.ParseLevel; empty defaults to info
}

// New builds a *zap.Logger for the given config, defaulting to a
// human-readable terminal encoder at info level.
func New(c Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if lvl, err := zapcore.ParseLevel(c.Level); err == nil {
			level = lvl
		}
	}

	if c.Style == StyleJSON {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build(zap.AddCaller())
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build(zap.AddCaller())
}
