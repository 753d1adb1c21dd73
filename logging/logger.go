// Package logging builds the zap loggers used across the engine.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN", "WARNING":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// New returns a console logger writing to stderr. Unknown levels fall back
// to info.
func New(level string) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.AddSync(os.Stderr),
		ParseLevel(level),
	)
	return zap.New(core, zap.AddCaller())
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
