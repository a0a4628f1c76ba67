// Package logger builds the zap logger used by the qcsv command.
package logger

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel keeps normal output free of log lines.
const DefaultLevel = "warn"

// ParseLevel parses a level name such as "debug" or "WARN". An empty name is DefaultLevel.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultLevel
	}
	atomicLevel, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zapcore.InvalidLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return atomicLevel.Level(), nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "M",
		LevelKey:       "L",
		TimeKey:        "T",
		NameKey:        "N",
		CallerKey:      zapcore.OmitKey,
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New returns a console logger writing to w at the given level.
func New(level zapcore.Level, w io.Writer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core).Named("qcsv")
}
