package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	// File is an optional log file path. When set, logs are written there
	// (JSON, rotated) in addition to Console.
	File string

	// Console receives human-readable logs. Nil disables console output,
	// which is what the TUI wants since it owns the terminal.
	Console io.Writer

	// Level is one of debug|info|warn|error. Empty means info for the
	// file and warn for the console.
	Level string
}

// New builds the process logger. It never fails: an unusable config degrades
// to a no-op logger.
func New(opts Options) *zap.Logger {
	var cores []zapcore.Core

	fileLevel := parseLevel(opts.Level, zapcore.InfoLevel)
	consoleLevel := parseLevel(opts.Level, zapcore.WarnLevel)

	if path := strings.TrimSpace(opts.File); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.MessageKey = "message"
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), fileLevel))
	}

	if opts.Console != nil {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(opts.Console)), consoleLevel))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// Stderr is the default for scriptable commands: warnings and errors only.
func Stderr() *zap.Logger {
	return New(Options{Console: os.Stderr})
}

func parseLevel(s string, def zapcore.Level) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return def
	}
	return lvl
}
