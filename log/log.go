//
// Copyright (C) 2026 The groundpack authors. All rights reserved.
//
// groundpack is licensed under the Apache License Version 2.0.
//
//

// Package log provides logging utilities.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Default borrows logging utilities from zap.
// You may replace it with whatever logger you like as long as it implements
// the Logger interface.
var Default Logger = zap.New(
	zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zapLevel,
	),
	zap.AddCaller(),
	zap.AddCallerSkip(1),
).Sugar()

// SetLevel sets the log level to the specified level.
// Valid levels are: "debug", "info", "warn", "error", "fatal".
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		zapLevel.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	case LevelFatal:
		zapLevel.SetLevel(zapcore.FatalLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger defines the logging interface used throughout groundpack.
type Logger interface {
	// Debug logs to DEBUG log. Arguments are handled in the manner of fmt.Print.
	Debug(args ...any)
	// Debugf logs to DEBUG log. Arguments are handled in the manner of fmt.Printf.
	Debugf(format string, args ...any)
	// Info logs to INFO log. Arguments are handled in the manner of fmt.Print.
	Info(args ...any)
	// Infof logs to INFO log. Arguments are handled in the manner of fmt.Printf.
	Infof(format string, args ...any)
	// Warn logs to WARNING log. Arguments are handled in the manner of fmt.Print.
	Warn(args ...any)
	// Warnf logs to WARNING log. Arguments are handled in the manner of fmt.Printf.
	Warnf(format string, args ...any)
	// Error logs to ERROR log. Arguments are handled in the manner of fmt.Print.
	Error(args ...any)
	// Errorf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
	Errorf(format string, args ...any)
	// Fatal logs to FATAL log. Arguments are handled in the manner of fmt.Print.
	Fatal(args ...any)
	// Fatalf logs to FATAL log. Arguments are handled in the manner of fmt.Printf.
	Fatalf(format string, args ...any)
}

// Debug logs to DEBUG log via the default logger.
func Debug(args ...any) { Default.Debug(args...) }

// Debugf logs to DEBUG log via the default logger.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Info logs to INFO log via the default logger.
func Info(args ...any) { Default.Info(args...) }

// Infof logs to INFO log via the default logger.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warn logs to WARNING log via the default logger.
func Warn(args ...any) { Default.Warn(args...) }

// Warnf logs to WARNING log via the default logger.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Error logs to ERROR log via the default logger.
func Error(args ...any) { Default.Error(args...) }

// Errorf logs to ERROR log via the default logger.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatal logs to FATAL log via the default logger.
func Fatal(args ...any) { Default.Fatal(args...) }

// Fatalf logs to FATAL log via the default logger.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
