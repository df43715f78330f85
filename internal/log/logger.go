// Package log provides the application-wide leveled logging facade.
// It is a thin wrapper around zap's sugared logger so packages can log
// without carrying a logger dependency through every constructor.
package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

func init() {
	// Default console logger at info level. Configure() replaces it once
	// the application configuration has been loaded.
	l, _ := newZap(zapcore.InfoLevel)
	logger = l.Sugar()
}

func newZap(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg.Build(zap.AddCallerSkip(1))
}

// Configure replaces the global logger with one at the given level.
// Unrecognized level strings fall back to info.
func Configure(level string) error {
	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	l, err := newZap(parsed)
	if err != nil {
		return err
	}
	logger = l.Sugar()
	return nil
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = logger.Sync()
}

func Debugf(format string, v ...interface{}) { logger.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { logger.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { logger.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { logger.Errorf(format, v...) }

// Fatalf logs a fatal message and exits the application.
func Fatalf(format string, v ...interface{}) { logger.Fatalf(format, v...) }

func Debug(v ...interface{}) { logger.Debug(v...) }
func Info(v ...interface{})  { logger.Info(v...) }
func Warn(v ...interface{})  { logger.Warn(v...) }
func Error(v ...interface{}) { logger.Error(v...) }
func Fatal(v ...interface{}) { logger.Fatal(v...) }
