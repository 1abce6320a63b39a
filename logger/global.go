package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// global backs the package-level functions. New replaces it; until then a
// default info-level JSON logger is built on first use.
var global atomic.Pointer[zap.Logger]

func loadGlobal() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, buildDefault())
	return global.Load()
}

func buildDefault() *zap.Logger {
	cfg := DefaultConfig()
	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}.Build(zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetGlobalLogger replaces the logger used by the package-level functions.
// Build it with AddCallerSkip(1) to keep caller information accurate.
func SetGlobalLogger(l *zap.Logger) {
	global.Store(l)
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *zap.Logger {
	return loadGlobal()
}

// For returns the global logger tagged with a component name, for code that
// has no Logger injected.
func For(component string) Logger {
	return loadGlobal().WithOptions(zap.AddCallerSkip(-1)).With(Component(component))
}

func Debug(msg string, fields ...zap.Field) { loadGlobal().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { loadGlobal().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { loadGlobal().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { loadGlobal().Error(msg, fields...) }

// Sync flushes the global logger.
func Sync() error {
	return loadGlobal().Sync()
}
