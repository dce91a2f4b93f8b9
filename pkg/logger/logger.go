package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *Logger
	mu           sync.Mutex
)

// Logger wraps zap.SugaredLogger
type Logger struct {
	*zap.SugaredLogger
}

// Init initializes the global logger
func Init(level string, env string) error {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	mu.Unlock()
	return nil
}

// Get returns the global logger, falling back to a development logger
// when Init has not been called (tests, tools)
func Get() *Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		logger, _ := zap.NewDevelopment()
		globalLogger = &Logger{SugaredLogger: logger.Sugar()}
	}
	return globalLogger
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With creates a child logger with additional fields
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// Component returns a child logger tagged with the component name
func Component(name string) *Logger {
	return Get().With("component", name)
}

// Convenience functions that use the global logger
func Debugf(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Infof(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warnf(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { Get().Errorf(template, args...) }
func Fatalf(template string, args ...interface{}) { Get().Fatalf(template, args...) }

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
