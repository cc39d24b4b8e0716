package internal

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var (
	logMu   sync.RWMutex
	atomLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger  = zap.NewNop().Sugar()
)

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	atomLvl.SetLevel(toZapLevel(level))
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LogLevelDebug)
	} else {
		SetLogLevel(LogLevelInfo)
	}
}

// InitLogger routes log output to a rotating JSON file. The terminal belongs
// to the chat view, so nothing is written to stdout or stderr.
func InitLogger(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		atomLvl,
	)

	logMu.Lock()
	logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
	logMu.Unlock()
	return nil
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	logMu.RLock()
	l := logger
	logMu.RUnlock()
	_ = l.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func current() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func logError(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

func logWarn(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

func logInfo(format string, args ...interface{}) {
	current().Infof(format, args...)
}

func logDebug(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	logError(format, args...)
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	logWarn(format, args...)
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	logInfo(format, args...)
}

// LogDebug logs a debug message
func LogDebug(format string, args ...interface{}) {
	logDebug(format, args...)
}
