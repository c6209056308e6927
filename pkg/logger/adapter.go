package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerAdapter gives every component a category logger whether the server
// runs with file logs or with a single process logger. In multi mode every
// category also tees into the process logger so the console stays useful.
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
}

// NewLoggerAdapter creates an adapter over categorised file logs
func NewLoggerAdapter(multiLogger *MultiLogger, process *zap.Logger) *LoggerAdapter {
	if process == nil {
		process = zap.NewNop()
	}
	return &LoggerAdapter{multiLogger: multiLogger, singleLogger: process}
}

// NewSingleLoggerAdapter creates an adapter that sends every category to one logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{singleLogger: logger}
}

// For returns the logger of a category
func (la *LoggerAdapter) For(category LogCategory) *zap.Logger {
	if la.multiLogger == nil {
		return la.singleLogger.With(zap.String("category", string(category)))
	}
	file := la.multiLogger.Logger(category)
	return zap.New(zapcore.NewTee(la.singleLogger.Core(), file.Core()))
}

func (la *LoggerAdapter) General() *zap.Logger { return la.For(CategoryGeneral) }
func (la *LoggerAdapter) Queue() *zap.Logger   { return la.For(CategoryQueue) }
func (la *LoggerAdapter) Access() *zap.Logger  { return la.For(CategoryAccess) }

// LogError logs an error to its category and to the error log
func (la *LoggerAdapter) LogError(category LogCategory, msg string, fields ...zap.Field) {
	if la.multiLogger == nil {
		la.singleLogger.Error(msg, append(fields, zap.String("category", string(category)))...)
		return
	}
	la.singleLogger.Error(msg, fields...)
	la.multiLogger.LogError(category, msg, fields...)
}

// LogsDir returns the directory of the file logs, or "" in single mode
func (la *LoggerAdapter) LogsDir() string {
	if la.multiLogger == nil {
		return ""
	}
	return la.multiLogger.LogsDir()
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.multiLogger != nil {
		return la.multiLogger.Sync()
	}
	return la.singleLogger.Sync()
}
