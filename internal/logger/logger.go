// Package logger provides structured logging for pgrelay using zap.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/pgrelay/internal/config"
)

// Logger wraps zap.SugaredLogger with context methods.
type Logger struct {
	*zap.SugaredLogger
	base       *zap.Logger
	queryCore  *zap.Logger // non-nil when a dedicated SQL-statement log is configured
}

// New creates a new Logger from configuration. When cfg.QueriesLogFile is set,
// a second core is built writing only SQL statements to that file — mirroring
// the original tool's QUERIES_LOG_FILENAME.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	level := parseLevel(cfg.Level)
	encoder := buildEncoder(cfg.Format)
	writers := buildWriters(cfg.Output)

	core := zapcore.NewCore(encoder, writers, level)
	baseLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	l := &Logger{
		SugaredLogger: baseLogger.Sugar(),
		base:          baseLogger,
	}

	if cfg.QueriesLogFile != "" {
		qw := buildWriters(cfg.QueriesLogFile)
		qCore := zapcore.NewCore(buildEncoder("json"), qw, zapcore.DebugLevel)
		l.queryCore = zap.New(qCore)
	}

	return l, nil
}

// LogQuery records a SQL statement to the dedicated queries log, if configured.
// It is a no-op otherwise, so call sites never need to check for nil.
func (l *Logger) LogQuery(stmt string, args ...interface{}) {
	if l.queryCore == nil {
		return
	}
	l.queryCore.Sugar().Infow("query", "sql", stmt, "args", args)
}

// NewDefault creates a Logger with default settings (info level, text format, stdout).
func NewDefault() *Logger {
	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
	logger, _ := New(cfg)
	return logger
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// buildEncoder creates the appropriate encoder based on format.
func buildEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	// Text format with colored output
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// buildWriters creates the output writers based on configuration.
func buildWriters(output string) zapcore.WriteSyncer {
	switch output {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		// File output
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			// Fall back to stdout
			return zapcore.AddSync(os.Stdout)
		}
		// Write to both file and stdout
		return zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(file),
			zapcore.AddSync(os.Stdout),
		)
	}
}

// WithWalk returns a Logger with walker/writer-variant context.
func (l *Logger) WithWalk(walker, writer string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("walker", walker, "writer", writer),
		base:          l.base,
		queryCore:     l.queryCore,
	}
}

// WithTable returns a Logger with table context.
func (l *Logger) WithTable(tableName string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("table", tableName),
		base:          l.base,
		queryCore:     l.queryCore,
	}
}

// WithNode returns a Logger with data-node context (table, ctid, tableoid).
func (l *Logger) WithNode(table, ctid, tableoid string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("table", table, "ctid", ctid, "tableoid", tableoid),
		base:          l.base,
		queryCore:     l.queryCore,
	}
}

// WithEdge returns a Logger with relation-edge context.
func (l *Logger) WithEdge(sourceTable, targetTable string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("source_table", sourceTable, "target_table", targetTable),
		base:          l.base,
		queryCore:     l.queryCore,
	}
}

// WithFields returns a Logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
		queryCore:     l.queryCore,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
