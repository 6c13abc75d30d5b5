package execution

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the runtime logging contract. Messages are printf templates;
// correlation data travels as fields on loggers that implement
// FieldsLogger.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that carry structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// Correlation fields attached to engine log lines.
const (
	FieldCaseInstanceID   = "case_instance_id"
	FieldCaseDefinitionID = "case_definition_id"
	FieldCaseExecutionID  = "case_execution_id"
	FieldActivityID       = "activity_id"
	FieldTransition       = "transition"
)

// GlogLogger adapts a glog logger to Logger. glog reads trailing arguments
// as attributes, so messages are formatted before they are handed over.
type GlogLogger struct {
	logger glog.Logger
}

// NewGlogLogger wraps logger. A nil logger discards everything.
func NewGlogLogger(logger glog.Logger) *GlogLogger {
	return &GlogLogger{logger: glog.Ensure(logger)}
}

// NewLogger builds a glog backed logger writing to w at level, as JSON or
// as slog text lines.
func NewLogger(w io.Writer, level string, asJSON bool) *GlogLogger {
	opts := []glog.Option{glog.WithWriter(w), glog.WithLevel(level), glog.WithLoggerTypeConsole()}
	if asJSON {
		opts = append(opts, glog.WithLoggerTypeJSON())
	}
	return NewGlogLogger(glog.NewLogger(opts...))
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger { return NewGlogLogger(glog.Nop()) }

func (l *GlogLogger) Trace(msg string, args ...any) { l.logger.Trace(format(msg, args)) }
func (l *GlogLogger) Debug(msg string, args ...any) { l.logger.Debug(format(msg, args)) }
func (l *GlogLogger) Info(msg string, args ...any)  { l.logger.Info(format(msg, args)) }
func (l *GlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(format(msg, args)) }
func (l *GlogLogger) Error(msg string, args ...any) { l.logger.Error(format(msg, args)) }
func (l *GlogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(format(msg, args)) }

func (l *GlogLogger) WithContext(ctx context.Context) Logger {
	return &GlogLogger{logger: l.logger.WithContext(ctx)}
}

// WithFields returns l unchanged when the wrapped logger has no field
// support.
func (l *GlogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok && len(fields) > 0 {
		return &GlogLogger{logger: fl.WithFields(fields)}
	}
	return l
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

func normalizeLogger(logger Logger) Logger {
	if logger == nil {
		return NewNopLogger()
	}
	return logger
}

// WithLoggerFields attaches fields when the logger supports them.
func WithLoggerFields(logger Logger, fields map[string]any) Logger {
	logger = normalizeLogger(logger)
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return logger
}

// correlation returns the fields identifying ex in log output.
func correlation(ex *CaseExecution) map[string]any {
	fields := map[string]any{
		FieldCaseExecutionID: ex.id,
		FieldActivityID:      ex.ActivityID(),
	}
	if ex.instance != nil {
		fields[FieldCaseInstanceID] = ex.instance.id
	}
	return fields
}
