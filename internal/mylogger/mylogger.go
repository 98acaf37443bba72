package mylogger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelDebug string = "DEBUG"
	LevelInfo  string = "INFO"
	LevelWarn  string = "WARN"
	LevelError string = "ERROR"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)
	Action(action string) Logger
	With(args ...any) Logger
	WithGroup(groupName string) Logger
}

// FileSink describes the optional rotated log file written next to stdout.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(logLevel string, sink FileSink) (Logger, error) {
	startupID := generateStartupID()

	// Retrieve hostname
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	writers := []io.Writer{os.Stdout}
	if sink.Path != "" {
		// Ensure the directory exists
		if err = os.MkdirAll(filepath.Dir(sink.Path), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create logs directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   sink.Path,
			MaxSize:    sink.MaxSizeMB,
			MaxBackups: sink.MaxBackups,
			MaxAge:     sink.MaxAgeDays,
			Compress:   true,
		})
	}

	return NewWithWriter(io.MultiWriter(writers...), logLevel).With("hostname", hostname, "startup_id", startupID), nil
}

// NewWithWriter builds the JSON logger on top of an arbitrary writer.
func NewWithWriter(w io.Writer, logLevel string) Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(logLevel))

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename 'msg' to 'message'
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			// Format time as ISO 8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.Attr{Key: "timestamp", Value: slog.StringValue(t.Format(time.RFC3339))}
				}
			}
			return a
		},
	})

	return &logger{log: slog.New(handler)}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() Logger {
	return NewWithWriter(io.Discard, LevelError)
}

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type logger struct {
	log *slog.Logger
}

func (l *logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

func (l *logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

// Error log with stack trace
func (l *logger) Error(msg string, err error, args ...any) {
	frames := captureFrames(3, 8)

	attrs := append(args, slog.Group("error",
		slog.Any("msg", err),
		slog.Any("stack", frames),
	))

	l.log.Error(msg, attrs...)
}

func (l logger) Action(action string) Logger {
	l.log = l.log.With("action", action)
	return &l
}

func (l logger) With(args ...any) Logger {
	l.log = l.log.With(args...)
	return &l
}

func (l logger) WithGroup(groupName string) Logger {
	l.log = l.log.WithGroup(groupName)
	return &l
}
