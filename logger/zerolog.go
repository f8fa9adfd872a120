package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl     zerolog.Logger
	writer io.Writer
	format LogFormat
}

// NewZerolog wraps zl. The wrapped logger's level is replaced by SetLevel;
// SetOutput and SetFormat rebuild it on top of the new writer.
func NewZerolog(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl, format: LogFormatJSON}
}

func (l *zerologLogger) SetLevel(level LogLevel) {
	l.zl = l.zl.Level(zerologLevel(level))
}

func (l *zerologLogger) SetFormat(format LogFormat) {
	l.format = format
	if l.writer != nil {
		l.SetOutput(l.writer)
	}
}

func (l *zerologLogger) SetOutput(w io.Writer) {
	l.writer = w
	if l.format == LogFormatText {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05", NoColor: true}
	}
	l.zl = l.zl.Output(w)
}

func (l *zerologLogger) WithFields(fields map[string]any) Logger {
	return &zerologLogger{
		zl:     l.zl.With().Fields(fields).Logger(),
		writer: l.writer,
		format: l.format,
	}
}

func (l *zerologLogger) Info(format string, args ...any) {
	l.zl.Info().Msg(sprintf(format, args))
}

func (l *zerologLogger) Warn(format string, args ...any) {
	l.zl.Warn().Msg(sprintf(format, args))
}

func (l *zerologLogger) Error(format string, args ...any) {
	l.zl.Error().Msg(sprintf(format, args))
}

func (l *zerologLogger) SQL(sql string, duration time.Duration, args ...any) {
	l.zl.Debug().
		Str("sql", sql).
		Dur("duration", duration).
		Interface("args", args).
		Msg("sql")
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelSilent:
		return zerolog.Disabled
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
