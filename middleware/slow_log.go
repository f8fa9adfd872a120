package middleware

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shrek82/jpersist/logger"
	"github.com/shrek82/jpersist/store"
)

// SlowLog logs statements that take longer than the specified threshold.
type SlowLog struct {
	Threshold time.Duration

	logger logger.Logger
	file   *os.File
}

var _ store.Middleware = (*SlowLog)(nil)

// NewSlowLog creates a slow-statement logger writing warnings to l.
func NewSlowLog(threshold time.Duration, l logger.Logger) *SlowLog {
	return &SlowLog{Threshold: threshold, logger: l}
}

// NewSlowLogFile creates a slow-statement logger appending to the file at path.
func NewSlowLogFile(threshold time.Duration, path string) (*SlowLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open slow log file: %w", err)
	}
	l := logger.NewStdLogger()
	l.SetOutput(f)
	l.SetLevel(logger.LogLevelWarn)
	return &SlowLog{Threshold: threshold, logger: l, file: f}, nil
}

func (m *SlowLog) Name() string {
	return "SlowLog"
}

// Close closes the log file opened by NewSlowLogFile.
func (m *SlowLog) Close() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLog) Process(ctx context.Context, stmt *store.Statement, next store.ExecFunc) (*store.Result, error) {
	start := time.Now()
	res, err := next(ctx, stmt)
	duration := time.Since(start)

	if duration > m.Threshold {
		var rows int64
		if res != nil {
			rows = res.RowsAffected
		}
		m.logger.Warn("slow sql: duration=%v | sql=%s | args=%v | rows=%d | err=%v", duration, stmt.SQL, stmt.Args, rows, err)
	}
	return res, err
}
