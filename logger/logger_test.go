package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStdLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("imported %s (%s=%d)", "User", "id", 7)

		output := buf.String()
		if !strings.Contains(output, "INFO") || !strings.Contains(output, "imported User (id=7)") {
			t.Errorf("Unexpected text output: %s", output)
		}
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.WithFields(map[string]any{"record": "User"}).Warn("no field for key %q", "nick")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "WARN" || data["msg"] != `no field for key "nick"` || data["record"] != "User" {
			t.Errorf("Unexpected JSON output: %v", data)
		}
	})

	t.Run("Levels", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelWarn)
		l.Info("hidden")
		l.SQL("SELECT 1", time.Millisecond)
		if buf.Len() != 0 {
			t.Errorf("Expected no output below warn, got %s", buf.String())
		}

		l.SetLevel(LogLevelDebug)
		l.SQL("DELETE FROM users WHERE id = ?", 2*time.Millisecond, 1)
		if !strings.Contains(buf.String(), "DELETE FROM users") || !strings.Contains(buf.String(), ansiRed) {
			t.Errorf("Expected colored SQL line, got %q", buf.String())
		}
	})

	t.Run("PercentWithoutArgs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("100% done")
		if !strings.Contains(buf.String(), "100% done") {
			t.Errorf("Unexpected output: %s", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"silent":  LogLevelSilent,
		"ERROR":   LogLevelError,
		"warning": LogLevelWarn,
		"":        LogLevelInfo,
		"debug":   LogLevelDebug,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestZerologLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZerolog(zerolog.New(nil))
	l.SetOutput(buf)
	l.SetLevel(LogLevelDebug)

	l.WithFields(map[string]any{"record": "Post"}).Info("imported %s", "Post")
	l.SQL("UPDATE posts SET title = ?", time.Millisecond, "x")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if info["level"] != "info" || info["message"] != "imported Post" || info["record"] != "Post" {
		t.Errorf("Unexpected info entry: %v", info)
	}

	var sql map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &sql); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if sql["level"] != "debug" || sql["sql"] != "UPDATE posts SET title = ?" {
		t.Errorf("Unexpected sql entry: %v", sql)
	}

	buf.Reset()
	l.SetLevel(LogLevelError)
	l.Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("Expected warn to be suppressed, got %s", buf.String())
	}
}
