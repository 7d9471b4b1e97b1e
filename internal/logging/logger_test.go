package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerDefaultsToStderr(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
	if logger.level != LevelInfo {
		t.Errorf("expected default level Info, got %v", logger.level)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected no output below Warn level, got: %s", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected warn message in output, got: %s", buf.String())
	}
}

func TestLoggerPrintfVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Errorf("failed: %s (%d)", "boom", 42)
	output := buf.String()
	if !strings.Contains(output, "failed: boom (42)") {
		t.Errorf("expected formatted message, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected key=value in output, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}

func TestNewFromEnvModeDiscard(t *testing.T) {
	t.Setenv("MCT_LOG_MODE", "0")
	t.Setenv("MCT_LOG_LEVEL", "")
	t.Setenv("MCT_LOG_FILENAME", "")

	logger := NewFromEnv()
	logger.Info("should be discarded")
	// No assertion beyond not panicking: io.Discard has no observable state.
}

func TestNewFromEnvModeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mct.log")

	t.Setenv("MCT_LOG_MODE", "2")
	t.Setenv("MCT_LOG_LEVEL", "4")
	t.Setenv("MCT_LOG_FILENAME", path)

	logger := NewFromEnv()
	logger.Info("hello from file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from file") {
		t.Errorf("expected log line in file, got: %s", data)
	}
}

func TestNewFromEnvLevelClamping(t *testing.T) {
	t.Setenv("MCT_LOG_MODE", "")
	t.Setenv("MCT_LOG_FILENAME", "")

	// MCT_LOG_LEVEL uses the same integer scale as the wire protocol's
	// own log level field (LevelFatal=1..LevelVerbose=6), clamped at
	// both ends.
	t.Setenv("MCT_LOG_LEVEL", "99")
	logger := NewFromEnv()
	if logger.level != LevelVerbose {
		t.Errorf("expected clamped level Verbose, got %v", logger.level)
	}

	t.Setenv("MCT_LOG_LEVEL", "-5")
	logger = NewFromEnv()
	if logger.level != LevelFatal {
		t.Errorf("expected clamped level Fatal, got %v", logger.level)
	}
}

func TestClampLevelPassesThroughMidRange(t *testing.T) {
	t.Setenv("MCT_LOG_MODE", "")
	t.Setenv("MCT_LOG_FILENAME", "")

	t.Setenv("MCT_LOG_LEVEL", "3")
	logger := NewFromEnv()
	if logger.level != LevelWarn {
		t.Errorf("expected level Warn for MCT_LOG_LEVEL=3, got %v", logger.level)
	}
}
