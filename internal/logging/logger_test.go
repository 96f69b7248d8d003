package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"contentfactory/internal/config"
	"contentfactory/internal/logging"
	"contentfactory/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (func(), string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:  format,
		Level:   level,
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithJobID(context.Background(), 12)
	ctx = services.WithStage(ctx, "script")
	emit := func() {
		logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).
			Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
		logger.Debug("debug detail")
	}
	return emit, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	content := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if !strings.Contains(content, "hello") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerPrefixesJobAndStage(t *testing.T) {
	emit, path := newFileLogger(t, "console", "info")
	emit()
	content := readLog(t, path)

	if !strings.Contains(content, "[job 12/script] pipeline: stage started") {
		t.Fatalf("expected job/stage prefix, got %q", content)
	}
	if !strings.Contains(content, "event_type=stage_start") {
		t.Fatalf("expected event_type field, got %q", content)
	}
	if strings.Contains(content, "debug detail") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	emit, path := newFileLogger(t, "console", "debug")
	emit()
	content := readLog(t, path)
	if !strings.Contains(content, "debug detail") {
		t.Fatalf("expected debug line, got %q", content)
	}
	if !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information for debug level, got %q", content)
	}
}

func TestJSONLoggerUsesStableKeys(t *testing.T) {
	emit, path := newFileLogger(t, "json", "info")
	emit()
	line := strings.TrimSpace(readLog(t, path))

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode json line %q: %v", line, err)
	}
	for _, key := range []string{"ts", "level", "msg", "job_id", "stage", "component"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in %v", key, payload)
		}
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "scene count mismatch", "scene_count_mismatch", logging.Error(errors.New("x")))
	content := readLog(t, path)
	for _, fragment := range []string{"event_type=scene_count_mismatch", "error_hint=", "impact="} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}
