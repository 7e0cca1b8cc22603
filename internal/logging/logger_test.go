package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Vetacher/zoom-translator/internal/logging"
	"github.com/Vetacher/zoom-translator/internal/services"
)

func TestNewConsoleWritesRecord(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("stage complete", logging.Int("segments", 12))
	out := buf.String()
	if !strings.Contains(out, "stage complete") {
		t.Fatalf("output missing message: %q", out)
	}
	if !strings.Contains(out, "segments=12") {
		t.Fatalf("output missing attr: %q", out)
	}
}

func TestNewConsoleHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("suppressed")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewComponentLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.NewComponentLogger(logger, "translator").Info("ready")
	if !strings.Contains(buf.String(), "[translator]") {
		t.Fatalf("component tag missing: %q", buf.String())
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithStage(ctx, "translate")
	ctx = services.WithSegmentID(ctx, 7)
	logging.WithContext(ctx, logger).Info("working")
	out := buf.String()
	for _, want := range []string{`"run_id":"run-42"`, `"stage":"translate"`, `"segment_id":7`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("dropped")
}
