package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"shelfsync/internal/services"
)

func TestConsoleHandlerLiftsSubject(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "syncer").With(
		String(FieldTarget, "games"),
		String(FieldRunID, "1a2b3c4d-5e6f-7a8b-9c0d-112233445566"),
	)
	logger.Info("record synced", String(FieldRecordID, "0f9e8d7c6b5a49382716051423324150"), Int("changes", 2))

	line := buf.String()
	for _, want := range []string{"INFO  syncer [games 1a2b3c4d · record 0f9e8d7c]: record synced", "changes=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "run_id=") {
		t.Fatalf("subject keys should not repeat in the tail: %q", line)
	}
}

func TestConsoleHandlerQuotesAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false))
	logger.WithGroup("http").Info("request", String("path", "/v1/pages"), String("note", "two words"))
	line := buf.String()
	if !strings.Contains(line, "http.path=/v1/pages") || !strings.Contains(line, `http.note="two words"`) {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestNewWritesJSONRunLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", LogFileName)
	logger, err := New(Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{filepath.Join(dir, "console.log")},
		FilePath:    logPath,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("provider throttled", Duration("wait", 1500000000))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("run log is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "provider throttled" || entry["level"] != "debug" || entry["wait"] != "1.5s" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	console, _ := os.ReadFile(filepath.Join(dir, "console.log"))
	if !strings.Contains(string(console), "provider throttled") {
		t.Fatalf("console output missing line: %q", console)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestAutoFormatUsesJSONOffTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	if got := resolveFormat("auto", f); got != "json" {
		t.Fatalf("auto on a file = %q, want json", got)
	}
	if got := resolveFormat("", &bytes.Buffer{}); got != "console" {
		t.Fatalf("empty format = %q, want console", got)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	WarnWithContext(logger, "related record unavailable", "related_link_failed", String(FieldImpact, "relation left unset"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldEventType] != "related_link_failed" || entry[FieldImpact] != "relation left unset" || entry[FieldErrorHint] == "" {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithTarget(ctx, "music")
	ctx = services.WithRecordID(ctx, "rec-9")
	ctx = services.WithRequestID(ctx, "req-xyz")

	WithContext(ctx, base).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]string{
		FieldRunID:         "run-1",
		FieldTarget:        "music",
		FieldRecordID:      "rec-9",
		FieldCorrelationID: "req-xyz",
	} {
		if entry[key] != want {
			t.Fatalf("field %s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(newFanoutHandler(nil, info, debug))

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Contains(infoBuf.String(), "debug only") || !strings.Contains(infoBuf.String(), "both") {
		t.Fatalf("info handler got %q", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "debug only") {
		t.Fatalf("debug handler got %q", debugBuf.String())
	}
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("all-nil fanout should be a no-op")
	}
}
