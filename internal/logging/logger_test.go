package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLog(t *testing.T, dir string, category Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, ".testgen", "logs", date+"_"+string(category)+".log"))
	if err != nil {
		t.Fatalf("Failed to read %s log: %v", category, err)
	}
	return string(data)
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize("", Options{}); err == nil {
		t.Fatal("expected error for empty workspace")
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	tempDir := t.TempDir()
	if err := Initialize(tempDir, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	Scan("should not be written")

	if _, err := os.Stat(filepath.Join(tempDir, ".testgen", "logs")); !os.IsNotExist(err) {
		t.Errorf("expected no logs directory in production mode, stat err=%v", err)
	}
	if IsDebugMode() {
		t.Error("expected debug mode to be disabled")
	}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	if err := Initialize(tempDir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	Scan("scan message")
	Extract("extract message")
	Generate("generate message")
	Store("store message")
	Watch("watch message")
	GenerateDebug("debug message %d", 42)

	checks := map[Category]string{
		CategoryScan:     "scan message",
		CategoryExtract:  "extract message",
		CategoryGenerate: "debug message 42",
		CategoryStore:    "store message",
		CategoryWatch:    "watch message",
	}
	for cat, want := range checks {
		if got := readLog(t, tempDir, cat); !strings.Contains(got, want) {
			t.Errorf("category %s: expected %q in log, got %q", cat, want, got)
		}
	}
}

func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()
	opts := Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"scan": false},
	}
	if err := Initialize(tempDir, opts); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	if IsCategoryEnabled(CategoryScan) {
		t.Error("scan category should be disabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("unlisted categories should default to enabled")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	tempDir := t.TempDir()
	if err := Initialize(tempDir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	Get(CategoryStore).Info("info hidden")
	Get(CategoryStore).Warn("warn shown")

	got := readLog(t, tempDir, CategoryStore)
	if strings.Contains(got, "info hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(got, "[WARN] warn shown") {
		t.Errorf("expected warn line, got %q", got)
	}
}

func TestJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	if err := Initialize(tempDir, Options{DebugMode: true, Level: "info", JSONFormat: true}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(CloseAll)

	Get(CategoryExtract).StructuredLog("info", "extracted", map[string]interface{}{"type": "Foo"})

	lines := strings.Split(strings.TrimSpace(readLog(t, tempDir, CategoryExtract)), "\n")
	last := lines[len(lines)-1]
	idx := strings.Index(last, "{")
	if idx < 0 {
		t.Fatalf("expected JSON payload, got %q", last)
	}
	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(last[idx:]), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if entry.Category != "extract" || entry.Message != "extracted" || entry.Fields["type"] != "Foo" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}
