package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"testgen/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}

// setupWorkspace points the globals at a fresh workspace holding the given
// sources under src/main/java.
func setupWorkspace(t *testing.T, sources map[string]string) string {
	t.Helper()
	logger = zap.NewNop()
	workspace = t.TempDir()
	configPath = ""
	verbose = false

	for rel, content := range sources {
		p := filepath.Join(workspace, "src", "main", "java", filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return workspace
}

var menuSources = map[string]string{
	"com/x/web/MenuController.java": `package com.x.web;

@RestController
public class MenuController {
    public ResponseEntity<List<Drink>> list() { return null; }
}
`,
	"com/x/FooService.java": `package com.x;

@Service
public class FooService {
    public List<String> bar() { return null; }
}
`,
	"com/x/MenuApplication.java": `package com.x;

@SpringBootApplication
public class MenuApplication {
    public static void main(String[] args) {}
}
`,
}

func TestRunGenerate(t *testing.T) {
	ws := setupWorkspace(t, menuSources)

	output := captureOutput(t, func() {
		if err := runGenerate(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runGenerate returned error: %v", err)
		}
	})

	for _, want := range []string{
		"Scanning for source files",
		"generated controller test for MenuController",
		"generated service test for FooService",
		"Generated 2 test files!",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}

	for _, rel := range []string{
		"com/x/web/MenuControllerTest.java",
		"com/x/FooServiceTest.java",
	} {
		if _, err := os.Stat(filepath.Join(ws, "src", "test", "java", filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s to be generated: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(ws, "src", "test", "java", "com", "x", "MenuApplicationTest.java")); err == nil {
		t.Error("application class must not get a test")
	}

	// Second run writes nothing.
	output = captureOutput(t, func() {
		if err := runGenerate(&cobra.Command{}, nil); err != nil {
			t.Fatalf("second runGenerate returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Generated 0 test files!") {
		t.Fatalf("expected idempotent second run, got: %s", output)
	}
	if !strings.Contains(output, "test already exists") {
		t.Fatalf("expected existing-test notice, got: %s", output)
	}
}

func TestRunGenerateMissingSourceRoot(t *testing.T) {
	ws := setupWorkspace(t, nil)

	output := captureOutput(t, func() {
		if err := runGenerate(&cobra.Command{}, nil); err != nil {
			t.Fatalf("missing source root must not fail: %v", err)
		}
	})

	if !strings.Contains(output, "Source directory not found") {
		t.Fatalf("expected missing source notice, got: %s", output)
	}
	if !strings.Contains(output, "Generated 0 test files!") {
		t.Fatalf("expected zero summary, got: %s", output)
	}
	if _, err := os.Stat(filepath.Join(ws, "src", "test", "java")); err == nil {
		t.Fatal("test root must not be created when the source root is missing")
	}
}

func TestRunPlanRaw(t *testing.T) {
	ws := setupWorkspace(t, menuSources)
	planRaw = true
	t.Cleanup(func() { planRaw = false })

	output := captureOutput(t, func() {
		if err := runPlan(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runPlan returned error: %v", err)
		}
	})

	if !strings.Contains(output, "| Source | Template | Destination | State |") {
		t.Fatalf("expected plan table, got: %s", output)
	}
	if !strings.Contains(output, "**2 planned**") {
		t.Fatalf("expected two planned tests, got: %s", output)
	}
	if _, err := os.Stat(filepath.Join(ws, "src", "test", "java")); err == nil {
		t.Fatal("plan must not write anything")
	}
}

func TestRunInspect(t *testing.T) {
	ws := setupWorkspace(t, menuSources)
	file := filepath.Join(ws, "src", "main", "java", "com", "x", "web", "MenuController.java")

	output := captureOutput(t, func() {
		if err := runInspect(&cobra.Command{}, []string{file}); err != nil {
			t.Fatalf("runInspect returned error: %v", err)
		}
	})

	var got struct {
		Engine      string `yaml:"engine"`
		Generatable bool   `yaml:"generatable"`
		Descriptor  struct {
			Namespace  string   `yaml:"namespace"`
			TypeName   string   `yaml:"type_name"`
			Operations []string `yaml:"operations"`
			Roles      []string `yaml:"roles"`
		} `yaml:"descriptor"`
		Template    string   `yaml:"template"`
		Destination string   `yaml:"destination"`
		Stubs       []string `yaml:"stubs"`
	}
	if err := yaml.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("inspect output is not YAML: %v\n%s", err, output)
	}

	if got.Engine != "regex" || !got.Generatable {
		t.Fatalf("unexpected header: %+v", got)
	}
	if got.Descriptor.Namespace != "com.x.web" || got.Descriptor.TypeName != "MenuController" {
		t.Fatalf("unexpected descriptor: %+v", got.Descriptor)
	}
	if got.Template != "controller" {
		t.Fatalf("expected controller template, got %q", got.Template)
	}
	wantDest := filepath.Join(ws, "src", "test", "java", "com", "x", "web", "MenuControllerTest.java")
	if got.Destination != wantDest {
		t.Fatalf("destination = %q, want %q", got.Destination, wantDest)
	}
	if len(got.Stubs) != 1 || got.Stubs[0] != "testList" {
		t.Fatalf("unexpected stubs: %v", got.Stubs)
	}
}

func TestRunInspectOutsideSourceRoot(t *testing.T) {
	ws := setupWorkspace(t, nil)
	file := filepath.Join(ws, "Loose.java")
	if err := os.WriteFile(file, []byte("public class Loose {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output := captureOutput(t, func() {
		if err := runInspect(&cobra.Command{}, []string{file}); err != nil {
			t.Fatalf("runInspect returned error: %v", err)
		}
	})

	if strings.Contains(output, "destination:") {
		t.Fatalf("files outside the source root have no destination, got: %s", output)
	}
	if !strings.Contains(output, "template: default") {
		t.Fatalf("expected default template, got: %s", output)
	}
}

func TestRunConfigInit(t *testing.T) {
	ws := setupWorkspace(t, nil)

	output := captureOutput(t, func() {
		if err := runConfigInit(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runConfigInit returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Wrote default config") {
		t.Fatalf("unexpected output: %s", output)
	}

	cfg, err := config.Load(filepath.Join(ws, config.DefaultPath))
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Engine != "regex" || !cfg.FailFast {
		t.Fatalf("unexpected defaults: engine=%s fail_fast=%v", cfg.Engine, cfg.FailFast)
	}

	output = captureOutput(t, func() {
		if err := runConfigInit(&cobra.Command{}, nil); err != nil {
			t.Fatalf("second runConfigInit returned error: %v", err)
		}
	})
	if !strings.Contains(output, "already exists") {
		t.Fatalf("expected refusal to overwrite, got: %s", output)
	}
}

func TestRunHistory(t *testing.T) {
	setupWorkspace(t, menuSources)

	output := captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})
	if !strings.Contains(output, "No ledger found") {
		t.Fatalf("expected missing ledger notice, got: %s", output)
	}

	t.Setenv("TESTGEN_LEDGER", "true")
	captureOutput(t, func() {
		if err := runGenerate(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runGenerate returned error: %v", err)
		}
	})

	historyRaw = true
	t.Cleanup(func() { historyRaw = false })
	output = captureOutput(t, func() {
		if err := runHistory(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runHistory returned error: %v", err)
		}
	})
	if !strings.Contains(output, "completed") {
		t.Fatalf("expected a completed run, got: %s", output)
	}
}
