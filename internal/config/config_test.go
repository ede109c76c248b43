package config

import (
	"os"
	"path/filepath"
	"testing"

	"testgen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "testgen" {
		t.Errorf("expected Name=testgen, got %s", cfg.Name)
	}
	if cfg.SourceRoot != filepath.Join("src", "main", "java") {
		t.Errorf("unexpected source root %s", cfg.SourceRoot)
	}
	if cfg.TestRoot != filepath.Join("src", "test", "java") {
		t.Errorf("unexpected test root %s", cfg.TestRoot)
	}
	if cfg.Engine != "regex" {
		t.Errorf("expected Engine=regex, got %s", cfg.Engine)
	}
	if !cfg.FailFast {
		t.Error("expected fail_fast to default to true")
	}
	if len(cfg.Templates.ControllerMocks) != 2 || len(cfg.Templates.ServiceMocks) != 2 {
		t.Errorf("expected two controller and two service mocks, got %d/%d",
			len(cfg.Templates.ControllerMocks), len(cfg.Templates.ServiceMocks))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("TESTGEN_ENGINE", "")
	t.Setenv("TESTGEN_SOURCE_ROOT", "")

	path := filepath.Join(t.TempDir(), ".testgen", "config.yaml")

	cfg := DefaultConfig()
	cfg.Engine = "treesitter"
	cfg.SourceRoot = "app/src"
	cfg.Templates.ServiceMocks = []types.Collaborator{{Type: "com.acme.Repo", Name: "repo"}}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "treesitter", loaded.Engine)
	assert.Equal(t, "app/src", loaded.SourceRoot)
	assert.Equal(t, []types.Collaborator{{Type: "com.acme.Repo", Name: "repo"}}, loaded.Templates.ServiceMocks)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("TESTGEN_ENGINE", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SourceRoot, cfg.SourceRoot)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errIs  error
	}{
		{name: "unknown engine", mutate: func(c *Config) { c.Engine = "antlr" }, errIs: types.ErrUnknownEngine},
		{name: "empty source root", mutate: func(c *Config) { c.SourceRoot = " " }},
		{name: "empty test root", mutate: func(c *Config) { c.TestRoot = "" }},
		{name: "no extensions", mutate: func(c *Config) { c.Extensions = nil }},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "nameless mock", mutate: func(c *Config) {
			c.Templates.ServiceMocks = []types.Collaborator{{Type: "com.acme.Repo"}}
		}},
		{name: "no controller mocks", mutate: func(c *Config) { c.Templates.ControllerMocks = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestNormalizeEngine(t *testing.T) {
	for in, want := range map[string]string{
		"regex":       "regex",
		" Regex ":     "regex",
		"treesitter":  "treesitter",
		"tree-sitter": "treesitter",
		"Tree_Sitter": "treesitter",
		"antlr":       "antlr",
	} {
		assert.Equal(t, want, NormalizeEngine(in), in)
	}

	cfg := DefaultConfig()
	cfg.Engine = "tree-sitter"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NormalizesEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: Tree-Sitter\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "treesitter", cfg.Engine)
}

func TestGetWatchDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Debounce = "1s"
	assert.Equal(t, "1s", cfg.GetWatchDebounce().String())

	cfg.Watch.Debounce = "soon"
	assert.Equal(t, "300ms", cfg.GetWatchDebounce().String())
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/ws", "src"), Resolve("/ws", "src"))
	assert.Equal(t, "/abs/src", Resolve("/ws", "/abs/src"))
	assert.Equal(t, "src", Resolve("", "src"))
}

func TestLoggingConfig_Options(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", DebugMode: true, Categories: map[string]bool{"scan": false}}
	opts := lc.Options()
	assert.True(t, opts.DebugMode)
	assert.True(t, opts.JSONFormat)
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, map[string]bool{"scan": false}, opts.Categories)
}
