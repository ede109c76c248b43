package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"testgen/internal/generate"
	"testgen/internal/types"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the workspace-relative location of the config file.
const DefaultPath = ".testgen/config.yaml"

// Config holds all testgen configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Source layout
	SourceRoot string   `yaml:"source_root"`
	TestRoot   string   `yaml:"test_root"`
	Extensions []string `yaml:"extensions"`

	// Scanner filters
	ExcludePatterns []string `yaml:"exclude_patterns"` // matched against file base names
	IgnorePatterns  []string `yaml:"ignore_patterns"`  // matched against relative directories

	// Extraction
	Engine  string `yaml:"engine"` // regex, treesitter
	Workers int    `yaml:"workers"`

	// Driver behaviour
	FailFast bool `yaml:"fail_fast"`

	Templates TemplatesConfig `yaml:"templates"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TemplatesConfig configures the generated test bodies.
type TemplatesConfig struct {
	// Operations never stubbed (universally inherited members).
	ExcludedOperations []string `yaml:"excluded_operations"`

	// Mocked collaborators wired into controller tests (@MockBean).
	ControllerMocks []types.Collaborator `yaml:"controller_mocks"`

	// Mocked collaborators wired into service/default tests (@Mock).
	ServiceMocks []types.Collaborator `yaml:"service_mocks"`
}

// LedgerConfig configures the SQLite generation ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		Name:    "testgen",
		Version: "1.0.0",

		SourceRoot: filepath.Join("src", "main", "java"),
		TestRoot:   filepath.Join("src", "test", "java"),
		Extensions: []string{".java"},

		ExcludePatterns: []string{"*Application.java"},
		IgnorePatterns:  []string{".git", "target", "build", "out", ".idea"},

		Engine:   "regex",
		Workers:  workers,
		FailFast: true,

		Templates: TemplatesConfig{
			ExcludedOperations: append([]string(nil), generate.DefaultExcludedOperations...),
			ControllerMocks: []types.Collaborator{
				{
					Type:    "com.starbucks.menuaichat.service.MenuService",
					Name:    "menuService",
					Call:    "getAllDrinks()",
					Returns: "Collections.emptyList()",
				},
				{
					Type: "com.starbucks.menuaichat.service.StarbucksAiChatService",
					Name: "aiChatService",
				},
			},
			ServiceMocks: []types.Collaborator{
				{
					Type:    "com.starbucks.menuaichat.repository.DrinkItemRepository",
					Name:    "drinkItemRepository",
					Call:    "findAll()",
					Returns: "Collections.emptyList()",
				},
				{
					Type: "com.starbucks.menuaichat.service.SpringAiVectorService",
					Name: "springAiVectorService",
				},
			},
		},

		Ledger: LedgerConfig{
			Enabled: false,
			Path:    filepath.Join(".testgen", "ledger.db"),
		},

		Watch: WatchConfig{
			Debounce: "300ms",
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.Engine = NormalizeEngine(cfg.Engine)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TESTGEN_SOURCE_ROOT"); v != "" {
		c.SourceRoot = v
	}
	if v := os.Getenv("TESTGEN_TEST_ROOT"); v != "" {
		c.TestRoot = v
	}
	if v := os.Getenv("TESTGEN_ENGINE"); v != "" {
		c.Engine = NormalizeEngine(v)
	}
	if v := os.Getenv("TESTGEN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v := os.Getenv("TESTGEN_LEDGER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ledger.Enabled = b
		}
	}
	if v := os.Getenv("TESTGEN_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// ValidEngines lists the supported extraction engines.
var ValidEngines = []string{"regex", "treesitter"}

// NormalizeEngine maps accepted engine spellings onto ValidEngines.
// "tree-sitter" and "tree_sitter" become "treesitter".
func NormalizeEngine(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "tree-sitter", "tree_sitter":
		return "treesitter"
	}
	return name
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceRoot) == "" {
		return fmt.Errorf("source_root must not be empty")
	}
	if strings.TrimSpace(c.TestRoot) == "" {
		return fmt.Errorf("test_root must not be empty")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one source extension is required")
	}

	validEngine := false
	for _, e := range ValidEngines {
		if NormalizeEngine(c.Engine) == e {
			validEngine = true
			break
		}
	}
	if !validEngine {
		return fmt.Errorf("invalid engine: %s (valid: %v): %w", c.Engine, ValidEngines, types.ErrUnknownEngine)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	for _, m := range append(append([]types.Collaborator{}, c.Templates.ControllerMocks...), c.Templates.ServiceMocks...) {
		if m.Type == "" || m.Name == "" {
			return fmt.Errorf("collaborator requires both type and name: %+v", m)
		}
	}
	if len(c.Templates.ControllerMocks) == 0 {
		return fmt.Errorf("templates.controller_mocks must declare at least one collaborator")
	}

	return nil
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// Resolve returns p joined to workspace unless it is already absolute.
func Resolve(workspace, p string) string {
	if filepath.IsAbs(p) || workspace == "" {
		return p
	}
	return filepath.Join(workspace, p)
}
