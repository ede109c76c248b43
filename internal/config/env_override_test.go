package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("roots", func(t *testing.T) {
		t.Setenv("TESTGEN_SOURCE_ROOT", "app/main")
		t.Setenv("TESTGEN_TEST_ROOT", "app/test")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "app/main", cfg.SourceRoot)
		assert.Equal(t, "app/test", cfg.TestRoot)
	})

	t.Run("engine is lowercased", func(t *testing.T) {
		t.Setenv("TESTGEN_ENGINE", "TreeSitter")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "treesitter", cfg.Engine)
	})

	t.Run("hyphenated engine spelling", func(t *testing.T) {
		t.Setenv("TESTGEN_ENGINE", "tree-sitter")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "treesitter", cfg.Engine)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid workers ignored", func(t *testing.T) {
		t.Setenv("TESTGEN_WORKERS", "-3")

		cfg := &Config{Workers: 2}
		cfg.applyEnvOverrides()

		assert.Equal(t, 2, cfg.Workers)
	})

	t.Run("workers", func(t *testing.T) {
		t.Setenv("TESTGEN_WORKERS", "6")

		cfg := &Config{Workers: 2}
		cfg.applyEnvOverrides()

		assert.Equal(t, 6, cfg.Workers)
	})

	t.Run("ledger and debug toggles", func(t *testing.T) {
		t.Setenv("TESTGEN_LEDGER", "true")
		t.Setenv("TESTGEN_DEBUG", "1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Ledger.Enabled)
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("unparseable toggles ignored", func(t *testing.T) {
		t.Setenv("TESTGEN_LEDGER", "maybe")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.False(t, cfg.Ledger.Enabled)
	})
}
