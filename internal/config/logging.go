package config

import "testgen/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, text
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"` // Master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// Options converts the config into logging package options.
func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Categories: c.Categories,
	}
}
