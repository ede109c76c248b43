package world

import (
	"path"
	"path/filepath"
	"strings"
)

// ScannerConfig controls which files under the source root are eligible.
type ScannerConfig struct {
	// Extensions lists eligible file extensions, including the leading dot.
	Extensions []string
	// ExcludePatterns are globs matched against a file's base name
	// (e.g., "*Application.java" for framework entry points).
	ExcludePatterns []string
	// IgnorePatterns skips matching paths/dirs (relative to the source root).
	// Supports simple dir names (e.g., "target") and glob patterns (e.g., "generated/*").
	IgnorePatterns []string
}

// DefaultScannerConfig returns the defaults for a Maven-style Java layout.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Extensions:      []string{".java"},
		ExcludePatterns: []string{"*Application.java"},
		IgnorePatterns: []string{
			".git",
			"target",
			"build",
			"out",
			".idea",
		},
	}
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, "\\")
	return filepath.ToSlash(p)
}

// isIgnoredRel reports whether a relative path should be ignored.
func isIgnoredRel(rel, name string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, raw := range patterns {
		p := normalizePattern(raw)
		if p == "" {
			continue
		}
		// Glob pattern
		if strings.ContainsAny(p, "*?[]") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
			// Handle directory globs like "generated/*"
			if strings.HasSuffix(p, "/*") {
				prefix := strings.TrimSuffix(p, "/*")
				if strings.HasPrefix(rel, prefix+"/") {
					return true
				}
			}
			continue
		}
		// Simple dir/file name
		if name == p {
			return true
		}
		// Prefix match for nested paths
		if strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// isExcludedName reports whether a file base name matches an exclusion glob.
func isExcludedName(name string, patterns []string) bool {
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// hasExtension reports whether name ends with one of exts (case-insensitive).
func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
