// Package world walks the source tree and yields the files eligible for
// scaffold generation.
package world

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"testgen/internal/logging"
	"testgen/internal/types"
)

// SourceFile is an eligible file found under the source root.
type SourceFile struct {
	Path string // root joined with Rel
	Rel  string // OS-native path relative to the source root
}

// Scanner handles source tree indexing.
type Scanner struct {
	config ScannerConfig
}

// NewScanner creates a scanner with the given configuration.
func NewScanner(cfg ScannerConfig) *Scanner {
	return &Scanner{config: cfg}
}

// Config returns the scanner configuration.
func (s *Scanner) Config() ScannerConfig {
	return s.config
}

// Scan walks root in lexical order and returns the eligible files.
// A missing root yields types.ErrSourceRootMissing.
func (s *Scanner) Scan(ctx context.Context, root string) ([]SourceFile, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrSourceRootMissing, root)
		}
		return nil, fmt.Errorf("stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", types.ErrSourceRootMissing, root)
	}

	var files []SourceFile
	dirs, excluded := 0, 0

	// WalkDir visits entries in lexical order, which fixes generation order.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if path != root && isIgnoredRel(rel, d.Name(), s.config.IgnorePatterns) {
				logging.ScanDebug("skipping ignored directory: %s", rel)
				return filepath.SkipDir
			}
			dirs++
			return nil
		}

		if !s.Eligible(rel) {
			if hasExtension(d.Name(), s.config.Extensions) {
				excluded++
			}
			return nil
		}

		files = append(files, SourceFile{Path: path, Rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	logging.Scan("scanned %s: %d eligible files, %d excluded, %d directories in %v",
		root, len(files), excluded, dirs, time.Since(start))
	return files, nil
}

// Eligible reports whether a file path relative to the source root passes the
// extension, exclusion and ignore filters.
func (s *Scanner) Eligible(rel string) bool {
	name := filepath.Base(rel)
	if !hasExtension(name, s.config.Extensions) {
		return false
	}
	if isExcludedName(name, s.config.ExcludePatterns) {
		return false
	}
	if isIgnoredRel(rel, name, s.config.IgnorePatterns) {
		return false
	}
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if isIgnoredRel(dir, filepath.Base(dir), s.config.IgnorePatterns) {
			return false
		}
	}
	return true
}

// IgnoredDir reports whether a directory relative to the source root is
// skipped by the ignore patterns.
func (s *Scanner) IgnoredDir(rel string) bool {
	return isIgnoredRel(rel, filepath.Base(rel), s.config.IgnorePatterns)
}
