package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"testgen/internal/types"
	"testgen/internal/ux"
	"testgen/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd regenerates as sources appear
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate tests now, then again whenever source files are added or changed",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	console := ux.NewConsole(os.Stdout, verbose)
	p, cleanup, err := e.pipeline(console)
	if err != nil {
		return err
	}
	defer cleanup()

	sourceRoot := e.path(e.cfg.SourceRoot)
	report, err := p.Run(ctx)
	if errors.Is(err, types.ErrSourceRootMissing) {
		console.SourceRootMissing(sourceRoot)
		return nil
	}
	logRun(report, err)
	if err != nil {
		// Keep watching; a later change may fix the failure.
		logger.Warn("initial run failed", zap.Error(err))
	}

	scanner := e.scanner()
	handler := func(ctx context.Context, paths []string) {
		report, err := p.RunFiles(ctx, paths)
		logRun(report, err)
	}

	w, err := watch.New(sourceRoot, scanner.Eligible, handler,
		watch.WithDebounce(e.cfg.GetWatchDebounce()),
		watch.WithIgnore(scanner.IgnoredDir))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", sourceRoot)
	<-ctx.Done()

	stats := w.Stats()
	logger.Info("watcher stopped",
		zap.Int("batches", stats.Batches),
		zap.Int("files_created", stats.FilesCreated),
		zap.Int("files_modified", stats.FilesModified))
	return nil
}
