package main

import (
	"errors"
	"fmt"
	"os"

	"testgen/internal/pipeline"
	"testgen/internal/types"
	"testgen/internal/ux"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// generateCmd runs generation over the source root
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate scaffold tests for every eligible source file",
	Long: `Walks the source root in lexical order and writes one scaffold test per
public type, choosing the template by role:

  controller  @Controller, @RestController
  service     @Service
  repository  @Repository
  default     anything else (service layout)

Existing test files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
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

	report, err := p.Run(ctx)
	if errors.Is(err, types.ErrSourceRootMissing) {
		console.SourceRootMissing(e.path(e.cfg.SourceRoot))
		console.Summary(report)
		return nil
	}
	logRun(report, err)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return nil
}

func logRun(report *pipeline.Report, err error) {
	if report == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.Int("generated", report.Generated()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration),
	}
	if err != nil {
		logger.Error("run finished with errors", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("run finished", fields...)
}
