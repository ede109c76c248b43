package main

import (
	"errors"
	"fmt"

	"testgen/internal/pipeline"
	"testgen/internal/types"
	"testgen/internal/ux"

	"github.com/spf13/cobra"
)

var (
	planRaw   bool
	planWidth int
)

// planCmd is a dry run
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which tests would be generated without writing anything",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planRaw, "raw", false, "Print raw markdown instead of rendering it")
	planCmd.Flags().IntVar(&planWidth, "width", 100, "Word wrap width for rendered output")
}

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, cleanup, err := e.pipeline(pipeline.NopReporter{})
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.Plan(ctx)
	if errors.Is(err, types.ErrSourceRootMissing) {
		fmt.Printf("Source directory not found: %s\n", e.path(e.cfg.SourceRoot))
		return nil
	}
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	md := ux.PlanMarkdown(report)
	if planRaw {
		fmt.Print(md)
		return nil
	}
	out, err := ux.RenderMarkdown(md, planWidth)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
