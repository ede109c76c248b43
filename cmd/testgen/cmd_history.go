package main

import (
	"context"
	"fmt"
	"os"

	"testgen/internal/store"
	"testgen/internal/ux"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
	historyRaw   bool
)

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs from the ledger",
	Long: `Reads the SQLite ledger (enable with ledger.enabled in the config or
TESTGEN_LEDGER=true) and lists recent runs, newest first.

Pass --run to list the artifacts written by one run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show artifacts written by this run ID")
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print raw markdown instead of rendering it")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	dbPath := e.path(e.cfg.Ledger.Path)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Printf("No ledger found at %s (set ledger.enabled: true to record runs)\n", dbPath)
		return nil
	}

	ledger, err := store.OpenLedger(dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx := context.Background()
	if historyRun != "" {
		arts, err := ledger.Artifacts(ctx, historyRun)
		if err != nil {
			return err
		}
		if len(arts) == 0 {
			fmt.Printf("No artifacts recorded for run %s\n", historyRun)
			return nil
		}
		for _, a := range arts {
			fmt.Printf("%s  %-10s  %s -> %s\n", a.SHA256[:12], a.Template, a.Source, a.Destination)
		}
		return nil
	}

	runs, err := ledger.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	md := ux.HistoryMarkdown(runs)
	if historyRaw {
		fmt.Print(md)
		return nil
	}
	out, err := ux.RenderMarkdown(md, 0)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
