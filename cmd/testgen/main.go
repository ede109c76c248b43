package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"testgen/internal/config"
	"testgen/internal/extract"
	"testgen/internal/generate"
	"testgen/internal/logging"
	"testgen/internal/pipeline"
	"testgen/internal/store"
	"testgen/internal/world"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "testgen",
	Short: "testgen - scaffold JUnit tests for Spring sources",
	Long: `testgen scans src/main/java, classifies every public type by its
framework markers (@RestController, @Service, @Repository, ...) and writes a
scaffold test to the mirrored path under src/test/java.

Existing tests are never overwritten, so running it again is safe.

Run without arguments to generate tests for the current directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runGenerate,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/"+config.DefaultPath+")")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is the resolved workspace and configuration for one command.
type env struct {
	ws  string
	cfg *config.Config
}

func (e *env) path(p string) string {
	return config.Resolve(e.ws, p)
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	return "."
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return config.Resolve(ws, config.DefaultPath)
}

// loadEnv loads .env, the config file and initializes file logging.
func loadEnv() (*env, error) {
	ws := resolveWorkspace()

	if err := godotenv.Load(filepath.Join(ws, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", zap.Error(err))
	}

	cfgPath := resolveConfigPath(ws)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
		logger.Warn("failed to initialize file logging", zap.Error(err))
	}
	logging.Boot("config loaded from %s (engine=%s, workers=%d, fail_fast=%v)", cfgPath, cfg.Engine, cfg.Workers, cfg.FailFast)
	logger.Debug("configuration loaded",
		zap.String("workspace", ws),
		zap.String("config", cfgPath),
		zap.String("source_root", cfg.SourceRoot),
		zap.String("test_root", cfg.TestRoot),
		zap.String("engine", cfg.Engine))

	return &env{ws: ws, cfg: cfg}, nil
}

func (e *env) scanner() *world.Scanner {
	return world.NewScanner(world.ScannerConfig{
		Extensions:      e.cfg.Extensions,
		ExcludePatterns: e.cfg.ExcludePatterns,
		IgnorePatterns:  e.cfg.IgnorePatterns,
	})
}

func (e *env) generator() (*generate.Generator, error) {
	return generate.New(generate.Options{
		ExcludedOperations: e.cfg.Templates.ExcludedOperations,
		ControllerMocks:    e.cfg.Templates.ControllerMocks,
		ServiceMocks:       e.cfg.Templates.ServiceMocks,
	})
}

// pipeline wires a Pipeline from the configuration. The returned cleanup
// closes the ledger when one is enabled.
func (e *env) pipeline(reporter pipeline.Reporter) (*pipeline.Pipeline, func(), error) {
	factory, err := extract.NewFactory(e.cfg.Engine)
	if err != nil {
		return nil, nil, err
	}
	gen, err := e.generator()
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{pipeline.WithReporter(reporter)}
	cleanup := func() {}
	if e.cfg.Ledger.Enabled {
		ledger, err := store.OpenLedger(e.path(e.cfg.Ledger.Path))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithLedger(ledger))
		cleanup = func() {
			if err := ledger.Close(); err != nil {
				logger.Warn("failed to close ledger", zap.Error(err))
			}
		}
	}

	p := pipeline.New(pipeline.Options{
		SourceRoot: e.path(e.cfg.SourceRoot),
		TestRoot:   e.path(e.cfg.TestRoot),
		Engine:     e.cfg.Engine,
		Workers:    e.cfg.Workers,
		FailFast:   e.cfg.FailFast,
	}, e.scanner(), factory, gen, store.NewFSStore(), opts...)
	return p, cleanup, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
