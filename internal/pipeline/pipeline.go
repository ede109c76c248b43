// Package pipeline drives a generation run: scan the source root, extract a
// descriptor per file, choose a template and write the scaffold test through
// the artifact store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"testgen/internal/extract"
	"testgen/internal/generate"
	"testgen/internal/logging"
	"testgen/internal/store"
	"testgen/internal/types"
	"testgen/internal/world"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Options configures a Pipeline.
type Options struct {
	SourceRoot string
	TestRoot   string
	Engine     string // recorded in the ledger
	Workers    int    // parallel extraction; <= 0 means runtime.NumCPU()
	FailFast   bool   // halt the run on the first failure
}

// Pipeline runs generation over a source tree.
type Pipeline struct {
	opts       Options
	scanner    *world.Scanner
	extractors *extract.Factory
	generator  *generate.Generator
	store      store.ArtifactStore
	ledger     *store.Ledger
	reporter   Reporter
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLedger records runs and written artifacts.
func WithLedger(l *store.Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// New creates a pipeline.
func New(opts Options, scanner *world.Scanner, extractors *extract.Factory, generator *generate.Generator, st store.ArtifactStore, options ...Option) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	p := &Pipeline{
		opts:       opts,
		scanner:    scanner,
		extractors: extractors,
		generator:  generator,
		store:      st,
		reporter:   NopReporter{},
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Destination mirrors a source file's relative directory under testRoot and
// names the file after the declared type:
// testRoot/dir(rel)/TypeName + "Test" + ext(rel).
func Destination(testRoot, rel, typeName string) string {
	return filepath.Join(testRoot, filepath.Dir(rel), typeName+"Test"+filepath.Ext(rel))
}

// Run processes every eligible file under the source root.
// A missing source root returns an empty report and types.ErrSourceRootMissing.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	return p.run(ctx, nil, false)
}

// RunFiles processes only the given paths. Paths outside the source root or
// rejected by the scanner filters are ignored.
func (p *Pipeline) RunFiles(ctx context.Context, paths []string) (*Report, error) {
	if paths == nil {
		paths = []string{}
	}
	return p.run(ctx, paths, false)
}

// Plan computes outcomes without writing anything.
func (p *Pipeline) Plan(ctx context.Context) (*Report, error) {
	return p.run(ctx, nil, true)
}

type extraction struct {
	desc *types.SourceDescriptor
	err  error
}

func (p *Pipeline) run(ctx context.Context, paths []string, dryRun bool) (*Report, error) {
	report := &Report{
		RunID:      uuid.NewString(),
		SourceRoot: p.opts.SourceRoot,
		TestRoot:   p.opts.TestRoot,
		DryRun:     dryRun,
		StartedAt:  time.Now(),
	}

	p.reporter.Scanning(p.opts.SourceRoot)

	var files []world.SourceFile
	var err error
	if paths == nil {
		files, err = p.scanner.Scan(ctx, p.opts.SourceRoot)
	} else {
		files, err = p.selectFiles(paths)
	}
	if err != nil {
		if errors.Is(err, types.ErrSourceRootMissing) {
			logging.Get(logging.CategoryGenerate).Warn("source root missing: %s", p.opts.SourceRoot)
		}
		report.Duration = time.Since(report.StartedAt)
		return report, err
	}

	// Every run claims destinations through its store, so a second source
	// mapping to an already claimed test is skipped in dry runs too.
	var st store.ArtifactStore = p.store
	var overlay *store.Overlay
	if dryRun {
		overlay = store.NewOverlay(p.store)
		st = overlay
	}
	if err := st.EnsureDir(p.opts.TestRoot); err != nil {
		return report, err
	}

	extracted, err := p.extractAll(ctx, files)
	if err != nil {
		return report, err
	}

	p.beginLedger(ctx, report)

	var errs []error
	for i, f := range files {
		o, err := p.process(ctx, report, st, f, extracted[i])
		report.Outcomes = append(report.Outcomes, o)
		if err == nil {
			continue
		}

		logging.Get(logging.CategoryGenerate).Error("%s: %v", f.Rel, err)
		p.reporter.Failed(o)
		if p.opts.FailFast {
			p.finish(ctx, report, store.RunFailed)
			return report, err
		}
		errs = append(errs, err)
	}

	if overlay != nil {
		logging.StoreDebug("dry run staged %d artifacts", len(overlay.Staged()))
	}

	status := store.RunCompleted
	if len(errs) > 0 {
		status = store.RunFailed
	}
	p.finish(ctx, report, status)

	logging.Generate("run %s: %d generated, %d skipped, %d failed, %d planned",
		report.RunID, report.Generated(), report.Skipped(), report.Failed(), report.Planned())
	return report, errors.Join(errs...)
}

// selectFiles maps explicit paths onto the source tree, sorted lexically.
func (p *Pipeline) selectFiles(paths []string) ([]world.SourceFile, error) {
	if info, err := os.Stat(p.opts.SourceRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", types.ErrSourceRootMissing, p.opts.SourceRoot)
	}

	seen := make(map[string]bool, len(paths))
	var files []world.SourceFile
	for _, path := range paths {
		rel, err := filepath.Rel(p.opts.SourceRoot, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if seen[rel] || !p.scanner.Eligible(rel) {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		seen[rel] = true
		files = append(files, world.SourceFile{Path: filepath.Join(p.opts.SourceRoot, rel), Rel: rel})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// extractAll reads and classifies files concurrently. Per-file failures are
// returned in the slice; only cancellation aborts.
func (p *Pipeline) extractAll(ctx context.Context, files []world.SourceFile) ([]extraction, error) {
	results := make([]extraction, len(files))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Workers)

	for i, f := range files {
		i, f := i, f
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(f.Path)
			if err != nil {
				results[i].err = fmt.Errorf("read %s: %w", f.Path, err)
				return nil
			}
			results[i].desc, results[i].err = p.extractors.Extract(egCtx, f.Path, src)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// process advances one file through the state machine. Writes happen here,
// sequentially in traversal order.
func (p *Pipeline) process(ctx context.Context, report *Report, st store.ArtifactStore, f world.SourceFile, ex extraction) (Outcome, error) {
	o := Outcome{Source: f.Path, Rel: f.Rel, State: StateScanned, Descriptor: ex.desc}
	p.reporter.Analyzing(o)

	fail := func(err error) (Outcome, error) {
		o.State = StateFailed
		o.Err = err
		return o, err
	}

	if ex.err != nil {
		return fail(ex.err)
	}

	d := ex.desc
	if !d.Generatable() {
		o.State = StateSkippedNoType
		logging.GenerateDebug("%s: no public type declaration", f.Rel)
		return o, nil
	}

	o.Destination = Destination(p.opts.TestRoot, f.Rel, d.TypeName)
	o.Template = generate.Choose(d.Roles)

	exists, err := st.Exists(o.Destination)
	if err != nil {
		return fail(err)
	}
	if exists {
		o.State = StateSkippedExists
		logging.Generate("test already exists: %s", o.Destination)
		p.reporter.Skipped(o)
		return o, nil
	}

	rendered, err := p.generator.Generate(d, o.Template)
	if err != nil {
		return fail(fmt.Errorf("generate %s: %w", f.Rel, err))
	}
	o.Collisions = rendered.Collisions

	written, err := st.WriteIfAbsent(o.Destination, []byte(rendered.Content))
	if err != nil {
		return fail(fmt.Errorf("write %s: %w", o.Destination, err))
	}
	if !written {
		o.State = StateSkippedExists
		logging.Generate("test already exists: %s", o.Destination)
		p.reporter.Skipped(o)
		return o, nil
	}
	if report.DryRun {
		o.State = StatePlanned
		return o, nil
	}

	o.State = StateWritten
	p.reporter.Generated(o)
	p.recordArtifact(ctx, report, &types.GeneratedArtifact{
		Source:      o.Source,
		Destination: o.Destination,
		Template:    o.Template,
		Content:     rendered.Content,
		Collisions:  rendered.Collisions,
	})
	return o, nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger failures are logged and never fail a run.

func (p *Pipeline) beginLedger(ctx context.Context, report *Report) {
	if p.ledger == nil || report.DryRun {
		return
	}
	err := p.ledger.BeginRun(ctx, store.RunRecord{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		SourceRoot: p.opts.SourceRoot,
		TestRoot:   p.opts.TestRoot,
		Engine:     p.opts.Engine,
	})
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("ledger: %v", err)
	}
}

func (p *Pipeline) recordArtifact(ctx context.Context, report *Report, a *types.GeneratedArtifact) {
	if p.ledger == nil || report.DryRun {
		return
	}
	if err := p.ledger.RecordArtifact(ctx, report.RunID, a); err != nil {
		logging.Get(logging.CategoryStore).Warn("ledger: %v", err)
	}
}

// finish stamps the duration, closes the ledger run and notifies the reporter.
func (p *Pipeline) finish(ctx context.Context, report *Report, status store.RunStatus) {
	report.Duration = time.Since(report.StartedAt)
	p.finishLedger(ctx, report, status)
	p.reporter.Finished(report)
}

func (p *Pipeline) finishLedger(ctx context.Context, report *Report, status store.RunStatus) {
	if p.ledger == nil || report.DryRun {
		return
	}
	totals := store.RunTotals{Generated: report.Generated(), Skipped: report.Skipped(), Failed: report.Failed()}
	if err := p.ledger.FinishRun(ctx, report.RunID, totals, status); err != nil {
		logging.Get(logging.CategoryStore).Warn("ledger: %v", err)
	}
}
