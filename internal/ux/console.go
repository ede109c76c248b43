// Package ux renders run progress and summaries for the terminal.
package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"testgen/internal/pipeline"
	"testgen/internal/types"
)

// Console prints pipeline events as styled lines. It implements
// pipeline.Reporter.
type Console struct {
	out     io.Writer
	styles  Styles
	verbose bool
}

// NewConsole creates a console reporter writing to out. Verbose adds the
// per-file analysis lines.
func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{out: out, styles: StylesFor(out), verbose: verbose}
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// Scanning implements pipeline.Reporter.
func (c *Console) Scanning(root string) {
	c.printf("%s\n", c.styles.Info.Render("Scanning for source files in "+root+"..."))
}

// Analyzing implements pipeline.Reporter.
func (c *Console) Analyzing(o pipeline.Outcome) {
	if !c.verbose {
		return
	}
	c.printf("%s\n", c.styles.Muted.Render("  analyzing "+o.Source))
}

// Generated implements pipeline.Reporter.
func (c *Console) Generated(o pipeline.Outcome) {
	c.printf("  %s %s %s\n",
		c.styles.Success.Render("+"),
		c.styles.Body.Render(fmt.Sprintf("generated %s for %s", TemplateLabel(o.Template), typeName(o))),
		c.styles.Muted.Render(o.Destination))
	if len(o.Collisions) > 0 {
		c.printf("    %s\n", c.styles.Warning.Render("skipped colliding operations: "+strings.Join(o.Collisions, ", ")))
	}
}

// Skipped implements pipeline.Reporter.
func (c *Console) Skipped(o pipeline.Outcome) {
	c.printf("  %s %s\n", c.styles.Warning.Render("="), c.styles.Muted.Render("test already exists: "+o.Destination))
}

// Failed implements pipeline.Reporter.
func (c *Console) Failed(o pipeline.Outcome) {
	c.printf("  %s %s\n", c.styles.Error.Render("x"), c.styles.Body.Render(fmt.Sprintf("%s: %v", o.Source, o.Err)))
}

// Finished implements pipeline.Reporter.
func (c *Console) Finished(r *pipeline.Report) {
	if r.DryRun {
		return
	}
	c.Summary(r)
}

// Summary prints the final count line.
func (c *Console) Summary(r *pipeline.Report) {
	c.printf("\n%s\n", c.styles.Success.Render(fmt.Sprintf("Generated %d test files!", r.Generated())))
	if c.verbose || r.Failed() > 0 {
		c.printf("%s\n", c.styles.Muted.Render(fmt.Sprintf("%d skipped, %d failed in %v (run %s)",
			r.Skipped(), r.Failed(), r.Duration.Round(time.Millisecond), r.RunID)))
	}
}

// SourceRootMissing prints the message shown when there is nothing to scan.
func (c *Console) SourceRootMissing(root string) {
	c.printf("%s\n", c.styles.Error.Render("Source directory not found: "+root))
}

// TemplateLabel names a template choice for console output.
func TemplateLabel(t types.TemplateChoice) string {
	switch t {
	case types.ControllerTemplate:
		return "controller test"
	case types.ServiceTemplate:
		return "service test"
	case types.RepositoryTemplate:
		return "repository test"
	default:
		return "basic test"
	}
}

func typeName(o pipeline.Outcome) string {
	if o.Descriptor != nil && o.Descriptor.TypeName != "" {
		return o.Descriptor.TypeName
	}
	return o.Rel
}
