package ux

import (
	"fmt"
	"path/filepath"
	"strings"

	"testgen/internal/pipeline"
	"testgen/internal/store"

	"github.com/charmbracelet/glamour"
)

// PlanMarkdown renders a dry-run report as a markdown table.
func PlanMarkdown(r *pipeline.Report) string {
	var sb strings.Builder

	sb.WriteString("# Generation plan\n\n")
	fmt.Fprintf(&sb, "Source root `%s`, test root `%s`.\n\n", r.SourceRoot, r.TestRoot)

	if len(r.Outcomes) == 0 {
		sb.WriteString("_No eligible source files._\n")
		return sb.String()
	}

	sb.WriteString("| Source | Template | Destination | State |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, o := range r.Outcomes {
		template, dest := "-", "-"
		if o.Destination != "" {
			template = o.Template.String()
			dest = relTo(r.TestRoot, o.Destination)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
			cell(filepath.ToSlash(o.Rel)), template, cell(filepath.ToSlash(dest)), o.State)
	}

	fmt.Fprintf(&sb, "\n**%d planned**, %d skipped, %d failed.\n", r.Planned(), r.Skipped(), r.Failed())

	var collided []string
	for _, o := range r.Outcomes {
		if len(o.Collisions) > 0 {
			collided = append(collided, fmt.Sprintf("- `%s`: %s", filepath.ToSlash(o.Rel), strings.Join(o.Collisions, ", ")))
		}
	}
	if len(collided) > 0 {
		sb.WriteString("\n## Colliding operations\n\n")
		sb.WriteString(strings.Join(collided, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// HistoryMarkdown renders ledger runs as a markdown table.
func HistoryMarkdown(runs []store.RunRecord) string {
	var sb strings.Builder
	sb.WriteString("# Generation history\n\n")
	if len(runs) == 0 {
		sb.WriteString("_No recorded runs._\n")
		return sb.String()
	}

	sb.WriteString("| Run | Started | Engine | Generated | Skipped | Failed | Status |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %d | %d | %s |\n",
			id, r.StartedAt.Format("2006-01-02 15:04:05"), r.Engine, r.Generated, r.Skipped, r.Failed, r.Status)
	}
	return sb.String()
}

// RenderMarkdown renders markdown for the terminal with glamour.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
