package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"testgen/internal/extract"
	"testgen/internal/generate"
	"testgen/internal/pipeline"
	"testgen/internal/types"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// inspectCmd shows what the extractor sees in one file
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the extracted descriptor and template choice for a source file",
	Long: `Runs the configured extraction engine over one file and prints the result
as YAML.

Example:
  testgen inspect src/main/java/com/x/web/MenuController.java
  TESTGEN_ENGINE=treesitter testgen inspect src/main/java/com/x/Foo.java`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

// inspection is the YAML document printed by inspect.
type inspection struct {
	File        string                  `yaml:"file"`
	Engine      string                  `yaml:"engine"`
	Generatable bool                    `yaml:"generatable"`
	Descriptor  *types.SourceDescriptor `yaml:"descriptor"`
	Template    *types.TemplateChoice   `yaml:"template,omitempty"`
	Destination string                  `yaml:"destination,omitempty"`
	Stubs       []string                `yaml:"stubs,omitempty"`
	Collisions  []string                `yaml:"collisions,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	file := args[0]
	src, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	factory, err := extract.NewFactory(e.cfg.Engine)
	if err != nil {
		return err
	}
	d, err := factory.Extract(context.Background(), file, src)
	if err != nil {
		return err
	}

	out := inspection{
		File:        file,
		Engine:      e.cfg.Engine,
		Generatable: d.Generatable(),
		Descriptor:  d,
	}

	if d.Generatable() {
		choice := generate.Choose(d.Roles)
		out.Template = &choice

		gen, err := e.generator()
		if err != nil {
			return err
		}
		if choice != types.RepositoryTemplate {
			stubs, collisions := gen.Stubs(d.Operations)
			for _, s := range stubs {
				out.Stubs = append(out.Stubs, s.Method)
			}
			out.Collisions = collisions
		}

		if rel, ok := relToSourceRoot(e, file); ok {
			out.Destination = pipeline.Destination(e.path(e.cfg.TestRoot), rel, d.TypeName)
		}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// relToSourceRoot returns file relative to the configured source root.
func relToSourceRoot(e *env, file string) (string, bool) {
	root, err := filepath.Abs(e.path(e.cfg.SourceRoot))
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
