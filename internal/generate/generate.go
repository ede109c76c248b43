// Package generate selects a scaffold template for a descriptor and renders
// the test file text. Rendering is a pure function of its inputs.
package generate

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"testgen/internal/logging"
	"testgen/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateFiles maps each choice to its body. Default reuses the service body.
var templateFiles = map[types.TemplateChoice]string{
	types.ControllerTemplate: "controller.java.tmpl",
	types.ServiceTemplate:    "service.java.tmpl",
	types.RepositoryTemplate: "repository.java.tmpl",
	types.DefaultTemplate:    "service.java.tmpl",
}

// DefaultExcludedOperations are inherited by every type and never stubbed.
var DefaultExcludedOperations = []string{
	"equals", "hashCode", "toString", "clone", "finalize",
	"getClass", "notify", "notifyAll", "wait",
}

// Choose maps a role set to exactly one template.
// Priority: Controller > Service > Repository > Default.
func Choose(roles types.RoleSet) types.TemplateChoice {
	switch {
	case roles.Has(types.RoleController):
		return types.ControllerTemplate
	case roles.Has(types.RoleService):
		return types.ServiceTemplate
	case roles.Has(types.RoleRepository):
		return types.RepositoryTemplate
	default:
		return types.DefaultTemplate
	}
}

// TestMethodName derives the stub name: "test" plus the operation with its
// first letter upper-cased.
func TestMethodName(op string) string {
	r, size := utf8.DecodeRuneInString(op)
	if r == utf8.RuneError {
		return "test"
	}
	return "test" + string(unicode.ToUpper(r)) + op[size:]
}

// Options configures a Generator.
type Options struct {
	// ExcludedOperations are never stubbed. Nil means DefaultExcludedOperations.
	ExcludedOperations []string

	// ControllerMocks are wired as @MockBean fields; the first one is stubbed
	// in every operation test.
	ControllerMocks []types.Collaborator

	// ServiceMocks are wired as @Mock fields whether or not the type uses them.
	ServiceMocks []types.Collaborator
}

// Stub is one per-operation test method.
type Stub struct {
	Operation string
	Method    string
}

// Rendered is the output of Generate.
type Rendered struct {
	Content string
	// Collisions lists operations dropped because an earlier operation
	// already produced the same test method name.
	Collisions []string
}

// Generator renders scaffold tests from embedded templates.
type Generator struct {
	tmpl     *template.Template
	opts     Options
	excluded map[string]bool
}

// New parses the embedded templates.
func New(opts Options) (*Generator, error) {
	if opts.ExcludedOperations == nil {
		opts.ExcludedOperations = DefaultExcludedOperations
	}

	tmpl, err := template.New("scaffold").Funcs(template.FuncMap{
		"arrange": arrange,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	excluded := make(map[string]bool, len(opts.ExcludedOperations))
	for _, op := range opts.ExcludedOperations {
		excluded[op] = true
	}

	return &Generator{tmpl: tmpl, opts: opts, excluded: excluded}, nil
}

// Stubs filters the excluded operations and de-duplicates by test method
// name. The first operation producing a name wins.
func (g *Generator) Stubs(ops []string) ([]Stub, []string) {
	var stubs []Stub
	var collisions []string
	seen := make(map[string]bool, len(ops))

	for _, op := range ops {
		if op == "" || g.excluded[op] {
			continue
		}
		method := TestMethodName(op)
		if seen[method] {
			collisions = append(collisions, op)
			continue
		}
		seen[method] = true
		stubs = append(stubs, Stub{Operation: op, Method: method})
	}
	return stubs, collisions
}

type templateData struct {
	Namespace string
	TypeName  string
	Instance  string
	Stubs     []Stub
	Mocks     []types.Collaborator
	Primary   types.Collaborator
}

// Generate renders the body selected by choice for the descriptor.
// Namespace and type name are interpolated verbatim.
func (g *Generator) Generate(d *types.SourceDescriptor, choice types.TemplateChoice) (*Rendered, error) {
	if !d.Generatable() {
		return nil, types.ErrNoTypeDeclaration
	}
	name, ok := templateFiles[choice]
	if !ok {
		return nil, fmt.Errorf("no template for choice %s", choice)
	}

	data := templateData{
		Namespace: d.Namespace,
		TypeName:  d.TypeName,
		Instance:  strings.ToLower(d.TypeName),
	}

	var collisions []string
	switch choice {
	case types.ControllerTemplate:
		data.Stubs, collisions = g.Stubs(d.Operations)
		data.Mocks = g.opts.ControllerMocks
	case types.ServiceTemplate, types.DefaultTemplate:
		data.Stubs, collisions = g.Stubs(d.Operations)
		data.Mocks = g.opts.ServiceMocks
	}
	if len(data.Mocks) > 0 {
		data.Primary = data.Mocks[0]
	}

	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s for %s: %w", choice, d.TypeName, err)
	}

	for _, op := range collisions {
		logging.Get(logging.CategoryGenerate).Warn("%s: operation %q collides with an earlier test method %s, skipped",
			d.TypeName, op, TestMethodName(op))
	}
	logging.GenerateDebug("rendered %s template for %s (%d stubs)", choice, d.TypeName, len(data.Stubs))

	return &Rendered{Content: buf.String(), Collisions: collisions}, nil
}

// arrange renders the stubbing line for a collaborator.
func arrange(c types.Collaborator) string {
	switch {
	case c.Name == "":
		return "// No collaborators configured"
	case c.Call == "":
		return fmt.Sprintf("assertNotNull(%s);", c.Name)
	default:
		returns := c.Returns
		if returns == "" {
			returns = "null"
		}
		return fmt.Sprintf("when(%s.%s).thenReturn(%s);", c.Name, c.Call, returns)
	}
}
