package extract

import (
	"context"
	"fmt"
	"time"

	"testgen/internal/logging"
	"testgen/internal/types"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// TreeSitterExtractor classifies Java sources from a syntax tree. Unlike the
// regex engine it only reports methods declared on the primary type and only
// reads roles from that type's own annotations.
type TreeSitterExtractor struct{}

// NewTreeSitterExtractor creates the tree-sitter engine.
func NewTreeSitterExtractor() *TreeSitterExtractor {
	return &TreeSitterExtractor{}
}

// Name returns "treesitter".
func (e *TreeSitterExtractor) Name() string {
	return "treesitter"
}

// SupportedExtensions returns [".java"].
func (e *TreeSitterExtractor) SupportedExtensions() []string {
	return []string{".java"}
}

// Extract implements Extractor. A parser is created per call since
// sitter.Parser is not safe for concurrent use.
func (e *TreeSitterExtractor) Extract(ctx context.Context, source []byte) (*types.SourceDescriptor, error) {
	start := time.Now()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		logging.Get(logging.CategoryExtract).Error("treesitter: parse failed: %v", err)
		return nil, fmt.Errorf("treesitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	d := &types.SourceDescriptor{}
	text := func(n *sitter.Node) string { return n.Content(source) }

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			if d.Namespace == "" {
				d.Namespace = packageName(child, text)
			}
		case "class_declaration", "interface_declaration":
			if d.TypeName != "" || !hasModifier(child, "public") {
				continue
			}
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			d.TypeName = text(nameNode)
			d.Roles = annotationRoles(child, text)
			d.Operations = publicMethods(child, text)
		}
	}

	logging.ExtractDebug("treesitter: type=%q namespace=%q ops=%d roles=%s in %v",
		d.TypeName, d.Namespace, len(d.Operations), d.Roles, time.Since(start))
	return d, nil
}

func packageName(decl *sitter.Node, text func(*sitter.Node) string) string {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		n := decl.NamedChild(i)
		if n.Type() == "scoped_identifier" || n.Type() == "identifier" {
			return text(n)
		}
	}
	return ""
}

// modifiersOf returns the modifiers node of a declaration, if any.
func modifiersOf(decl *sitter.Node) *sitter.Node {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if n := decl.NamedChild(i); n.Type() == "modifiers" {
			return n
		}
	}
	return nil
}

// hasModifier reports whether the declaration carries the keyword modifier.
func hasModifier(decl *sitter.Node, keyword string) bool {
	mods := modifiersOf(decl)
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		if mods.Child(i).Type() == keyword {
			return true
		}
	}
	return false
}

func annotationRoles(decl *sitter.Node, text func(*sitter.Node) string) types.RoleSet {
	var roles types.RoleSet
	mods := modifiersOf(decl)
	if mods == nil {
		return roles
	}
	for i := 0; i < int(mods.NamedChildCount()); i++ {
		n := mods.NamedChild(i)
		if n.Type() != "marker_annotation" && n.Type() != "annotation" {
			continue
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		if role, ok := RoleForAnnotation(text(nameNode)); ok {
			roles = roles.Add(role)
		}
	}
	return roles
}

// publicMethods lists the methods declared directly in the type body.
// Interface methods are public unless marked private.
func publicMethods(decl *sitter.Node, text func(*sitter.Node) string) []string {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	isInterface := decl.Type() == "interface_declaration"

	var ops []string
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m.Type() != "method_declaration" {
			continue
		}
		public := hasModifier(m, "public")
		if isInterface && !hasModifier(m, "private") {
			public = true
		}
		if !public {
			continue
		}
		if nameNode := m.ChildByFieldName("name"); nameNode != nil {
			ops = append(ops, text(nameNode))
		}
	}
	return ops
}
