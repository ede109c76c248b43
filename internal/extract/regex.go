package extract

import (
	"context"
	"regexp"
	"strings"

	"testgen/internal/logging"
	"testgen/internal/types"
)

// ident matches Java identifier characters, including non-ASCII letters.
const ident = `\p{L}\p{N}_$`

var (
	packageRe   = regexp.MustCompile(`package\s+([` + ident + `.]+);`)
	typeRe      = regexp.MustCompile(`public\s+(?:class|interface)\s+([` + ident + `]+)`)
	operationRe = regexp.MustCompile(`public\s+[` + ident + `<>,\s\[\]]+\s+([` + ident + `]+)\s*\([^)]*\)`)
)

// RegexExtractor classifies Java sources lexically. It is not brace aware:
// signatures inside comments, strings and nested types are reported too.
type RegexExtractor struct{}

// NewRegexExtractor creates the regex engine.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Name returns "regex".
func (e *RegexExtractor) Name() string {
	return "regex"
}

// SupportedExtensions returns [".java"].
func (e *RegexExtractor) SupportedExtensions() []string {
	return []string{".java"}
}

// Extract implements Extractor.
func (e *RegexExtractor) Extract(_ context.Context, source []byte) (*types.SourceDescriptor, error) {
	text := string(source)
	d := &types.SourceDescriptor{}

	if m := packageRe.FindStringSubmatch(text); m != nil {
		d.Namespace = m[1]
	}
	if m := typeRe.FindStringSubmatch(text); m != nil {
		d.TypeName = m[1]
	}
	for _, m := range operationRe.FindAllStringSubmatch(text, -1) {
		d.Operations = append(d.Operations, m[1])
	}
	d.Roles = markerRoles(text)

	logging.ExtractDebug("regex: type=%q namespace=%q ops=%d roles=%s",
		d.TypeName, d.Namespace, len(d.Operations), d.Roles)
	return d, nil
}

// markerRoles checks each marker independently against the raw text.
func markerRoles(text string) types.RoleSet {
	var roles types.RoleSet
	for _, m := range markers {
		for _, n := range m.names {
			if strings.Contains(text, "@"+n) {
				roles = roles.Add(m.role)
				break
			}
		}
	}
	return roles
}
