// Package types holds the data model shared by the extractor, the generator and
// the driver: descriptors, roles, template choices and generated artifacts.
package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a structural classification inferred from framework markers.
type Role uint8

const (
	RoleController Role = 1 << iota // @Controller, @RestController
	RoleService                     // @Service
	RoleRepository                  // @Repository
	RoleEntity                      // @Entity, @Table
)

// allRoles is the canonical listing order.
var allRoles = []Role{RoleController, RoleService, RoleRepository, RoleEntity}

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleService:
		return "service"
	case RoleRepository:
		return "repository"
	case RoleEntity:
		return "entity"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole maps a role name back to a Role.
func ParseRole(name string) (Role, error) {
	for _, r := range allRoles {
		if strings.EqualFold(r.String(), strings.TrimSpace(name)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role: %q", name)
}

// RoleSet is a set of roles. A file may textually match several markers.
type RoleSet uint8

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.Add(r)
	}
	return s
}

// Add returns the set with r included.
func (s RoleSet) Add(r Role) RoleSet {
	return s | RoleSet(r)
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	return s&RoleSet(r) != 0
}

// Empty reports whether no role matched.
func (s RoleSet) Empty() bool {
	return s == 0
}

// List returns the members in canonical order.
func (s RoleSet) List() []Role {
	var out []Role
	for _, r := range allRoles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Names returns the member names in canonical order.
func (s RoleSet) Names() []string {
	roles := s.List()
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return names
}

func (s RoleSet) String() string {
	if s.Empty() {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// MarshalYAML renders the set as a list of role names.
func (s RoleSet) MarshalYAML() (interface{}, error) {
	return s.Names(), nil
}

// UnmarshalYAML accepts a list of role names.
func (s *RoleSet) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var names []string
	if err := unmarshal(&names); err != nil {
		return err
	}
	var set RoleSet
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			return err
		}
		set = set.Add(r)
	}
	*s = set
	return nil
}

// =============================================================================
// DESCRIPTOR
// =============================================================================

// SourceDescriptor is the flat metadata extracted from one source file.
// TypeName is empty when no public type declaration was found; such files
// are never generated.
type SourceDescriptor struct {
	Namespace  string   `yaml:"namespace" json:"namespace"`
	TypeName   string   `yaml:"type_name" json:"type_name"`
	Operations []string `yaml:"operations" json:"operations"` // source order
	Roles      RoleSet  `yaml:"roles" json:"roles"`
}

// Generatable reports whether the descriptor names a public type.
func (d *SourceDescriptor) Generatable() bool {
	return d != nil && d.TypeName != ""
}

// =============================================================================
// TEMPLATE CHOICE
// =============================================================================

// TemplateChoice selects the body used to render a scaffold test.
type TemplateChoice int

const (
	ControllerTemplate TemplateChoice = iota
	ServiceTemplate
	RepositoryTemplate
	DefaultTemplate
)

func (c TemplateChoice) String() string {
	switch c {
	case ControllerTemplate:
		return "controller"
	case ServiceTemplate:
		return "service"
	case RepositoryTemplate:
		return "repository"
	case DefaultTemplate:
		return "default"
	default:
		return fmt.Sprintf("template(%d)", int(c))
	}
}

// MarshalYAML renders the choice by name.
func (c TemplateChoice) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// Collaborator is a mocked dependency wired into a generated test.
// Call and Returns form the stubbing expression
// when(<Name>.<Call>).thenReturn(<Returns>).
type Collaborator struct {
	Type    string `yaml:"type" json:"type"`
	Name    string `yaml:"name" json:"name"`
	Call    string `yaml:"call,omitempty" json:"call,omitempty"`
	Returns string `yaml:"returns,omitempty" json:"returns,omitempty"`
}

// GeneratedArtifact is a rendered test file paired with its destination.
// It is written at most once and never updated in place.
type GeneratedArtifact struct {
	Source      string         `yaml:"source" json:"source"`
	Destination string         `yaml:"destination" json:"destination"`
	Template    TemplateChoice `yaml:"template" json:"template"`
	Content     string         `yaml:"-" json:"-"`
	// Collisions lists operations dropped because their test method name
	// was already taken by an earlier operation.
	Collisions []string `yaml:"collisions,omitempty" json:"collisions,omitempty"`
}
