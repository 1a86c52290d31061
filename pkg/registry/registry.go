// Package registry holds the catalogue of element types a pipeline can use.
package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Element roles.
const (
	RoleSource      = "source"
	RoleParser      = "parser"
	RoleTarget      = "target"
	RoleDestination = "destination"
	RoleHasTargets  = "hasTargets"
	RoleHasCode     = "hasCode"
	RoleMutator     = "mutator"
	RoleValidator   = "validator"
	RoleSimple      = "simple"
	RoleStepping    = "stepping"
)

// PropertyDefinition describes a property an element type accepts.
type PropertyDefinition struct {
	Name         string              `json:"name" yaml:"name" mapstructure:"name"`
	Kind         domain.PropertyKind `json:"type" yaml:"type" mapstructure:"type"`
	Description  string              `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	DefaultValue string              `json:"default_value,omitempty" yaml:"default_value,omitempty" mapstructure:"default_value"`
	DocRefTypes  []string            `json:"doc_ref_types,omitempty" yaml:"doc_ref_types,omitempty" mapstructure:"doc_ref_types"`
}

// Definition describes an element type.
type Definition struct {
	Type       string               `json:"type" yaml:"type" mapstructure:"type"`
	Category   string               `json:"category" yaml:"category" mapstructure:"category"`
	Icon       string               `json:"icon,omitempty" yaml:"icon,omitempty" mapstructure:"icon"`
	Roles      []string             `json:"roles,omitempty" yaml:"roles,omitempty" mapstructure:"roles"`
	Properties []PropertyDefinition `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`
}

// HasRole reports whether the type carries role.
func (d Definition) HasRole(role string) bool {
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Property returns the definition of the named property.
func (d Definition) Property(name string) (PropertyDefinition, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDefinition{}, false
}

// Registry manages the available element types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Definition
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Definition),
	}
}

// Register adds an element type to the registry.
// If a type with the same name exists, it is overwritten.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Type] = def
}

// Lookup returns the definition of an element type.
func (r *Registry) Lookup(elementType string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[elementType]
	return def, ok
}

// List returns every definition sorted by category then type.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.types))
	for _, def := range r.types {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// catalogue is the file format: a top level "elements" list.
type catalogue struct {
	Elements []map[string]any `yaml:"elements"`
}

// Load reads element definitions from YAML into a new registry.
func Load(r io.Reader) (*Registry, error) {
	var cat catalogue
	if err := yaml.NewDecoder(r).Decode(&cat); err != nil {
		return nil, fmt.Errorf("failed to parse element catalogue: %w", err)
	}

	reg := NewRegistry()
	for i, raw := range cat.Elements {
		var def Definition
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &def,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if def.Type == "" {
			return nil, fmt.Errorf("element %d: type is required", i)
		}
		for _, p := range def.Properties {
			if _, err := domain.ParsePropertyKind(string(p.Kind)); err != nil {
				return nil, fmt.Errorf("element %s property %s: %w", def.Type, p.Name, err)
			}
		}
		reg.Register(def)
	}
	return reg, nil
}

// LoadFile reads a YAML element catalogue from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open element catalogue: %w", err)
	}
	defer f.Close()
	return Load(f)
}

//go:embed elements.yaml
var builtin []byte

// Default returns a registry holding the built-in element types.
func Default() *Registry {
	reg, err := Load(bytes.NewReader(builtin))
	if err != nil {
		panic(fmt.Sprintf("registry: built-in catalogue is invalid: %v", err))
	}
	return reg
}
