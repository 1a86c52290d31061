package ports

import "github.com/aretw0/strata/pkg/registry"

// ElementRegistry resolves element type names.
// *registry.Registry is the standard implementation.
type ElementRegistry interface {
	Lookup(elementType string) (registry.Definition, bool)
	List() []registry.Definition
}
