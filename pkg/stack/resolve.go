/*
Package stack folds a layered pipeline configuration into its merged view and
answers inheritance questions about it.

Layers are applied from the root-most ancestor (index 0) to the own layer.
Within one layer the add list is applied before the remove list, so a layer
that both adds and removes the same key ends up without it.
*/
package stack

import (
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
)

// Resolve folds every layer of s into a single merged view.
//
// Elements are keyed by id, links by their To endpoint and properties by
// (element, name). A later add replaces an earlier one; a link remove only
// applies when both endpoints match the current link for that child.
// The output lists entries in the order of their latest add.
func Resolve(s domain.ConfigStack) domain.MergedView {
	elements := newOrdered[string, domain.Element]()
	links := newOrdered[string, domain.Link]()
	properties := newOrdered[domain.PropertyKey, domain.Property]()

	for _, layer := range s {
		for _, e := range layer.Elements.Add {
			elements.put(e.ID, e)
		}
		for _, e := range layer.Elements.Remove {
			elements.del(e.ID)
		}

		for _, l := range layer.Links.Add {
			links.put(l.To, l)
		}
		for _, l := range layer.Links.Remove {
			if cur, ok := links.get(l.To); ok && cur.From == l.From {
				links.del(l.To)
			}
		}

		for _, p := range layer.Properties.Add {
			properties.put(p.Key(), p)
		}
		for _, p := range layer.Properties.Remove {
			properties.del(p.Key())
		}
	}

	return domain.MergedView{
		Elements:   elements.values(),
		Links:      links.values(),
		Properties: properties.values(),
	}
}

// ResolvePipeline builds a Pipeline whose merged view is computed from s.
func ResolvePipeline(s domain.ConfigStack) domain.Pipeline {
	return domain.Pipeline{ConfigStack: s, Merged: Resolve(s)}
}

// FindAncestorProperty returns the value the ancestors of the own layer give
// to (elementID, name). Layers are searched from the nearest ancestor down to
// the root. A layer that adds the key answers with that value, even if the
// same layer also removes it; a layer that only removes the key stops the
// search.
//
// It fails with domain.ErrInvalidOperation when the stack has no ancestor.
func FindAncestorProperty(s domain.ConfigStack, elementID, name string) (domain.Property, bool, error) {
	if len(s) < 2 {
		return domain.Property{}, false, fmt.Errorf("%w: property inheritance needs at least two layers, got %d", domain.ErrInvalidOperation, len(s))
	}

	key := domain.PropertyKey{Element: elementID, Name: name}
	for i := len(s) - 2; i >= 0; i-- {
		layer := s[i]
		if p, ok := lastWithKey(layer.Properties.Add, key); ok {
			return p, true, nil
		}
		if containsKey(layer.Properties.Remove, key) {
			return domain.Property{}, false, nil
		}
	}
	return domain.Property{}, false, nil
}

func containsKey(props []domain.Property, key domain.PropertyKey) bool {
	for _, p := range props {
		if p.Key() == key {
			return true
		}
	}
	return false
}

func lastWithKey(props []domain.Property, key domain.PropertyKey) (domain.Property, bool) {
	for i := len(props) - 1; i >= 0; i-- {
		if props[i].Key() == key {
			return props[i], true
		}
	}
	return domain.Property{}, false
}
