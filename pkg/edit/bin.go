package edit

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/stack"
)

// Catalogue looks up element type definitions.
type Catalogue interface {
	Lookup(elementType string) (registry.Definition, bool)
}

// RecycleBinItem is an element the own layer removed.
// Definition is nil when the type is unknown to the catalogue.
type RecycleBinItem struct {
	Element    domain.Element       `json:"element"`
	Definition *registry.Definition `json:"definition,omitempty"`
}

// BinItems lists the elements removed by the own layer that are absent from
// the merged view, in removal order.
func BinItems(p domain.Pipeline, catalogue Catalogue) []RecycleBinItem {
	own, err := p.OwnLayer()
	if err != nil {
		return nil
	}
	idx := domain.NewIndex(p.Merged)

	var items []RecycleBinItem
	for _, e := range own.Elements.Remove {
		if _, live := idx.Element(e.ID); live {
			continue
		}
		item := RecycleBinItem{Element: e}
		if catalogue != nil {
			if def, ok := catalogue.Lookup(e.Type); ok {
				item.Definition = &def
			}
		}
		items = append(items, item)
	}
	return items
}

// ReinstateElement takes id out of the recycle bin and links it below parentID.
func ReinstateElement(p domain.Pipeline, id, parentID string) (domain.Pipeline, error) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	idx := domain.NewIndex(p.Merged)
	if _, live := idx.Element(id); live {
		return domain.Pipeline{}, fmt.Errorf("%w: element %q is not in the recycle bin", domain.ErrConflict, id)
	}
	element, ok := find(own.Elements.Remove, elementID(id))
	if !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: element %q is not in the recycle bin", domain.ErrNotFound, id)
	}
	if _, ok := idx.Element(parentID); !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: parent element %q", domain.ErrNotFound, parentID)
	}

	inherited := domain.NewIndex(stack.Resolve(p.ConfigStack.Ancestors()))
	link := domain.Link{From: parentID, To: id}

	own.Elements.Remove = without(own.Elements.Remove, elementID(id))
	if e, ok := inherited.Element(id); !ok || e != element {
		own.Elements.Add = with(without(own.Elements.Add, elementID(id)), element)
	}

	own.Links.Remove = without(own.Links.Remove, linkTo(id))
	own.Links.Add = without(own.Links.Add, linkTo(id))
	if l, ok := inherited.IncomingLink(id); !ok || l != link {
		own.Links.Add = with(own.Links.Add, link)
	}

	merged := p.Merged.Clone()
	merged.Elements = with(merged.Elements, element)
	merged.Links = with(without(merged.Links, linkTo(id)), link)

	return p.WithOwnLayer(own, merged), nil
}

// AllElementNames returns the lower-cased ids of every element the pipeline
// has ever named: live ones, those added by any layer and those in the bin.
// Each appears once, in first-seen order.
func AllElementNames(p domain.Pipeline) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(id string) {
		n := strings.ToLower(id)
		if _, dup := seen[n]; dup {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, e := range p.Merged.Elements {
		add(e.ID)
	}
	for _, layer := range p.ConfigStack {
		for _, e := range layer.Elements.Add {
			add(e.ID)
		}
	}
	if own, err := p.OwnLayer(); err == nil {
		for _, e := range own.Elements.Remove {
			add(e.ID)
		}
	}
	return names
}

// OwnValue returns the value the own layer sets for (elementID, name).
func OwnValue(p domain.Pipeline, elementID, name string) (domain.Property, bool) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Property{}, false
	}
	return find(own.Properties.Add, propertyKey(domain.PropertyKey{Element: elementID, Name: name}))
}

// EffectiveValue returns the value (elementID, name) has in the merged view.
func EffectiveValue(p domain.Pipeline, elementID, name string) (domain.Property, bool) {
	return domain.NewIndex(p.Merged).Property(elementID, name)
}

// InheritedValue returns the value the ancestors give to (elementID, name).
// A pipeline without ancestors inherits nothing.
func InheritedValue(p domain.Pipeline, elementID, name string) (domain.Property, bool) {
	prop, ok, err := stack.FindAncestorProperty(p.ConfigStack, elementID, name)
	if err != nil {
		return domain.Property{}, false
	}
	return prop, ok
}
