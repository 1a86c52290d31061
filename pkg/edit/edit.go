/*
Package edit implements the structural and property edits of a pipeline.

Every operation takes a domain.Pipeline by value and returns a new one; the
input is never modified. Only the own layer of the config stack and the
merged view change, and they always change together so that the merged view
stays equal to the resolution of the stack. On error the zero Pipeline is
returned.
*/
package edit

import (
	"errors"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/stack"
	"github.com/aretw0/strata/pkg/tree"
)

// CreateElement adds a new element named name below parentID.
// It fails with domain.ErrConflict when name is already used.
func CreateElement(p domain.Pipeline, parentID, elementType, name string) (domain.Pipeline, error) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	if name == "" || elementType == "" {
		return domain.Pipeline{}, fmt.Errorf("%w: element name and type are required", domain.ErrInvalidOperation)
	}

	idx := domain.NewIndex(p.Merged)
	if _, exists := idx.Element(name); exists {
		return domain.Pipeline{}, fmt.Errorf("%w: element %q already exists", domain.ErrConflict, name)
	}
	if _, ok := idx.Element(parentID); !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: parent element %q", domain.ErrNotFound, parentID)
	}

	element := domain.Element{ID: name, Type: elementType}
	link := domain.Link{From: parentID, To: name}

	own.Elements.Add = with(own.Elements.Add, element)
	own.Elements.Remove = without(own.Elements.Remove, elementID(name))
	own.Links.Add = with(without(own.Links.Add, linkTo(name)), link)
	own.Links.Remove = without(own.Links.Remove, linkTo(name))

	merged := p.Merged.Clone()
	merged.Elements = with(merged.Elements, element)
	merged.Links = with(without(merged.Links, linkTo(name)), link)

	return p.WithOwnLayer(own, merged), nil
}

// RemoveElement deletes an element and the link to it.
//
// Entries the own layer added are dropped. Entries inherited from an ancestor
// are shadowed by recording them in the own layer's remove lists, which also
// puts the element in the recycle bin. Links leaving the element and its
// properties are kept.
func RemoveElement(p domain.Pipeline, id string) (domain.Pipeline, error) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	if _, ok := domain.NewIndex(p.Merged).Element(id); !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: element %q", domain.ErrNotFound, id)
	}

	inherited := domain.NewIndex(stack.Resolve(p.ConfigStack.Ancestors()))

	own.Elements.Add = without(own.Elements.Add, elementID(id))
	if e, ok := inherited.Element(id); ok {
		own.Elements.Remove = with(without(own.Elements.Remove, elementID(id)), e)
	}

	own.Links.Add = without(own.Links.Add, linkTo(id))
	if l, ok := inherited.IncomingLink(id); ok {
		own.Links.Remove = with(without(own.Links.Remove, linkTo(id)), l)
	}

	merged := p.Merged.Clone()
	merged.Elements = without(merged.Elements, elementID(id))
	merged.Links = without(merged.Links, linkTo(id))

	return p.WithOwnLayer(own, merged), nil
}

// CanMove reports why id cannot be moved below newParentID, or nil.
//
// Both endpoints must be in the current tree. Moving an element below itself
// or one of its descendants is an invalid operation, and so is moving it to
// the parent it already has (that error also matches domain.ErrConflict).
func CanMove(p domain.Pipeline, id, newParentID string) error {
	root, err := tree.Build(p.Merged)
	if err != nil {
		return err
	}

	node, err := findInTree(root, id)
	if err != nil {
		return err
	}
	dest, err := findInTree(root, newParentID)
	if err != nil {
		return err
	}
	below, err := tree.InSubtree(node, newParentID)
	if err != nil {
		return err
	}
	if below {
		return fmt.Errorf("%w: cannot move %q below itself or its descendant %q", domain.ErrInvalidOperation, id, newParentID)
	}
	for _, child := range dest.Children {
		if child.UUID == id {
			return fmt.Errorf("%w: %w: %q is already a child of %q", domain.ErrInvalidOperation, domain.ErrConflict, id, newParentID)
		}
	}
	return nil
}

// findInTree reports a missing node as both not found and an invalid move.
func findInTree(root *domain.TreeNode, id string) (*domain.TreeNode, error) {
	node, _, err := tree.Find(root, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w: element %q is not in the pipeline tree", domain.ErrInvalidOperation, domain.ErrNotFound, id)
	}
	return node, err
}

// MoveElement re-parents id below newParentID.
func MoveElement(p domain.Pipeline, id, newParentID string) (domain.Pipeline, error) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	if err := CanMove(p, id, newParentID); err != nil {
		return domain.Pipeline{}, err
	}

	link := domain.Link{From: newParentID, To: id}

	own.Links.Add = with(without(own.Links.Add, linkTo(id)), link)
	own.Links.Remove = without(own.Links.Remove, linkTo(id))

	merged := p.Merged.Clone()
	merged.Links = with(without(merged.Links, linkTo(id)), link)

	return p.WithOwnLayer(own, merged), nil
}

// SetProperty builds a value of the given kind from raw and sets it on the
// own layer. See NewPropertyValue for the accepted raw forms.
func SetProperty(p domain.Pipeline, elementID, name string, kind domain.PropertyKind, raw any) (domain.Pipeline, error) {
	value, err := domain.NewPropertyValue(kind, raw)
	if err != nil {
		return domain.Pipeline{}, err
	}
	return SetPropertyValue(p, elementID, name, value)
}

// SetPropertyValue overrides (elementID, name) in the own layer.
func SetPropertyValue(p domain.Pipeline, elementID, name string, value domain.PropertyValue) (domain.Pipeline, error) {
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	if name == "" || value.IsZero() {
		return domain.Pipeline{}, fmt.Errorf("%w: property name and value are required", domain.ErrInvalidOperation)
	}
	if _, ok := domain.NewIndex(p.Merged).Element(elementID); !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: element %q", domain.ErrNotFound, elementID)
	}

	prop := domain.Property{Element: elementID, Name: name, Value: value}
	key := prop.Key()

	own.Properties.Add = upsert(own.Properties.Add, propertyKey(key), prop)
	own.Properties.Remove = without(own.Properties.Remove, propertyKey(key))

	merged := p.Merged.Clone()
	merged.Properties = upsert(merged.Properties, propertyKey(key), prop)

	return p.WithOwnLayer(own, merged), nil
}

// RevertToParent discards the own layer's opinion on (elementID, name) so the
// value inherited from the nearest ancestor applies again.
func RevertToParent(p domain.Pipeline, elementID, name string) (domain.Pipeline, error) {
	inherited, ok, err := stack.FindAncestorProperty(p.ConfigStack, elementID, name)
	if err != nil {
		return domain.Pipeline{}, err
	}
	if !ok {
		return domain.Pipeline{}, fmt.Errorf("%w: no ancestor defines %s.%s", domain.ErrNotFound, elementID, name)
	}

	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	key := inherited.Key()

	own.Properties.Add = without(own.Properties.Add, propertyKey(key))
	own.Properties.Remove = without(own.Properties.Remove, propertyKey(key))

	merged := p.Merged.Clone()
	merged.Properties = upsert(merged.Properties, propertyKey(key), inherited)

	return p.WithOwnLayer(own, merged), nil
}

// RevertToDefault leaves (elementID, name) without any value. The own
// override, or else the inherited value, is recorded in the own layer's
// remove list.
func RevertToDefault(p domain.Pipeline, elementID, name string) (domain.Pipeline, error) {
	if len(p.ConfigStack) < 2 {
		return domain.Pipeline{}, fmt.Errorf("%w: reverting needs at least two layers, got %d", domain.ErrInvalidOperation, len(p.ConfigStack))
	}
	own, err := p.OwnLayer()
	if err != nil {
		return domain.Pipeline{}, err
	}
	key := domain.PropertyKey{Element: elementID, Name: name}

	shadow, overridden := find(own.Properties.Add, propertyKey(key))
	if overridden {
		own.Properties.Add = without(own.Properties.Add, propertyKey(key))
	} else {
		inherited, ok, err := stack.FindAncestorProperty(p.ConfigStack, elementID, name)
		if err != nil {
			return domain.Pipeline{}, err
		}
		if !ok {
			return domain.Pipeline{}, fmt.Errorf("%w: %s.%s has no value to revert", domain.ErrNotFound, elementID, name)
		}
		shadow = inherited
	}
	own.Properties.Remove = upsert(own.Properties.Remove, propertyKey(key), shadow)

	merged := p.Merged.Clone()
	merged.Properties = without(merged.Properties, propertyKey(key))

	return p.WithOwnLayer(own, merged), nil
}
