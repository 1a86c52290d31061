package domain

import (
	"fmt"
	"slices"
)

// Element is a typed node of the pipeline graph. ID is unique within a merged view.
type Element struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
}

// Link is a directed parent to child edge. A link is identified by its To endpoint.
type Link struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// PropertyKey identifies a property within a merged view.
type PropertyKey struct {
	Element string `json:"element" yaml:"element"`
	Name    string `json:"name" yaml:"name"`
}

func (k PropertyKey) String() string {
	return k.Element + "." + k.Name
}

// Property is a named value attached to an element.
type Property struct {
	Element string        `json:"element" yaml:"element"`
	Name    string        `json:"name" yaml:"name"`
	Value   PropertyValue `json:"value" yaml:"value"`
}

func (p Property) Key() PropertyKey {
	return PropertyKey{Element: p.Element, Name: p.Name}
}

// AddRemove pairs the entries a layer contributes with the entries it shadows.
type AddRemove[T any] struct {
	Add    []T `json:"add" yaml:"add"`
	Remove []T `json:"remove" yaml:"remove"`
}

// Clone copies both lists.
func (ar AddRemove[T]) Clone() AddRemove[T] {
	return AddRemove[T]{Add: slices.Clone(ar.Add), Remove: slices.Clone(ar.Remove)}
}

// StackLayer is one partial edit of a pipeline.
type StackLayer struct {
	Elements   AddRemove[Element]  `json:"elements" yaml:"elements"`
	Links      AddRemove[Link]     `json:"links" yaml:"links"`
	Properties AddRemove[Property] `json:"properties" yaml:"properties"`
}

func (l StackLayer) Clone() StackLayer {
	return StackLayer{
		Elements:   l.Elements.Clone(),
		Links:      l.Links.Clone(),
		Properties: l.Properties.Clone(),
	}
}

// IsEmpty reports whether the layer adds or removes anything.
func (l StackLayer) IsEmpty() bool {
	return len(l.Elements.Add) == 0 && len(l.Elements.Remove) == 0 &&
		len(l.Links.Add) == 0 && len(l.Links.Remove) == 0 &&
		len(l.Properties.Add) == 0 && len(l.Properties.Remove) == 0
}

// ConfigStack holds the layers of a pipeline, root-most ancestor first and own layer last.
type ConfigStack []StackLayer

func (s ConfigStack) Clone() ConfigStack {
	if s == nil {
		return nil
	}
	out := make(ConfigStack, len(s))
	for i, l := range s {
		out[i] = l.Clone()
	}
	return out
}

// Ancestors returns every layer except the own layer.
func (s ConfigStack) Ancestors() ConfigStack {
	if len(s) == 0 {
		return nil
	}
	return s[:len(s)-1]
}

// MergedView is the result of folding a ConfigStack: only added entries remain.
type MergedView struct {
	Elements   []Element  `json:"elements" yaml:"elements"`
	Links      []Link     `json:"links" yaml:"links"`
	Properties []Property `json:"properties" yaml:"properties"`
}

func (m MergedView) Clone() MergedView {
	return MergedView{
		Elements:   slices.Clone(m.Elements),
		Links:      slices.Clone(m.Links),
		Properties: slices.Clone(m.Properties),
	}
}

// Pipeline is a ConfigStack together with its merged view.
// Merged always equals the resolution of ConfigStack.
type Pipeline struct {
	ConfigStack ConfigStack `json:"config_stack" yaml:"config_stack"`
	Merged      MergedView  `json:"merged" yaml:"merged"`
}

// OwnLayer returns a copy of the pipeline's own (most derived) layer.
func (p Pipeline) OwnLayer() (StackLayer, error) {
	if len(p.ConfigStack) == 0 {
		return StackLayer{}, fmt.Errorf("%w: pipeline has no own layer", ErrInvalidOperation)
	}
	return p.ConfigStack[len(p.ConfigStack)-1].Clone(), nil
}

// WithOwnLayer returns a pipeline whose own layer is replaced by layer and whose
// merged view is merged. The receiver is left untouched.
func (p Pipeline) WithOwnLayer(layer StackLayer, merged MergedView) Pipeline {
	stack := slices.Clone(p.ConfigStack)
	stack[len(stack)-1] = layer
	return Pipeline{ConfigStack: stack, Merged: merged}
}

// Index is a keyed lookup over a MergedView.
type Index struct {
	elements   map[string]Element
	incoming   map[string]Link
	children   map[string][]string
	properties map[PropertyKey]Property
}

// NewIndex indexes m. Later entries win on duplicate keys.
func NewIndex(m MergedView) *Index {
	idx := &Index{
		elements:   make(map[string]Element, len(m.Elements)),
		incoming:   make(map[string]Link, len(m.Links)),
		children:   make(map[string][]string),
		properties: make(map[PropertyKey]Property, len(m.Properties)),
	}
	for _, e := range m.Elements {
		idx.elements[e.ID] = e
	}
	for _, l := range m.Links {
		idx.incoming[l.To] = l
		idx.children[l.From] = append(idx.children[l.From], l.To)
	}
	for _, p := range m.Properties {
		idx.properties[p.Key()] = p
	}
	return idx
}

func (i *Index) Element(id string) (Element, bool) {
	e, ok := i.elements[id]
	return e, ok
}

// IncomingLink returns the link whose To is id.
func (i *Index) IncomingLink(id string) (Link, bool) {
	l, ok := i.incoming[id]
	return l, ok
}

// Children returns the To endpoints of the links leaving id, in link order.
func (i *Index) Children(id string) []string {
	return i.children[id]
}

func (i *Index) Property(element, name string) (Property, bool) {
	p, ok := i.properties[PropertyKey{Element: element, Name: name}]
	return p, ok
}
