package domain

import "slices"

// MergedDiff represents the changes between two merged views.
// It is designed to be serialized to JSON for partial updates on the client.
type MergedDiff struct {
	AddedElements   []string `json:"added_elements,omitempty"`
	RemovedElements []string `json:"removed_elements,omitempty"`

	// Relinked maps a child id to its new parent id. Links that disappeared
	// entirely are reported with an empty parent.
	Relinked map[string]string `json:"relinked,omitempty"`

	ChangedProperties []PropertyKey `json:"changed_properties,omitempty"`
	RemovedProperties []PropertyKey `json:"removed_properties,omitempty"`
}

// Diff calculates the difference between two merged views.
// It returns nil when nothing changed.
func Diff(oldView, newView MergedView) *MergedDiff {
	before := NewIndex(oldView)
	after := NewIndex(newView)
	diff := &MergedDiff{}

	// 1. Elements
	for _, e := range newView.Elements {
		if _, ok := before.Element(e.ID); !ok {
			diff.AddedElements = append(diff.AddedElements, e.ID)
		}
	}
	for _, e := range oldView.Elements {
		if _, ok := after.Element(e.ID); !ok {
			diff.RemovedElements = append(diff.RemovedElements, e.ID)
		}
	}

	// 2. Links
	relinked := make(map[string]string)
	for _, l := range newView.Links {
		if prev, ok := before.IncomingLink(l.To); !ok || prev.From != l.From {
			relinked[l.To] = l.From
		}
	}
	for _, l := range oldView.Links {
		if _, ok := after.IncomingLink(l.To); !ok {
			relinked[l.To] = ""
		}
	}
	if len(relinked) > 0 {
		diff.Relinked = relinked
	}

	// 3. Properties
	for _, p := range newView.Properties {
		if prev, ok := before.Property(p.Element, p.Name); !ok || !prev.Value.Equal(p.Value) {
			diff.ChangedProperties = append(diff.ChangedProperties, p.Key())
		}
	}
	for _, p := range oldView.Properties {
		if _, ok := after.Property(p.Element, p.Name); !ok {
			diff.RemovedProperties = append(diff.RemovedProperties, p.Key())
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	slices.Sort(diff.AddedElements)
	slices.Sort(diff.RemovedElements)
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *MergedDiff) IsEmpty() bool {
	return d == nil || (len(d.AddedElements) == 0 &&
		len(d.RemovedElements) == 0 &&
		len(d.Relinked) == 0 &&
		len(d.ChangedProperties) == 0 &&
		len(d.RemovedProperties) == 0)
}
