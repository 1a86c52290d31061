package domain

import "time"

// Document is the persisted form of a pipeline. The merged view is not stored;
// it is recomputed from ConfigStack when the document is opened.
type Document struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Folder      string      `json:"folder,omitempty" yaml:"folder,omitempty"`
	ParentID    string      `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updated_at"`
	ConfigStack ConfigStack `json:"config_stack" yaml:"config_stack"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.ConfigStack = d.ConfigStack.Clone()
	return &out
}
