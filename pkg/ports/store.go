package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// PipelineStore defines the interface for persisting pipeline documents.
// Only the config stack is stored; the merged view is recomputed on open.
type PipelineStore interface {
	// Save persists the document under doc.ID, replacing any previous version.
	Save(ctx context.Context, doc *domain.Document) error

	// Load retrieves the document with the given id.
	// Returns domain.ErrPipelineNotFound if the document does not exist.
	Load(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of every stored document.
	List(ctx context.Context) ([]string, error)
}
