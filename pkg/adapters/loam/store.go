// Package loam stores pipeline documents as Markdown files in a Loam
// repository. The descriptive fields live in the front matter and the config
// stack is the body, as a fenced YAML block.
package loam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const ext = ".md"

// PipelineMetadata is the front matter of a pipeline document.
type PipelineMetadata struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Folder      string `mapstructure:"folder"`
	ParentID    string `mapstructure:"parent_id"`
	Description string `mapstructure:"description"`
	UpdatedAt   string `mapstructure:"updated_at"`
}

const (
	fenceOpen  = "```yaml\n"
	fenceClose = "```"
)

// Store implements ports.PipelineStore on top of a Loam repository.
type Store struct {
	repo core.Repository
	dir  string
}

// New initializes a Loam repository in dir (without versioning) and returns a store on it.
func New(dir string, opts ...loam.Option) (*Store, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve loam directory: %w", err)
	}
	if len(opts) == 0 {
		opts = []loam.Option{loam.WithVersioning(false)}
	}
	repo, err := loam.Init(absPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init loam repository: %w", err)
	}
	return NewFromRepo(repo, absPath), nil
}

// NewFromRepo wraps an existing repository rooted at dir.
func NewFromRepo(repo core.Repository, dir string) *Store {
	return &Store{repo: repo, dir: dir}
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid document id %q", domain.ErrInvalidOperation, id)
	}
	return nil
}

// Save writes the document as <id>.md.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document cannot be nil", domain.ErrInvalidOperation)
	}
	if err := validID(doc.ID); err != nil {
		return err
	}

	stack, err := yaml.Marshal(doc.ConfigStack)
	if err != nil {
		return fmt.Errorf("failed to encode config stack: %w", err)
	}

	meta := core.Metadata{
		"id":   doc.ID,
		"name": doc.Name,
	}
	if doc.Description != "" {
		meta["description"] = doc.Description
	}
	if doc.Folder != "" {
		meta["folder"] = doc.Folder
	}
	if doc.ParentID != "" {
		meta["parent_id"] = doc.ParentID
	}
	if !doc.UpdatedAt.IsZero() {
		meta["updated_at"] = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	err = s.repo.Save(ctx, core.Document{
		ID:       doc.ID + ext,
		Content:  fenceOpen + string(stack) + fenceClose,
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", doc.ID, err)
	}
	return nil
}

// Load reads <id>.md back into a document.
func (s *Store) Load(ctx context.Context, id string) (*domain.Document, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("failed to stat pipeline document: %w", err)
	}

	raw, err := s.repo.Get(ctx, id+ext)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}

	var meta PipelineMetadata
	if err := mapstructure.Decode(map[string]any(raw.Metadata), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode front matter of %s: %w", id, err)
	}

	doc := &domain.Document{
		ID:          id,
		Name:        meta.Name,
		Description: meta.Description,
		Folder:      meta.Folder,
		ParentID:    meta.ParentID,
	}
	if meta.UpdatedAt != "" {
		if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at of %s: %w", id, err)
		}
	}
	if err := yaml.Unmarshal([]byte(unfence(raw.Content)), &doc.ConfigStack); err != nil {
		return nil, fmt.Errorf("failed to decode config stack of %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes <id>.md. Documents are plain files under the repository root.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete pipeline document: %w", err)
	}
	return nil
}

// List returns the ids of the Markdown documents in the repository.
func (s *Store) List(ctx context.Context) ([]string, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if filepath.Ext(doc.ID) != ext {
			continue
		}
		ids = append(ids, strings.TrimSuffix(filepath.Base(doc.ID), ext))
	}
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+ext)
}

// unfence returns the YAML inside the body's code fence, or the body itself
// when it has none.
func unfence(body string) string {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, strings.TrimSpace(fenceOpen)) {
		return body
	}
	body = strings.TrimPrefix(body, strings.TrimSpace(fenceOpen))
	return strings.TrimSuffix(body, fenceClose)
}
