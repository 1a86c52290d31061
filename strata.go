package strata

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/aretw0/strata/pkg/layout"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/session"
	"github.com/aretw0/strata/pkg/tree"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Editor is the high-level entry point for the Strata library.
// It edits stored pipelines through a session manager, so concurrent edits
// of one pipeline are serialized and each edit can be undone.
type Editor struct {
	store        ports.PipelineStore
	sessions     *session.Manager
	registry     ports.ElementRegistry
	locker       ports.DistributedLocker
	logger       *slog.Logger
	metrics      *metrics.Metrics
	registerer   prometheus.Registerer
	historyLimit int
	newID        func() string
}

// Option defines a functional option for configuring the Editor.
type Option func(*Editor)

// WithStore sets the pipeline store. The default keeps documents in memory.
func WithStore(store ports.PipelineStore) Option {
	return func(e *Editor) {
		e.store = store
	}
}

// WithRegistry sets the element type catalogue. The default is registry.Default().
func WithRegistry(reg ports.ElementRegistry) Option {
	return func(e *Editor) {
		e.registry = reg
	}
}

// WithLogger sets a custom structured logger for the editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithLocker coordinates edits with other editor instances.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Editor) {
		e.locker = locker
	}
}

// WithMetrics registers Prometheus collectors for store calls and edits with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Editor) {
		e.registerer = reg
	}
}

// WithHistoryLimit sets how many undo steps are kept per pipeline.
func WithHistoryLimit(n int) Option {
	return func(e *Editor) {
		e.historyLimit = n
	}
}

// New initializes a new Editor.
func New(opts ...Option) (*Editor, error) {
	e := &Editor{historyLimit: session.DefaultHistoryLimit, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.registry == nil {
		e.registry = registry.Default()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	mws := []middleware.Middleware{middleware.NewLogging(e.logger)}
	if e.registerer != nil {
		e.metrics = metrics.New(e.registerer)
		mws = append(mws, middleware.NewMetrics(e.metrics))
	}
	e.store = middleware.Chain(e.store, mws...)

	sessOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithHistoryLimit(e.historyLimit),
	}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessOpts...)

	return e, nil
}

// Registry returns the element type catalogue in use.
func (e *Editor) Registry() ports.ElementRegistry {
	return e.registry
}

// Create stores a new pipeline document and returns it.
//
// Without a parent the pipeline starts with a single layer holding the Source
// element. With a parent, the parent's layers are inherited and an empty own
// layer is appended.
func (e *Editor) Create(ctx context.Context, name, parentID string) (*domain.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: pipeline name is required", domain.ErrInvalidOperation)
	}

	doc := &domain.Document{ID: e.newID(), Name: name, ParentID: parentID}
	if parentID == "" {
		doc.ConfigStack = domain.ConfigStack{{
			Elements: domain.AddRemove[domain.Element]{Add: []domain.Element{
				{ID: tree.SourceElementID, Type: tree.SourceElementID},
			}},
		}}
	} else {
		parent, err := e.sessions.Load(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent pipeline %s: %w", parentID, err)
		}
		doc.Folder = parent.Folder
		doc.ConfigStack = append(parent.ConfigStack.Clone(), domain.StackLayer{})
	}

	if err := e.sessions.Save(ctx, doc); err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "pipeline created", "pipeline_id", doc.ID, "name", name, "parent_id", parentID)
	return doc, nil
}

// Document returns the stored document.
func (e *Editor) Document(ctx context.Context, id string) (*domain.Document, error) {
	return e.sessions.Load(ctx, id)
}

// Open returns the resolved pipeline.
func (e *Editor) Open(ctx context.Context, id string) (domain.Pipeline, error) {
	return e.sessions.Open(ctx, id)
}

// List returns the stored pipeline ids.
func (e *Editor) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete removes the pipeline and its undo history.
func (e *Editor) Delete(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}

// CreateElement adds an element of a registered type below parentID.
// Names are compared case-insensitively against every name the pipeline has used.
func (e *Editor) CreateElement(ctx context.Context, id, parentID, elementType, name string) (domain.Pipeline, error) {
	return e.apply(ctx, "create_element", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		if _, ok := e.registry.Lookup(elementType); !ok {
			return domain.Pipeline{}, fmt.Errorf("%w: unknown element type %q", domain.ErrInvalidOperation, elementType)
		}
		if slices.Contains(edit.AllElementNames(p), strings.ToLower(name)) {
			return domain.Pipeline{}, fmt.Errorf("%w: element name %q is already used", domain.ErrConflict, name)
		}
		return edit.CreateElement(p, parentID, elementType, name)
	})
}

// RemoveElement deletes an element; inherited elements go to the recycle bin.
func (e *Editor) RemoveElement(ctx context.Context, id, elementID string) (domain.Pipeline, error) {
	return e.apply(ctx, "remove_element", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.RemoveElement(p, elementID)
	})
}

// MoveElement re-parents an element.
func (e *Editor) MoveElement(ctx context.Context, id, elementID, newParentID string) (domain.Pipeline, error) {
	return e.apply(ctx, "move_element", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.MoveElement(p, elementID, newParentID)
	})
}

// SetProperty overrides a property in the own layer.
//
// When the element type is registered and declares properties, the name must
// be one of them and kind must match its declared kind.
func (e *Editor) SetProperty(ctx context.Context, id, elementID, name string, kind domain.PropertyKind, raw any) (domain.Pipeline, error) {
	return e.apply(ctx, "set_property", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		if err := e.checkProperty(p, elementID, name, kind); err != nil {
			return domain.Pipeline{}, err
		}
		return edit.SetProperty(p, elementID, name, kind, raw)
	})
}

func (e *Editor) checkProperty(p domain.Pipeline, elementID, name string, kind domain.PropertyKind) error {
	el, ok := domain.NewIndex(p.Merged).Element(elementID)
	if !ok {
		return fmt.Errorf("%w: element %q", domain.ErrNotFound, elementID)
	}
	def, ok := e.registry.Lookup(el.Type)
	if !ok || len(def.Properties) == 0 {
		return nil
	}
	pd, ok := def.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s has no property %q", domain.ErrInvalidOperation, el.Type, name)
	}
	if pd.Kind != kind {
		return fmt.Errorf("%w: %s.%s is %s, not %s", domain.ErrInvalidOperation, el.Type, name, pd.Kind, kind)
	}
	return nil
}

// RevertToParent restores the inherited value of a property.
func (e *Editor) RevertToParent(ctx context.Context, id, elementID, name string) (domain.Pipeline, error) {
	return e.apply(ctx, "revert_to_parent", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.RevertToParent(p, elementID, name)
	})
}

// RevertToDefault leaves a property without any value.
func (e *Editor) RevertToDefault(ctx context.Context, id, elementID, name string) (domain.Pipeline, error) {
	return e.apply(ctx, "revert_to_default", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.RevertToDefault(p, elementID, name)
	})
}

// ReinstateElement takes an element out of the recycle bin.
func (e *Editor) ReinstateElement(ctx context.Context, id, elementID, parentID string) (domain.Pipeline, error) {
	return e.apply(ctx, "reinstate_element", id, func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.ReinstateElement(p, elementID, parentID)
	})
}

// Undo reverts the last edit made through this editor.
func (e *Editor) Undo(ctx context.Context, id string) (domain.Pipeline, error) {
	p, err := e.sessions.Undo(ctx, id)
	e.observe(ctx, "undo", id, err)
	return p, err
}

// Redo re-applies the last undone edit.
func (e *Editor) Redo(ctx context.Context, id string) (domain.Pipeline, error) {
	p, err := e.sessions.Redo(ctx, id)
	e.observe(ctx, "redo", id, err)
	return p, err
}

// Tree returns the element tree of the pipeline; nil when it has no elements.
func (e *Editor) Tree(ctx context.Context, id string) (*domain.TreeNode, error) {
	p, err := e.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return tree.Build(p.Merged)
}

// Layout places the pipeline's elements on a grid.
func (e *Editor) Layout(ctx context.Context, id string, o domain.Orientation) (domain.Layout, error) {
	root, err := e.Tree(ctx, id)
	if err != nil {
		return nil, err
	}
	return layout.Compute(root, o)
}

// Bin lists the recycle bin of the pipeline.
func (e *Editor) Bin(ctx context.Context, id string) ([]edit.RecycleBinItem, error) {
	p, err := e.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return edit.BinItems(p, e.registry), nil
}

func (e *Editor) apply(ctx context.Context, opName, id string, op session.Operation) (domain.Pipeline, error) {
	p, err := e.sessions.Apply(ctx, id, op)
	e.observe(ctx, opName, id, err)
	return p, err
}

func (e *Editor) observe(ctx context.Context, opName, id string, err error) {
	if e.metrics != nil {
		e.metrics.ObserveEdit(opName, err)
	}
	if err != nil {
		e.logger.DebugContext(ctx, "edit rejected", "op", opName, "pipeline_id", id, "err", err, "kind", domain.Kind(err))
		return
	}
	e.logger.InfoContext(ctx, "edit applied", "op", opName, "pipeline_id", id)
}
