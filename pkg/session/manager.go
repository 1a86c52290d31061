package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/stack"
)

// DefaultHistoryLimit is the number of undo steps kept per pipeline.
const DefaultHistoryLimit = 50

// lockTTL bounds how long a crashed replica can hold a distributed lock.
const lockTTL = 30 * time.Second

// ErrNothingToUndo and ErrNothingToRedo are returned when the history is empty.
var (
	ErrNothingToUndo = fmt.Errorf("%w: nothing to undo", domain.ErrInvalidOperation)
	ErrNothingToRedo = fmt.Errorf("%w: nothing to redo", domain.ErrInvalidOperation)
)

// Operation is one edit of a pipeline, typically a closure over a pkg/edit function.
type Operation func(domain.Pipeline) (domain.Pipeline, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type history struct {
	undo []domain.ConfigStack
	redo []domain.ConfigStack
}

// Manager orchestrates pipeline access, ensuring safe concurrent edits.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.PipelineStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	histMu       sync.Mutex
	history      map[string]*history
	historyLimit int

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHistoryLimit sets how many undo steps are kept per pipeline.
// Zero disables undo.
func WithHistoryLimit(n int) Option {
	return func(m *Manager) {
		m.historyLimit = max(n, 0)
	}
}

// WithClock overrides the time source used for Document.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Manager with the given persistence store.
func NewManager(store ports.PipelineStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		locks:        make(map[string]*lockEntry),
		history:      make(map[string]*history),
		historyLimit: DefaultHistoryLimit,
		logger:       logging.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes a function while holding the lock for the pipeline.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"pipeline_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves a stored document.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Document, error) {
	var doc *domain.Document
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, id)
		return err
	})
	return doc, err
}

// Open loads a document and resolves its config stack.
func (m *Manager) Open(ctx context.Context, id string) (domain.Pipeline, error) {
	doc, err := m.Load(ctx, id)
	if err != nil {
		return domain.Pipeline{}, err
	}
	return stack.ResolvePipeline(doc.ConfigStack), nil
}

// Save persists a document, stamping UpdatedAt.
func (m *Manager) Save(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document cannot be nil", domain.ErrInvalidOperation)
	}
	return m.WithLock(ctx, doc.ID, func(ctx context.Context) error {
		doc.UpdatedAt = m.now().UTC()
		return m.store.Save(ctx, doc)
	})
}

// Delete removes the document and forgets its history.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
		m.forget(id)
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Apply runs op on the stored pipeline and saves the result.
// The previous config stack becomes the newest undo step and the redo
// history is cleared. Nothing is saved when op fails.
func (m *Manager) Apply(ctx context.Context, id string, op Operation) (domain.Pipeline, error) {
	var result domain.Pipeline
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		doc, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		before := stack.ResolvePipeline(doc.ConfigStack)

		after, err := op(before)
		if err != nil {
			return err
		}

		if err := m.persist(ctx, doc, after.ConfigStack); err != nil {
			return err
		}
		m.record(id, before.ConfigStack)

		if diff := domain.Diff(before.Merged, after.Merged); !diff.IsEmpty() {
			m.logger.DebugContext(ctx, "pipeline edited",
				"pipeline_id", id,
				"added", diff.AddedElements,
				"removed", diff.RemovedElements,
				"relinked", len(diff.Relinked),
				"changed_properties", len(diff.ChangedProperties),
				"removed_properties", len(diff.RemovedProperties),
			)
		}
		result = after
		return nil
	})
	return result, err
}

// Undo restores the config stack saved before the last applied edit.
func (m *Manager) Undo(ctx context.Context, id string) (domain.Pipeline, error) {
	return m.step(ctx, id, true)
}

// Redo re-applies the last undone edit.
func (m *Manager) Redo(ctx context.Context, id string) (domain.Pipeline, error) {
	return m.step(ctx, id, false)
}

// CanUndo reports whether Undo has a step to restore.
func (m *Manager) CanUndo(id string) bool {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	h, ok := m.history[id]
	return ok && len(h.undo) > 0
}

// CanRedo reports whether Redo has a step to restore.
func (m *Manager) CanRedo(id string) bool {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	h, ok := m.history[id]
	return ok && len(h.redo) > 0
}

func (m *Manager) step(ctx context.Context, id string, undo bool) (domain.Pipeline, error) {
	var result domain.Pipeline
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		doc, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}

		target, ok := m.pop(id, undo)
		if !ok {
			if undo {
				return ErrNothingToUndo
			}
			return ErrNothingToRedo
		}

		current := doc.ConfigStack
		if err := m.persist(ctx, doc, target); err != nil {
			m.push(id, undo, target)
			return err
		}
		m.push(id, !undo, current)

		result = stack.ResolvePipeline(target)
		return nil
	})
	return result, err
}

func (m *Manager) persist(ctx context.Context, doc *domain.Document, s domain.ConfigStack) error {
	next := doc.Clone()
	next.ConfigStack = s
	next.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save pipeline %s: %w", doc.ID, err)
	}
	return nil
}

// record pushes an undo step and clears the redo history.
func (m *Manager) record(id string, s domain.ConfigStack) {
	if m.historyLimit == 0 {
		return
	}
	m.histMu.Lock()
	defer m.histMu.Unlock()

	h := m.entry(id)
	h.undo = appendBounded(h.undo, s.Clone(), m.historyLimit)
	h.redo = nil
}

func (m *Manager) push(id string, undo bool, s domain.ConfigStack) {
	if m.historyLimit == 0 {
		return
	}
	m.histMu.Lock()
	defer m.histMu.Unlock()

	h := m.entry(id)
	if undo {
		h.undo = appendBounded(h.undo, s, m.historyLimit)
	} else {
		h.redo = appendBounded(h.redo, s, m.historyLimit)
	}
}

func (m *Manager) pop(id string, undo bool) (domain.ConfigStack, bool) {
	m.histMu.Lock()
	defer m.histMu.Unlock()

	h, ok := m.history[id]
	if !ok {
		return nil, false
	}
	list := &h.redo
	if undo {
		list = &h.undo
	}
	if len(*list) == 0 {
		return nil, false
	}
	last := (*list)[len(*list)-1]
	*list = (*list)[:len(*list)-1]
	return last, true
}

// entry must be called with histMu held.
func (m *Manager) entry(id string) *history {
	h, ok := m.history[id]
	if !ok {
		h = &history{}
		m.history[id] = h
	}
	return h
}

func (m *Manager) forget(id string) {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	delete(m.history, id)
}

func appendBounded(list []domain.ConfigStack, s domain.ConfigStack, limit int) []domain.ConfigStack {
	list = append(list, s)
	if over := len(list) - limit; over > 0 {
		list = append([]domain.ConfigStack(nil), list[over:]...)
	}
	return list
}
