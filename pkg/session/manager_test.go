package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/aretw0/strata/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Save(ctx context.Context, doc *domain.Document) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, doc)
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func seed(t *testing.T, mgr *session.Manager, id string) {
	t.Helper()
	p := testutils.ParentChildPipeline()
	require.NoError(t, mgr.Save(context.Background(), &domain.Document{ID: id, Name: id, ConfigStack: p.ConfigStack}))
}

func addElement(name string) session.Operation {
	return func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.CreateElement(p, "Source", "XMLWriter", name)
	}
}

func TestManager_ApplySerializesEdits(t *testing.T) {
	mgr := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()
	seed(t, mgr, "p1")

	names := []string{"w0", "w1", "w2", "w3", "w4", "w5", "w6", "w7"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := mgr.Apply(ctx, "p1", addElement(name))
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	p, err := mgr.Open(ctx, "p1")
	require.NoError(t, err)
	idx := domain.NewIndex(p.Merged)
	for _, name := range names {
		_, ok := idx.Element(name)
		assert.True(t, ok, "edit %s was lost", name)
	}
	testutils.RequireConsistent(t, p)
}

func TestManager_ApplyFailureSavesNothing(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	seed(t, mgr, "p1")

	_, err := mgr.Apply(ctx, "p1", addElement("parser"))
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.False(t, mgr.CanUndo("p1"))

	_, err = mgr.Apply(ctx, "missing", addElement("x"))
	assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
}

func TestManager_UndoRedo(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	seed(t, mgr, "p1")

	_, err := mgr.Undo(ctx, "p1")
	assert.ErrorIs(t, err, session.ErrNothingToUndo)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = mgr.Apply(ctx, "p1", addElement("a"))
	require.NoError(t, err)
	_, err = mgr.Apply(ctx, "p1", func(p domain.Pipeline) (domain.Pipeline, error) {
		return edit.SetProperty(p, "parser", "maxSize", domain.KindInteger, 99)
	})
	require.NoError(t, err)

	p, err := mgr.Undo(ctx, "p1")
	require.NoError(t, err)
	prop, ok := edit.EffectiveValue(p, "parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(10), prop.Value)

	p, err = mgr.Undo(ctx, "p1")
	require.NoError(t, err)
	_, ok = domain.NewIndex(p.Merged).Element("a")
	assert.False(t, ok)
	assert.False(t, mgr.CanUndo("p1"))
	assert.True(t, mgr.CanRedo("p1"))

	p, err = mgr.Redo(ctx, "p1")
	require.NoError(t, err)
	_, ok = domain.NewIndex(p.Merged).Element("a")
	assert.True(t, ok)

	// A new edit drops the redo history.
	_, err = mgr.Apply(ctx, "p1", addElement("b"))
	require.NoError(t, err)
	_, err = mgr.Redo(ctx, "p1")
	assert.ErrorIs(t, err, session.ErrNothingToRedo)

	// The store holds what Open returns.
	opened, err := mgr.Open(ctx, "p1")
	require.NoError(t, err)
	testutils.RequireConsistent(t, opened)
	assert.Len(t, opened.Merged.Elements, 5)
}

func TestManager_HistoryLimit(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), session.WithHistoryLimit(2))
	ctx := context.Background()
	seed(t, mgr, "p1")

	for _, name := range []string{"a", "b", "c"} {
		_, err := mgr.Apply(ctx, "p1", addElement(name))
		require.NoError(t, err)
	}

	_, err := mgr.Undo(ctx, "p1")
	require.NoError(t, err)
	p, err := mgr.Undo(ctx, "p1")
	require.NoError(t, err)
	_, err = mgr.Undo(ctx, "p1")
	assert.ErrorIs(t, err, session.ErrNothingToUndo)

	_, ok := domain.NewIndex(p.Merged).Element("a")
	assert.True(t, ok, "the oldest step was dropped")
}

func TestManager_SaveStampsUpdatedAt(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mgr := session.NewManager(memory.NewStore(), session.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	seed(t, mgr, "p1")

	doc, err := mgr.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, fixed, doc.UpdatedAt)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	mgr := session.NewManager(memory.NewStore(), session.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)))
	ctx := context.Background()
	seed(t, mgr, "p1")

	err := mgr.WithLock(ctx, "p1", func(ctx context.Context) error {
		assert.True(t, mr.Exists(redis.DefaultPrefix+"lock:p1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:p1"))
}
