package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op  string
	err error
}

type fakeRecorder struct {
	calls []call
}

func (r *fakeRecorder) ObserveStore(op string, _ time.Duration, err error) {
	r.calls = append(r.calls, call{op: op, err: err})
}

func TestMiddleware_Contract(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := middleware.Chain(memory.NewStore(),
		middleware.NewLogging(logger),
		middleware.NewMetrics(&fakeRecorder{}),
	)
	ports.RunPipelineStoreContract(t, store)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := middleware.NewLogging(logger)(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Document{ID: "p1", ConfigStack: domain.ConfigStack{{}}}))
	assert.Contains(t, buf.String(), "op=save")
	assert.Contains(t, buf.String(), "pipeline_id=p1")

	buf.Reset()
	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
	assert.Contains(t, buf.String(), "level=DEBUG", "not found is not a failure")

	buf.Reset()
	err = store.Save(ctx, &domain.Document{})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	store := middleware.NewMetrics(rec)(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Document{ID: "p1", ConfigStack: domain.ConfigStack{{}}}))
	_, err := store.Load(ctx, "nope")
	require.Error(t, err)
	_, err = store.List(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "p1"))

	require.Len(t, rec.calls, 4)
	assert.Equal(t, []string{"save", "load", "list", "delete"},
		[]string{rec.calls[0].op, rec.calls[1].op, rec.calls[2].op, rec.calls[3].op})
	assert.ErrorIs(t, rec.calls[1].err, domain.ErrPipelineNotFound)
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.PipelineStore) ports.PipelineStore {
			order = append(order, name)
			return next
		}
	}
	middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, order, "inner wraps first")
}
