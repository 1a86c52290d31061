package middleware

import (
	"context"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// StoreRecorder receives the outcome of each store call.
// *metrics.Metrics implements it.
type StoreRecorder interface {
	ObserveStore(op string, d time.Duration, err error)
}

type metricsMiddleware struct {
	next     ports.PipelineStore
	recorder StoreRecorder
}

// NewMetrics reports the duration and result of every store call to recorder.
func NewMetrics(recorder StoreRecorder) Middleware {
	return func(next ports.PipelineStore) ports.PipelineStore {
		return &metricsMiddleware{next: next, recorder: recorder}
	}
}

func (m *metricsMiddleware) Save(ctx context.Context, doc *domain.Document) error {
	start := time.Now()
	err := m.next.Save(ctx, doc)
	m.recorder.ObserveStore("save", time.Since(start), err)
	return err
}

func (m *metricsMiddleware) Load(ctx context.Context, id string) (*domain.Document, error) {
	start := time.Now()
	doc, err := m.next.Load(ctx, id)
	m.recorder.ObserveStore("load", time.Since(start), err)
	return doc, err
}

func (m *metricsMiddleware) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, id)
	m.recorder.ObserveStore("delete", time.Since(start), err)
	return err
}

func (m *metricsMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.recorder.ObserveStore("list", time.Since(start), err)
	return ids, err
}
