package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.PipelineStore
	logger *slog.Logger
}

// NewLogging logs every store call at debug level, and failures at warn.
// A missing document is not a failure.
func NewLogging(logger *slog.Logger) Middleware {
	return func(next ports.PipelineStore) ports.PipelineStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) log(ctx context.Context, op, id string, start time.Time, err error) {
	attrs := []any{"op", op, "duration", time.Since(start)}
	if id != "" {
		attrs = append(attrs, "pipeline_id", id)
	}
	if err != nil && !errors.Is(err, domain.ErrPipelineNotFound) {
		m.logger.WarnContext(ctx, "store call failed", append(attrs, "err", err)...)
		return
	}
	m.logger.DebugContext(ctx, "store call", attrs...)
}

func (m *loggingMiddleware) Save(ctx context.Context, doc *domain.Document) error {
	start := time.Now()
	err := m.next.Save(ctx, doc)
	id := ""
	if doc != nil {
		id = doc.ID
	}
	m.log(ctx, "save", id, start, err)
	return err
}

func (m *loggingMiddleware) Load(ctx context.Context, id string) (*domain.Document, error) {
	start := time.Now()
	doc, err := m.next.Load(ctx, id)
	m.log(ctx, "load", id, start, err)
	return doc, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.next.Delete(ctx, id)
	m.log(ctx, "delete", id, start, err)
	return err
}

func (m *loggingMiddleware) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := m.next.List(ctx)
	m.log(ctx, "list", "", start, err)
	return ids, err
}
