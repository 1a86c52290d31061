// Package http exposes an Editor over a JSON API routed with chi.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/aretw0/strata/pkg/layout"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var rawSpec []byte

// Editor is the part of strata.Editor the API serves.
type Editor interface {
	Create(ctx context.Context, name, parentID string) (*domain.Document, error)
	Document(ctx context.Context, id string) (*domain.Document, error)
	Open(ctx context.Context, id string) (domain.Pipeline, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error

	CreateElement(ctx context.Context, id, parentID, elementType, name string) (domain.Pipeline, error)
	RemoveElement(ctx context.Context, id, elementID string) (domain.Pipeline, error)
	MoveElement(ctx context.Context, id, elementID, newParentID string) (domain.Pipeline, error)
	SetProperty(ctx context.Context, id, elementID, name string, kind domain.PropertyKind, raw any) (domain.Pipeline, error)
	RevertToParent(ctx context.Context, id, elementID, name string) (domain.Pipeline, error)
	RevertToDefault(ctx context.Context, id, elementID, name string) (domain.Pipeline, error)
	ReinstateElement(ctx context.Context, id, elementID, parentID string) (domain.Pipeline, error)
	Undo(ctx context.Context, id string) (domain.Pipeline, error)
	Redo(ctx context.Context, id string) (domain.Pipeline, error)

	Tree(ctx context.Context, id string) (*domain.TreeNode, error)
	Layout(ctx context.Context, id string, o domain.Orientation) (domain.Layout, error)
	Bin(ctx context.Context, id string) ([]edit.RecycleBinItem, error)
}

var _ Editor = (*strata.Editor)(nil)

// Server holds the handlers of the API.
type Server struct {
	Editor  Editor
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
	validate *validator.Validate
	spec     *openapi3.T
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets what /metrics exposes. The default is prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler for editor.
func NewHandler(editor Editor, opts ...Option) (http.Handler, error) {
	s := &Server{
		Editor:   editor,
		Streams:  NewStreamManager(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s.spec = spec

	r := chi.NewRouter()
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/pipelines", func(r chi.Router) {
		r.Get("/", s.ListPipelines)
		r.Post("/", s.CreatePipeline)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetPipeline)
			r.Delete("/", s.DeletePipeline)
			r.Get("/tree", s.GetTree)
			r.Get("/layout", s.GetLayout)
			r.Get("/bin", s.GetBin)
			r.Get("/events", s.SubscribeEvents)
			r.Post("/bin/{element}/restore", s.RestoreElement)
			r.Post("/elements", s.CreateElement)
			r.Delete("/elements/{element}", s.RemoveElement)
			r.Post("/elements/{element}/move", s.MoveElement)
			r.Put("/elements/{element}/properties/{name}", s.SetProperty)
			r.Post("/elements/{element}/properties/{name}/revert", s.RevertProperty)
			r.Post("/undo", s.Undo)
			r.Post("/redo", s.Redo)
		})
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "strata-http",
		"version":     strata.Version,
		"api_version": apiVersion,
	})
}

// ListPipelines handles GET /pipelines.
func (s *Server) ListPipelines(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Editor.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// CreatePipeline handles POST /pipelines.
func (s *Server) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var body CreatePipelineRequest
	if !s.decode(w, r, &body) {
		return
	}
	doc, err := s.Editor.Create(r.Context(), body.Name, body.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

// GetPipeline handles GET /pipelines/{id}.
func (s *Server) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.Editor.Document(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Editor.Open(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PipelineView{Document: doc, Merged: p.Merged})
}

// DeletePipeline handles DELETE /pipelines/{id}.
func (s *Server) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.Editor.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTree handles GET /pipelines/{id}/tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	root, err := s.Editor.Tree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, root)
}

// GetLayout handles GET /pipelines/{id}/layout?orientation=.
func (s *Server) GetLayout(w http.ResponseWriter, r *http.Request) {
	orientation := string(domain.Horizontal)
	if err := runtime.BindQueryParameter("form", true, false, "orientation", r.URL.Query(), &orientation); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid orientation: %w", err))
		return
	}
	o, err := layout.ParseOrientation(orientation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	grid, err := s.Editor.Layout(r.Context(), chi.URLParam(r, "id"), o)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if grid == nil {
		grid = domain.Layout{}
	}
	s.writeJSON(w, http.StatusOK, grid)
}

// GetBin handles GET /pipelines/{id}/bin.
func (s *Server) GetBin(w http.ResponseWriter, r *http.Request) {
	items, err := s.Editor.Bin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []edit.RecycleBinItem{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

// RestoreElement handles POST /pipelines/{id}/bin/{element}/restore.
func (s *Server) RestoreElement(w http.ResponseWriter, r *http.Request) {
	var body ParentRequest
	if !s.decode(w, r, &body) {
		return
	}
	element := chi.URLParam(r, "element")
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		return s.Editor.ReinstateElement(ctx, id, element, body.ParentID)
	})
}

// CreateElement handles POST /pipelines/{id}/elements.
func (s *Server) CreateElement(w http.ResponseWriter, r *http.Request) {
	var body CreateElementRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		return s.Editor.CreateElement(ctx, id, body.ParentID, body.Type, body.Name)
	})
}

// RemoveElement handles DELETE /pipelines/{id}/elements/{element}.
func (s *Server) RemoveElement(w http.ResponseWriter, r *http.Request) {
	element := chi.URLParam(r, "element")
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		return s.Editor.RemoveElement(ctx, id, element)
	})
}

// MoveElement handles POST /pipelines/{id}/elements/{element}/move.
func (s *Server) MoveElement(w http.ResponseWriter, r *http.Request) {
	var body ParentRequest
	if !s.decode(w, r, &body) {
		return
	}
	element := chi.URLParam(r, "element")
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		return s.Editor.MoveElement(ctx, id, element, body.ParentID)
	})
}

// SetProperty handles PUT /pipelines/{id}/elements/{element}/properties/{name}.
func (s *Server) SetProperty(w http.ResponseWriter, r *http.Request) {
	var body SetPropertyRequest
	if !s.decode(w, r, &body) {
		return
	}
	kind, err := domain.ParsePropertyKind(body.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	element, name := chi.URLParam(r, "element"), chi.URLParam(r, "name")
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		return s.Editor.SetProperty(ctx, id, element, name, kind, body.Value)
	})
}

// RevertProperty handles POST /pipelines/{id}/elements/{element}/properties/{name}/revert.
func (s *Server) RevertProperty(w http.ResponseWriter, r *http.Request) {
	var body RevertRequest
	if !s.decode(w, r, &body) {
		return
	}
	element, name := chi.URLParam(r, "element"), chi.URLParam(r, "name")
	s.edit(w, r, func(ctx context.Context, id string) (domain.Pipeline, error) {
		if body.To == RevertToDefault {
			return s.Editor.RevertToDefault(ctx, id, element, name)
		}
		return s.Editor.RevertToParent(ctx, id, element, name)
	})
}

// Undo handles POST /pipelines/{id}/undo.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, s.Editor.Undo)
}

// Redo handles POST /pipelines/{id}/redo.
func (s *Server) Redo(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, s.Editor.Redo)
}

// edit runs op on the pipeline named in the path, answers with the result and
// its diff, and broadcasts the diff to subscribers of the pipeline.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (domain.Pipeline, error)) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	before, err := s.Editor.Open(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	after, err := op(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	diff := domain.Diff(before.Merged, after.Merged)
	if diff != nil {
		if payload, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(id, string(payload))
		}
	}
	s.writeJSON(w, http.StatusOK, EditResponse{Pipeline: after, Diff: diff})
}

// decode reads and validates a JSON body. It answers 400 and returns false
// when the body is unusable. Numbers stay json.Number so long values keep
// every digit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			err = fmt.Errorf("field %s failed %q validation", fe.Field(), fe.Tag())
		}
		s.writeBadRequest(w, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: CodeBadRequest, Message: err.Error()})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Kind(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	s.writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch domain.Kind(err) {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeInvalidOperation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// StreamManager fans edit diffs out to the event streams of a pipeline.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a channel for pipelineID. Call the returned func to drop it.
func (sm *StreamManager) Subscribe(pipelineID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[pipelineID]; !ok {
		sm.subscribers[pipelineID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[pipelineID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[pipelineID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, pipelineID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of pipelineID. Slow subscribers miss it.
func (sm *StreamManager) Broadcast(pipelineID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[pipelineID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SubscribeEvents handles GET /pipelines/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE client subscribed", "pipeline_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "pipeline_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
