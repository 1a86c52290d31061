// Package mcp exposes pipeline editing as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/layout"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PipelinesURI lists the stored pipeline ids.
const PipelinesURI = "strata://pipelines"

// Editor is the part of strata.Editor the tools use.
type Editor interface {
	Document(ctx context.Context, id string) (*domain.Document, error)
	Open(ctx context.Context, id string) (domain.Pipeline, error)
	List(ctx context.Context) ([]string, error)

	CreateElement(ctx context.Context, id, parentID, elementType, name string) (domain.Pipeline, error)
	RemoveElement(ctx context.Context, id, elementID string) (domain.Pipeline, error)
	MoveElement(ctx context.Context, id, elementID, newParentID string) (domain.Pipeline, error)
	SetProperty(ctx context.Context, id, elementID, name string, kind domain.PropertyKind, raw any) (domain.Pipeline, error)
	RevertToParent(ctx context.Context, id, elementID, name string) (domain.Pipeline, error)
	RevertToDefault(ctx context.Context, id, elementID, name string) (domain.Pipeline, error)

	Layout(ctx context.Context, id string, o domain.Orientation) (domain.Layout, error)
}

var _ Editor = (*strata.Editor)(nil)

// PipelineResponse is returned by get_pipeline.
type PipelineResponse struct {
	Document *domain.Document `json:"document" jsonschema_description:"The stored pipeline document"`
	Merged   domain.MergedView `json:"merged" jsonschema_description:"Elements, links and properties after folding every layer"`
}

// EditResponse is returned by every editing tool.
type EditResponse struct {
	Pipeline domain.Pipeline    `json:"pipeline" jsonschema_description:"The pipeline after the edit"`
	Diff     *domain.MergedDiff `json:"diff,omitempty" jsonschema_description:"What the edit changed in the merged view"`
}

// LayoutResponse is returned by get_layout.
type LayoutResponse struct {
	Layout domain.Layout `json:"layout" jsonschema_description:"Grid position of every element id, starting at 1"`
}

type pipelineArgs struct {
	PipelineID string `json:"pipeline_id"`
}

type createElementArgs struct {
	PipelineID string `json:"pipeline_id"`
	ParentID   string `json:"parent_id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
}

type elementArgs struct {
	PipelineID string `json:"pipeline_id"`
	ElementID  string `json:"element_id"`
	ParentID   string `json:"parent_id,omitempty"`
}

type propertyArgs struct {
	PipelineID string `json:"pipeline_id"`
	ElementID  string `json:"element_id"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Value      any    `json:"value,omitempty"`
	To         string `json:"to,omitempty"`
}

type layoutArgs struct {
	PipelineID  string `json:"pipeline_id"`
	Orientation string `json:"orientation,omitempty"`
}

// Server wraps an Editor and exposes it as an MCP server.
type Server struct {
	editor    Editor
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server. A nil logger discards.
func NewServer(editor Editor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		editor:    editor,
		logger:    logger,
		mcpServer: server.NewMCPServer("strata-mcp", strata.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_pipelines
	s.mcpServer.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List the ids of every stored pipeline."),
	), s.handleListPipelines)

	// TOOL: get_pipeline
	s.mcpServer.AddTool(mcp.NewTool("get_pipeline",
		mcp.WithDescription("Get a pipeline document and its merged view."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithOutputSchema[PipelineResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetPipeline))

	// TOOL: create_element
	s.mcpServer.AddTool(mcp.NewTool("create_element",
		mcp.WithDescription("Add an element of a registered type below an existing element."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Id of the element the new one is linked from")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Element type, e.g. XMLParser")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Id of the new element, unique ignoring case")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateElement))

	// TOOL: remove_element
	s.mcpServer.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("Remove an element. Inherited elements go to the recycle bin."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleRemoveElement))

	// TOOL: move_element
	s.mcpServer.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Link an element below a different parent."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("New parent element id")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleMoveElement))

	// TOOL: set_property
	s.mcpServer.AddTool(mcp.NewTool("set_property",
		mcp.WithDescription("Override a property of an element in the pipeline's own layer."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Property name")),
		mcp.WithString("type", mcp.Required(), mcp.Enum(kindNames()...), mcp.Description("Property type")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value; entity references are written type:uuid[:name]")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetProperty))

	// TOOL: revert_property
	s.mcpServer.AddTool(mcp.NewTool("revert_property",
		mcp.WithDescription("Revert a property to the inherited value (parent) or to no value at all (default)."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Element id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Property name")),
		mcp.WithString("to", mcp.Enum("parent", "default"), mcp.Description("Revert target, parent when omitted")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleRevertProperty))

	// TOOL: get_layout
	s.mcpServer.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Get grid positions for drawing the pipeline tree."),
		mcp.WithString("pipeline_id", mcp.Required(), mcp.Description("Pipeline id")),
		mcp.WithString("orientation", mcp.Enum(string(domain.Horizontal), string(domain.Vertical)), mcp.Description("Growth axis, horizontal when omitted")),
		mcp.WithOutputSchema[LayoutResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetLayout))
}

func kindNames() []string {
	names := make([]string, len(domain.Kinds))
	for i, k := range domain.Kinds {
		names[i] = string(k)
	}
	return names
}

func (s *Server) handleListPipelines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.editor.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetPipeline(ctx context.Context, request mcp.CallToolRequest, args pipelineArgs) (PipelineResponse, error) {
	doc, err := s.editor.Document(ctx, args.PipelineID)
	if err != nil {
		return PipelineResponse{}, err
	}
	p, err := s.editor.Open(ctx, args.PipelineID)
	if err != nil {
		return PipelineResponse{}, err
	}
	return PipelineResponse{Document: doc, Merged: p.Merged}, nil
}

func (s *Server) handleCreateElement(ctx context.Context, request mcp.CallToolRequest, args createElementArgs) (EditResponse, error) {
	return s.edit(ctx, "create_element", args.PipelineID, func() (domain.Pipeline, error) {
		return s.editor.CreateElement(ctx, args.PipelineID, args.ParentID, args.Type, args.Name)
	})
}

func (s *Server) handleRemoveElement(ctx context.Context, request mcp.CallToolRequest, args elementArgs) (EditResponse, error) {
	return s.edit(ctx, "remove_element", args.PipelineID, func() (domain.Pipeline, error) {
		return s.editor.RemoveElement(ctx, args.PipelineID, args.ElementID)
	})
}

func (s *Server) handleMoveElement(ctx context.Context, request mcp.CallToolRequest, args elementArgs) (EditResponse, error) {
	return s.edit(ctx, "move_element", args.PipelineID, func() (domain.Pipeline, error) {
		return s.editor.MoveElement(ctx, args.PipelineID, args.ElementID, args.ParentID)
	})
}

func (s *Server) handleSetProperty(ctx context.Context, request mcp.CallToolRequest, args propertyArgs) (EditResponse, error) {
	kind, err := domain.ParsePropertyKind(args.Type)
	if err != nil {
		return EditResponse{}, err
	}
	return s.edit(ctx, "set_property", args.PipelineID, func() (domain.Pipeline, error) {
		return s.editor.SetProperty(ctx, args.PipelineID, args.ElementID, args.Name, kind, args.Value)
	})
}

func (s *Server) handleRevertProperty(ctx context.Context, request mcp.CallToolRequest, args propertyArgs) (EditResponse, error) {
	return s.edit(ctx, "revert_property", args.PipelineID, func() (domain.Pipeline, error) {
		switch args.To {
		case "", "parent":
			return s.editor.RevertToParent(ctx, args.PipelineID, args.ElementID, args.Name)
		case "default":
			return s.editor.RevertToDefault(ctx, args.PipelineID, args.ElementID, args.Name)
		}
		return domain.Pipeline{}, fmt.Errorf("%w: unknown revert target %q", domain.ErrInvalidOperation, args.To)
	})
}

func (s *Server) handleGetLayout(ctx context.Context, request mcp.CallToolRequest, args layoutArgs) (LayoutResponse, error) {
	orientation := domain.Horizontal
	if args.Orientation != "" {
		o, err := layout.ParseOrientation(args.Orientation)
		if err != nil {
			return LayoutResponse{}, err
		}
		orientation = o
	}
	grid, err := s.editor.Layout(ctx, args.PipelineID, orientation)
	if err != nil {
		return LayoutResponse{}, err
	}
	if grid == nil {
		grid = domain.Layout{}
	}
	return LayoutResponse{Layout: grid}, nil
}

// edit runs op and reports it together with its effect on the merged view.
func (s *Server) edit(ctx context.Context, tool, id string, op func() (domain.Pipeline, error)) (EditResponse, error) {
	before, err := s.editor.Open(ctx, id)
	if err != nil {
		return EditResponse{}, err
	}
	after, err := op()
	if err != nil {
		s.logger.Warn("MCP edit rejected", "tool", tool, "pipeline_id", id, "code", domain.Kind(err), "err", err)
		return EditResponse{}, fmt.Errorf("%s: %s: %w", tool, domain.Kind(err), err)
	}
	return EditResponse{Pipeline: after, Diff: domain.Diff(before.Merged, after.Merged)}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: strata://pipelines
	s.mcpServer.AddResource(mcp.NewResource(PipelinesURI, "Stored pipelines",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.editor.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list pipelines: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      PipelinesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
