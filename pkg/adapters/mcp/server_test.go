package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	ctx := context.Background()
	editor, err := strata.New()
	require.NoError(t, err)

	base, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, base.ID, "Source", "XMLParser", "parser")
	require.NoError(t, err)
	_, err = editor.SetProperty(ctx, base.ID, "parser", "maxSize", domain.KindInteger, 10)
	require.NoError(t, err)

	child, err := editor.Create(ctx, "events-eu", base.ID)
	require.NoError(t, err)
	return NewServer(editor, nil), child.ID
}

// call sends one JSON-RPC message through the protocol server and returns
// the result object.
func call(t *testing.T, s *Server, method string, params any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	var envelope struct {
		Result map[string]any `json:"result"`
		Error  any            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &envelope))
	require.Nil(t, envelope.Error, string(out))
	return envelope.Result
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)

	result := call(t, s, "tools/list", map[string]any{})
	tools, ok := result["tools"].([]any)
	require.True(t, ok)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{
		"list_pipelines", "get_pipeline", "create_element", "remove_element",
		"move_element", "set_property", "revert_property", "get_layout",
	}, names)
}

func TestToolsCall_SetProperty(t *testing.T) {
	s, id := newTestServer(t)

	result := call(t, s, "tools/call", map[string]any{
		"name": "set_property",
		"arguments": map[string]any{
			"pipeline_id": id,
			"element_id":  "parser",
			"name":        "maxSize",
			"type":        "integer",
			"value":       "20",
		},
	})
	assert.NotEqual(t, true, result["isError"])
	assert.Contains(t, fmt.Sprint(result["structuredContent"]), "maxSize")
}

func TestHandlers(t *testing.T) {
	s, id := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	got, err := s.handleGetPipeline(ctx, req, pipelineArgs{PipelineID: id})
	require.NoError(t, err)
	assert.Len(t, got.Merged.Elements, 2)

	edit, err := s.handleSetProperty(ctx, req, propertyArgs{PipelineID: id, ElementID: "parser", Name: "maxSize", Type: "integer", Value: 20.0})
	require.NoError(t, err)
	require.NotNil(t, edit.Diff)
	assert.Equal(t, []domain.PropertyKey{{Element: "parser", Name: "maxSize"}}, edit.Diff.ChangedProperties)

	edit, err = s.handleRevertProperty(ctx, req, propertyArgs{PipelineID: id, ElementID: "parser", Name: "maxSize"})
	require.NoError(t, err)
	prop, ok := domain.NewIndex(edit.Pipeline.Merged).Property("parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(10), prop.Value)

	edit, err = s.handleRevertProperty(ctx, req, propertyArgs{PipelineID: id, ElementID: "parser", Name: "maxSize", To: "default"})
	require.NoError(t, err)
	assert.Equal(t, []domain.PropertyKey{{Element: "parser", Name: "maxSize"}}, edit.Diff.RemovedProperties)

	_, err = s.handleCreateElement(ctx, req, createElementArgs{PipelineID: id, ParentID: "parser", Type: "XMLWriter", Name: "writer"})
	require.NoError(t, err)
	_, err = s.handleMoveElement(ctx, req, elementArgs{PipelineID: id, ElementID: "writer", ParentID: "Source"})
	require.NoError(t, err)

	grid, err := s.handleGetLayout(ctx, req, layoutArgs{PipelineID: id, Orientation: "vertical"})
	require.NoError(t, err)
	assert.Equal(t, domain.Position{HorizontalPos: 2, VerticalPos: 2}, grid.Layout["writer"])

	edit, err = s.handleRemoveElement(ctx, req, elementArgs{PipelineID: id, ElementID: "parser"})
	require.NoError(t, err)
	assert.Equal(t, []string{"parser"}, edit.Diff.RemovedElements)
}

func TestHandlers_Errors(t *testing.T) {
	s, id := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "unknown pipeline",
			run: func() error {
				_, err := s.handleGetPipeline(ctx, req, pipelineArgs{PipelineID: "nope"})
				return err
			},
			want: domain.ErrPipelineNotFound,
		},
		{
			name: "unknown kind",
			run: func() error {
				_, err := s.handleSetProperty(ctx, req, propertyArgs{PipelineID: id, ElementID: "parser", Name: "maxSize", Type: "float", Value: "1"})
				return err
			},
			want: domain.ErrInvalidOperation,
		},
		{
			name: "unknown revert target",
			run: func() error {
				_, err := s.handleRevertProperty(ctx, req, propertyArgs{PipelineID: id, ElementID: "parser", Name: "maxSize", To: "grandparent"})
				return err
			},
			want: domain.ErrInvalidOperation,
		},
		{
			name: "duplicate element",
			run: func() error {
				_, err := s.handleCreateElement(ctx, req, createElementArgs{PipelineID: id, ParentID: "Source", Type: "XMLParser", Name: "parser"})
				return err
			},
			want: domain.ErrConflict,
		},
		{
			name: "bad orientation",
			run: func() error {
				_, err := s.handleGetLayout(ctx, req, layoutArgs{PipelineID: id, Orientation: "diagonal"})
				return err
			},
			want: domain.ErrInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestListPipelines(t *testing.T) {
	s, id := newTestServer(t)

	res, err := s.handleListPipelines(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, id)
}
