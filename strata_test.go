package strata_test

import (
	"context"
	"testing"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T, opts ...strata.Option) *strata.Editor {
	t.Helper()
	editor, err := strata.New(opts...)
	require.NoError(t, err)
	return editor
}

func TestEditor_InheritAndRevert(t *testing.T) {
	ctx := context.Background()
	editor := newEditor(t)

	base, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, base.ID, "Source", "XMLParser", "parser")
	require.NoError(t, err)
	_, err = editor.SetProperty(ctx, base.ID, "parser", "maxSize", domain.KindInteger, 10)
	require.NoError(t, err)

	child, err := editor.Create(ctx, "events-eu", base.ID)
	require.NoError(t, err)
	assert.Equal(t, base.ID, child.ParentID)
	assert.Len(t, child.ConfigStack, 2)

	p, err := editor.SetProperty(ctx, child.ID, "parser", "maxSize", domain.KindInteger, 20)
	require.NoError(t, err)
	testutils.RequireConsistent(t, p)
	prop, ok := domain.NewIndex(p.Merged).Property("parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(20), prop.Value)

	p, err = editor.RevertToParent(ctx, child.ID, "parser", "maxSize")
	require.NoError(t, err)
	prop, _ = domain.NewIndex(p.Merged).Property("parser", "maxSize")
	assert.Equal(t, domain.IntegerValue(10), prop.Value)
	own, err := p.OwnLayer()
	require.NoError(t, err)
	assert.True(t, own.IsEmpty())

	p, err = editor.Undo(ctx, child.ID)
	require.NoError(t, err)
	prop, _ = domain.NewIndex(p.Merged).Property("parser", "maxSize")
	assert.Equal(t, domain.IntegerValue(20), prop.Value)

	// The parent document is untouched by the child's edits.
	parent, err := editor.Open(ctx, base.ID)
	require.NoError(t, err)
	prop, _ = domain.NewIndex(parent.Merged).Property("parser", "maxSize")
	assert.Equal(t, domain.IntegerValue(10), prop.Value)
}

func TestEditor_Validation(t *testing.T) {
	ctx := context.Background()
	editor := newEditor(t)

	doc, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, doc.ID, "Source", "XMLParser", "parser")
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "empty pipeline name",
			run:  func() error { _, err := editor.Create(ctx, " ", ""); return err },
			want: domain.ErrInvalidOperation,
		},
		{
			name: "missing parent pipeline",
			run:  func() error { _, err := editor.Create(ctx, "x", "nope"); return err },
			want: domain.ErrPipelineNotFound,
		},
		{
			name: "unknown element type",
			run: func() error {
				_, err := editor.CreateElement(ctx, doc.ID, "Source", "Teleporter", "t")
				return err
			},
			want: domain.ErrInvalidOperation,
		},
		{
			name: "name clash ignores case",
			run: func() error {
				_, err := editor.CreateElement(ctx, doc.ID, "Source", "JSONParser", "PARSER")
				return err
			},
			want: domain.ErrConflict,
		},
		{
			name: "undeclared property",
			run: func() error {
				_, err := editor.SetProperty(ctx, doc.ID, "parser", "colour", domain.KindString, "red")
				return err
			},
			want: domain.ErrInvalidOperation,
		},
		{
			name: "wrong property kind",
			run: func() error {
				_, err := editor.SetProperty(ctx, doc.ID, "parser", "maxSize", domain.KindString, "10")
				return err
			},
			want: domain.ErrInvalidOperation,
		},
		{
			name: "property of missing element",
			run: func() error {
				_, err := editor.SetProperty(ctx, doc.ID, "ghost", "maxSize", domain.KindInteger, 1)
				return err
			},
			want: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
}

func TestEditor_TreeLayoutAndBin(t *testing.T) {
	ctx := context.Background()
	editor := newEditor(t)

	base, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, base.ID, "Source", "XMLParser", "parser")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, base.ID, "parser", "FileAppender", "files")
	require.NoError(t, err)

	root, err := editor.Tree(ctx, base.ID)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "Source", root.UUID)

	grid, err := editor.Layout(ctx, base.ID, domain.Horizontal)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{HorizontalPos: 3, VerticalPos: 1}, grid["files"])

	child, err := editor.Create(ctx, "events-eu", base.ID)
	require.NoError(t, err)
	_, err = editor.RemoveElement(ctx, child.ID, "files")
	require.NoError(t, err)

	bin, err := editor.Bin(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	assert.Equal(t, "files", bin[0].Element.ID)
	require.NotNil(t, bin[0].Definition)
	assert.Equal(t, "destination", bin[0].Definition.Category)

	// A binned name stays reserved.
	_, err = editor.CreateElement(ctx, child.ID, "parser", "FileAppender", "files")
	assert.ErrorIs(t, err, domain.ErrConflict)

	p, err := editor.ReinstateElement(ctx, child.ID, "files", "Source")
	require.NoError(t, err)
	testutils.RequireConsistent(t, p)
	link, ok := domain.NewIndex(p.Merged).IncomingLink("files")
	require.True(t, ok)
	assert.Equal(t, "Source", link.From)
}

func TestEditor_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	editor := newEditor(t, strata.WithMetrics(reg))

	doc, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)
	_, err = editor.CreateElement(ctx, doc.ID, "Source", "XMLParser", "parser")
	require.NoError(t, err)
	_, err = editor.Undo(ctx, doc.ID)
	require.NoError(t, err)
	_, err = editor.Undo(ctx, doc.ID)
	require.Error(t, err)

	n, err := testutil.GatherAndCount(reg, "strata_edit_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "create_element/ok, undo/ok and undo/invalid_operation")

	n, err = testutil.GatherAndCount(reg, "strata_store_operations_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestEditor_Delete(t *testing.T) {
	ctx := context.Background()
	editor := newEditor(t)

	doc, err := editor.Create(ctx, "events", "")
	require.NoError(t, err)

	ids, err := editor.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, ids)

	require.NoError(t, editor.Delete(ctx, doc.ID))
	_, err = editor.Open(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
}
