package edit_test

import (
	"testing"

	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateElement(t *testing.T) {
	p := testutils.ParentChildPipeline()

	got, err := edit.CreateElement(p, "parser", "XSLTFilter", "xslt")
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	idx := domain.NewIndex(got.Merged)
	e, ok := idx.Element("xslt")
	require.True(t, ok)
	assert.Equal(t, "XSLTFilter", e.Type)
	l, ok := idx.IncomingLink("xslt")
	require.True(t, ok)
	assert.Equal(t, "parser", l.From)

	own, err := got.OwnLayer()
	require.NoError(t, err)
	assert.Equal(t, []domain.Element{{ID: "xslt", Type: "XSLTFilter"}}, own.Elements.Add)
	assert.Equal(t, []domain.Link{{From: "parser", To: "xslt"}}, own.Links.Add)

	// input untouched
	assert.Len(t, p.Merged.Elements, 3)
	assert.True(t, p.ConfigStack[1].IsEmpty())
}

func TestCreateElement_Errors(t *testing.T) {
	p := testutils.ParentChildPipeline()

	tests := []struct {
		name     string
		parent   string
		typ      string
		id       string
		expected error
	}{
		{"duplicate name", "Source", "XMLParser", "parser", domain.ErrConflict},
		{"missing parent", "ghost", "XMLParser", "p2", domain.ErrNotFound},
		{"empty name", "Source", "XMLParser", "", domain.ErrInvalidOperation},
		{"empty type", "Source", "", "p2", domain.ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := edit.CreateElement(p, tt.parent, tt.typ, tt.id)
			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, domain.Pipeline{}, got)
		})
	}

	_, err := edit.CreateElement(domain.Pipeline{}, "Source", "XMLParser", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestCreateThenRemove_RestoresSets(t *testing.T) {
	p := testutils.ParentChildPipeline()

	created, err := edit.CreateElement(p, "writer", "TextWriter", "text")
	require.NoError(t, err)
	removed, err := edit.RemoveElement(created, "text")
	require.NoError(t, err)
	testutils.RequireConsistent(t, removed)

	assert.Equal(t, testutils.Normalize(p.Merged), testutils.Normalize(removed.Merged))
	own, err := removed.OwnLayer()
	require.NoError(t, err)
	assert.True(t, own.IsEmpty(), "own additions are dropped, not shadowed")
}

func TestRemoveElement_Inherited(t *testing.T) {
	p := testutils.ParentChildPipeline()

	got, err := edit.RemoveElement(p, "writer")
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	idx := domain.NewIndex(got.Merged)
	_, ok := idx.Element("writer")
	assert.False(t, ok)
	_, ok = idx.IncomingLink("writer")
	assert.False(t, ok)

	own, err := got.OwnLayer()
	require.NoError(t, err)
	assert.Equal(t, []domain.Element{{ID: "writer", Type: "FileAppender"}}, own.Elements.Remove)
	assert.Equal(t, []domain.Link{{From: "parser", To: "writer"}}, own.Links.Remove)

	// A stack rebuilt from the layers alone agrees.
	rebuilt := stack.Resolve(got.ConfigStack)
	assert.Len(t, rebuilt.Elements, 2)
}

func TestRemoveElement_KeepsOutgoingLinksAndProperties(t *testing.T) {
	got, err := edit.RemoveElement(testutils.ParentChildPipeline(), "parser")
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	idx := domain.NewIndex(got.Merged)
	l, ok := idx.IncomingLink("writer")
	require.True(t, ok)
	assert.Equal(t, "parser", l.From)
	_, ok = idx.Property("parser", "maxSize")
	assert.True(t, ok)
}

func TestRemoveElement_NotFound(t *testing.T) {
	_, err := edit.RemoveElement(testutils.ParentChildPipeline(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveElement(t *testing.T) {
	p, err := edit.CreateElement(testutils.ParentChildPipeline(), "Source", "JSONParser", "json")
	require.NoError(t, err)

	got, err := edit.MoveElement(p, "writer", "json")
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	l, ok := domain.NewIndex(got.Merged).IncomingLink("writer")
	require.True(t, ok)
	assert.Equal(t, "json", l.From)
	assert.Len(t, got.Merged.Links, 3, "one incoming link per child")
}

func TestCanMove(t *testing.T) {
	p := testutils.ParentChildPipeline()

	tests := []struct {
		name      string
		id        string
		newParent string
		errs      []error
		notErrs   []error
	}{
		{name: "valid", id: "writer", newParent: "Source"},
		{name: "into descendant", id: "parser", newParent: "writer", errs: []error{domain.ErrInvalidOperation}, notErrs: []error{domain.ErrConflict}},
		{name: "onto itself", id: "parser", newParent: "parser", errs: []error{domain.ErrInvalidOperation}},
		{name: "already a child", id: "parser", newParent: "Source", errs: []error{domain.ErrInvalidOperation, domain.ErrConflict}},
		{name: "unknown element", id: "ghost", newParent: "Source", errs: []error{domain.ErrInvalidOperation, domain.ErrNotFound}},
		{name: "unknown parent", id: "writer", newParent: "ghost", errs: []error{domain.ErrInvalidOperation, domain.ErrNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := edit.CanMove(p, tt.id, tt.newParent)
			if len(tt.errs) == 0 {
				assert.NoError(t, err)
				return
			}
			for _, want := range tt.errs {
				assert.ErrorIs(t, err, want)
			}
			for _, unwanted := range tt.notErrs {
				assert.NotErrorIs(t, err, unwanted)
			}
		})
	}

	_, err := edit.MoveElement(p, "Source", "writer")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestSetProperty(t *testing.T) {
	p := testutils.ParentChildPipeline()

	got, err := edit.SetProperty(p, "parser", "maxSize", domain.KindInteger, 20)
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	prop, ok := edit.EffectiveValue(got, "parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(20), prop.Value)

	own, ok := edit.OwnValue(got, "parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(20), own.Value)

	inherited, ok := edit.InheritedValue(got, "parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(10), inherited.Value)

	// Setting again replaces rather than duplicates.
	got, err = edit.SetPropertyValue(got, "parser", "maxSize", domain.IntegerValue(30))
	require.NoError(t, err)
	own2, err := got.OwnLayer()
	require.NoError(t, err)
	assert.Len(t, own2.Properties.Add, 1)
}

func TestSetProperty_Errors(t *testing.T) {
	p := testutils.ParentChildPipeline()

	_, err := edit.SetProperty(p, "ghost", "maxSize", domain.KindInteger, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = edit.SetPropertyValue(p, "parser", "maxSize", domain.PropertyValue{})
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = edit.SetProperty(p, "parser", "maxSize", domain.KindInteger, "lots")
	assert.Error(t, err)
}

func TestRevertToParent(t *testing.T) {
	p, err := edit.SetProperty(testutils.ParentChildPipeline(), "parser", "maxSize", domain.KindInteger, 20)
	require.NoError(t, err)

	got, err := edit.RevertToParent(p, "parser", "maxSize")
	require.NoError(t, err)
	testutils.RequireConsistent(t, got)

	prop, ok := edit.EffectiveValue(got, "parser", "maxSize")
	require.True(t, ok)
	assert.Equal(t, domain.IntegerValue(10), prop.Value)
	_, ok = edit.OwnValue(got, "parser", "maxSize")
	assert.False(t, ok)

	_, err = edit.RevertToParent(got, "writer", "encoding")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevertToDefault(t *testing.T) {
	tests := []struct {
		name  string
		setup func(domain.Pipeline) (domain.Pipeline, error)
	}{
		{"inherited value", func(p domain.Pipeline) (domain.Pipeline, error) { return p, nil }},
		{"own override", func(p domain.Pipeline) (domain.Pipeline, error) {
			return edit.SetProperty(p, "parser", "maxSize", domain.KindInteger, 20)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.setup(testutils.ParentChildPipeline())
			require.NoError(t, err)

			got, err := edit.RevertToDefault(p, "parser", "maxSize")
			require.NoError(t, err)
			testutils.RequireConsistent(t, got)

			_, ok := edit.EffectiveValue(got, "parser", "maxSize")
			assert.False(t, ok)
		})
	}
}

func TestRevertToDefault_Errors(t *testing.T) {
	single := stack.ResolvePipeline(domain.ConfigStack{{}})
	_, err := edit.RevertToDefault(single, "parser", "maxSize")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = edit.RevertToDefault(testutils.ParentChildPipeline(), "writer", "encoding")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecycleBin(t *testing.T) {
	p, err := edit.RemoveElement(testutils.ParentChildPipeline(), "writer")
	require.NoError(t, err)

	items := edit.BinItems(p, registry.Default())
	require.Len(t, items, 1)
	assert.Equal(t, "writer", items[0].Element.ID)
	require.NotNil(t, items[0].Definition)
	assert.Equal(t, "destination", items[0].Definition.Category)

	assert.ElementsMatch(t, []string{"source", "parser", "writer"}, edit.AllElementNames(p))

	_, err = edit.CreateElement(p, "Source", "XMLParser", "parser")
	assert.ErrorIs(t, err, domain.ErrConflict)

	restored, err := edit.ReinstateElement(p, "writer", "Source")
	require.NoError(t, err)
	testutils.RequireConsistent(t, restored)
	assert.Empty(t, edit.BinItems(restored, nil))

	l, ok := domain.NewIndex(restored.Merged).IncomingLink("writer")
	require.True(t, ok)
	assert.Equal(t, "Source", l.From)

	_, err = edit.ReinstateElement(restored, "writer", "Source")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = edit.ReinstateElement(p, "ghost", "Source")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecycleBin_RestoreToOriginalParent(t *testing.T) {
	p, err := edit.RemoveElement(testutils.ParentChildPipeline(), "writer")
	require.NoError(t, err)

	restored, err := edit.ReinstateElement(p, "writer", "parser")
	require.NoError(t, err)
	testutils.RequireConsistent(t, restored)

	own, err := restored.OwnLayer()
	require.NoError(t, err)
	assert.True(t, own.IsEmpty(), "restoring the inherited shape leaves nothing to record")
}
