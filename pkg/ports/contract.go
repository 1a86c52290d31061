package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractStack is a two layer stack exercising every value kind.
func contractStack() domain.ConfigStack {
	return domain.ConfigStack{
		{
			Elements: domain.AddRemove[domain.Element]{Add: []domain.Element{
				{ID: "Source", Type: "Source"},
				{ID: "parser", Type: "XMLParser"},
			}},
			Links: domain.AddRemove[domain.Link]{Add: []domain.Link{{From: "Source", To: "parser"}}},
			Properties: domain.AddRemove[domain.Property]{Add: []domain.Property{
				{Element: "parser", Name: "maxSize", Value: domain.IntegerValue(10)},
				{Element: "parser", Name: "limit", Value: domain.LongValue(1 << 40)},
			}},
		},
		{
			Elements: domain.AddRemove[domain.Element]{Add: []domain.Element{{ID: "writer", Type: "XMLWriter"}}},
			Links:    domain.AddRemove[domain.Link]{Add: []domain.Link{{From: "parser", To: "writer"}}},
			Properties: domain.AddRemove[domain.Property]{
				Add: []domain.Property{
					{Element: "writer", Name: "indentOutput", Value: domain.BooleanValue(true)},
					{Element: "writer", Name: "encoding", Value: domain.StringValue("UTF-8")},
					{Element: "writer", Name: "xslt", Value: domain.EntityValue(domain.DocRef{Type: "XSLT", UUID: "1234", Name: "pretty"})},
				},
				Remove: []domain.Property{
					{Element: "parser", Name: "maxSize", Value: domain.IntegerValue(10)},
				},
			},
		},
	}
}

// RunPipelineStoreContract runs a suite of tests to verify that a PipelineStore implementation
// adheres to the defined interface contract.
func RunPipelineStoreContract(t *testing.T, store PipelineStore) {
	ctx := context.Background()
	pipelineID := "contract-test-pipeline-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		doc := &domain.Document{
			ID:          pipelineID,
			Name:        "Contract",
			Description: "round trip",
			Folder:      "tests",
			ParentID:    "parent-1",
			UpdatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			ConfigStack: contractStack(),
		}

		err := store.Save(ctx, doc)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, pipelineID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, doc.ID, loaded.ID)
		assert.Equal(t, doc.Name, loaded.Name)
		assert.Equal(t, doc.Description, loaded.Description)
		assert.Equal(t, doc.Folder, loaded.Folder)
		assert.Equal(t, doc.ParentID, loaded.ParentID)
		assert.True(t, doc.UpdatedAt.Equal(loaded.UpdatedAt), "UpdatedAt: want %v, got %v", doc.UpdatedAt, loaded.UpdatedAt)
		require.Len(t, loaded.ConfigStack, 2)
		assert.Equal(t, doc.ConfigStack[0].Elements.Add, loaded.ConfigStack[0].Elements.Add)
		assert.Equal(t, doc.ConfigStack[1].Links.Add, loaded.ConfigStack[1].Links.Add)
		assert.True(t, propertiesEqual(doc.ConfigStack[0].Properties.Add, loaded.ConfigStack[0].Properties.Add))
		assert.True(t, propertiesEqual(doc.ConfigStack[1].Properties.Add, loaded.ConfigStack[1].Properties.Add))
		assert.True(t, propertiesEqual(doc.ConfigStack[1].Properties.Remove, loaded.ConfigStack[1].Properties.Remove))
	})

	t.Run("Save Isolates Caller", func(t *testing.T) {
		doc := &domain.Document{ID: pipelineID + "-iso", Name: "before", ConfigStack: contractStack()}
		require.NoError(t, store.Save(ctx, doc))
		defer func() { _ = store.Delete(ctx, doc.ID) }()

		doc.Name = "after"
		doc.ConfigStack[0].Elements.Add[0].Type = "Mutated"

		loaded, err := store.Load(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "before", loaded.Name)
		assert.Equal(t, "Source", loaded.ConfigStack[0].Elements.Add[0].Type)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+pipelineID)
		assert.ErrorIs(t, err, domain.ErrPipelineNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, &domain.Document{ID: pipelineID, Name: "Contract", ConfigStack: domain.ConfigStack{{}}})
		require.NoError(t, err)

		err = store.Delete(ctx, pipelineID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, pipelineID)
		assert.ErrorIs(t, err, domain.ErrPipelineNotFound, "Load after Delete should return ErrPipelineNotFound")

		assert.NoError(t, store.Delete(ctx, pipelineID), "Delete should be idempotent")
	})

	t.Run("List", func(t *testing.T) {
		id1 := pipelineID + "-1"
		id2 := pipelineID + "-2"
		_ = store.Save(ctx, &domain.Document{ID: id1, Name: "one", ConfigStack: domain.ConfigStack{{}}})
		_ = store.Save(ctx, &domain.Document{ID: id2, Name: "two", ConfigStack: domain.ConfigStack{{}}})

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

func propertiesEqual(a, b []domain.Property) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}
