package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/file"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.PipelineStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunPipelineStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesReadableYAML(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	doc := &domain.Document{
		ID:   "p1",
		Name: "Events",
		ConfigStack: domain.ConfigStack{{
			Elements: domain.AddRemove[domain.Element]{Add: []domain.Element{{ID: "Source", Type: "Source"}}},
			Properties: domain.AddRemove[domain.Property]{Add: []domain.Property{
				{Element: "Source", Name: "feed", Value: domain.StringValue("EVENTS")},
			}},
		}},
	}
	require.NoError(t, store.Save(ctx, doc))

	data, err := os.ReadFile(filepath.Join(dir, "p1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Events")
	assert.Contains(t, string(data), "string: EVENTS")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_RejectsBadIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", ".."} {
		err := store.Save(ctx, &domain.Document{ID: id})
		assert.ErrorIs(t, err, domain.ErrInvalidOperation, "id %q", id)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
