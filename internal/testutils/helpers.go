package testutils

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/stack"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	if len(opts) == 0 {
		opts = []loam.Option{loam.WithVersioning(false)}
	}
	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// ParentChildPipeline returns a two layer pipeline:
//
//	Source -> parser -> writer
//
// The parent layer defines the graph and sets parser.maxSize to 10.
// The own layer is empty.
func ParentChildPipeline() domain.Pipeline {
	parent := domain.StackLayer{
		Elements: domain.AddRemove[domain.Element]{Add: []domain.Element{
			{ID: "Source", Type: "Source"},
			{ID: "parser", Type: "XMLParser"},
			{ID: "writer", Type: "FileAppender"},
		}},
		Links: domain.AddRemove[domain.Link]{Add: []domain.Link{
			{From: "Source", To: "parser"},
			{From: "parser", To: "writer"},
		}},
		Properties: domain.AddRemove[domain.Property]{Add: []domain.Property{
			{Element: "parser", Name: "maxSize", Value: domain.IntegerValue(10)},
		}},
	}
	return stack.ResolvePipeline(domain.ConfigStack{parent, {}})
}

// RequireConsistent fails the test unless p.Merged equals the resolution of
// p.ConfigStack, ignoring order.
func RequireConsistent(t *testing.T, p domain.Pipeline) {
	t.Helper()
	want := Normalize(stack.Resolve(p.ConfigStack))
	got := Normalize(p.Merged)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("merged view diverged from config stack (-resolved +merged):\n%s", diff)
	}
}

// Normalize sorts every list of m so views can be compared as sets.
func Normalize(m domain.MergedView) domain.MergedView {
	out := m.Clone()
	slices.SortFunc(out.Elements, func(a, b domain.Element) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(out.Links, func(a, b domain.Link) int { return strings.Compare(a.To, b.To) })
	slices.SortFunc(out.Properties, func(a, b domain.Property) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})
	return out
}
