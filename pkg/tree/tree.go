// Package tree derives the display tree of a merged pipeline view.
package tree

import (
	"errors"
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
)

// SourceElementID is the conventional id of a pipeline's entry element.
const SourceElementID = "Source"

// Build converts a merged view into a rooted tree.
//
// The root is the element named "Source" when present. Otherwise it is the
// parent of the first link whose parent has no incoming link, and failing that
// the first element. Build returns nil, nil when no root can be inferred.
//
// Children keep link order. A cycle, or a child reachable through two links,
// fails with domain.ErrInvalidState.
func Build(merged domain.MergedView) (*domain.TreeNode, error) {
	rootID, ok := InferRoot(merged)
	if !ok {
		return nil, nil
	}

	nodes := make(map[string]*domain.TreeNode, len(merged.Elements))
	for _, e := range merged.Elements {
		nodes[e.ID] = &domain.TreeNode{UUID: e.ID, Type: e.Type}
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil, nil
	}

	for _, l := range merged.Links {
		from, ok := nodes[l.From]
		if !ok {
			continue
		}
		to, ok := nodes[l.To]
		if !ok {
			continue
		}
		from.Children = append(from.Children, to)
	}

	if err := Walk(root, func([]*domain.TreeNode, *domain.TreeNode) error { return nil }); err != nil {
		return nil, err
	}
	return root, nil
}

// InferRoot returns the id of the element the tree should start from.
func InferRoot(merged domain.MergedView) (string, bool) {
	for _, e := range merged.Elements {
		if e.ID == SourceElementID {
			return e.ID, true
		}
	}

	incoming := make(map[string]struct{}, len(merged.Links))
	for _, l := range merged.Links {
		incoming[l.To] = struct{}{}
	}
	for _, l := range merged.Links {
		if _, ok := incoming[l.From]; !ok {
			return l.From, true
		}
	}

	if len(merged.Elements) > 0 {
		return merged.Elements[0].ID, true
	}
	return "", false
}

// VisitFunc is called for every node in pre-order. lineage holds the path from
// the root to the node's parent.
type VisitFunc func(lineage []*domain.TreeNode, node *domain.TreeNode) error

// Walk visits root and its descendants depth first, children in order.
// Visiting a node twice fails with domain.ErrInvalidState.
func Walk(root *domain.TreeNode, fn VisitFunc) error {
	if root == nil {
		return nil
	}
	visited := make(map[string]struct{})
	return walk(nil, root, visited, fn)
}

func walk(lineage []*domain.TreeNode, node *domain.TreeNode, visited map[string]struct{}, fn VisitFunc) error {
	if _, seen := visited[node.UUID]; seen {
		return fmt.Errorf("%w: element %q is reachable more than once", domain.ErrInvalidState, node.UUID)
	}
	visited[node.UUID] = struct{}{}

	if err := fn(lineage, node); err != nil {
		return err
	}

	lineage = append(lineage, node)
	for _, child := range node.Children {
		if err := walk(lineage[:len(lineage):len(lineage)], child, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

// errFound ends a walk once the wanted node is visited.
var errFound = errors.New("found")

// Find returns the node with the given id and the path from the root to its
// parent. It fails with domain.ErrNotFound when id is not in the tree and with
// domain.ErrInvalidState when the tree reaches a node twice.
func Find(root *domain.TreeNode, id string) (*domain.TreeNode, []*domain.TreeNode, error) {
	var (
		found   *domain.TreeNode
		lineage []*domain.TreeNode
	)
	err := Walk(root, func(l []*domain.TreeNode, n *domain.TreeNode) error {
		if n.UUID == id {
			found = n
			lineage = append([]*domain.TreeNode(nil), l...)
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, nil, err
	}
	if found == nil {
		return nil, nil, fmt.Errorf("%w: element %q is not in the tree", domain.ErrNotFound, id)
	}
	return found, lineage, nil
}

// InSubtree reports whether id is root itself or one of its descendants.
func InSubtree(root *domain.TreeNode, id string) (bool, error) {
	_, _, err := Find(root, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	}
	return false, err
}

// Descendants lists every element transitively linked below id in the merged
// view, depth first in link order. Cycles fail with domain.ErrInvalidState.
func Descendants(merged domain.MergedView, id string) ([]string, error) {
	idx := domain.NewIndex(merged)
	visited := map[string]struct{}{id: {}}
	var out []string

	var visit func(string) error
	visit = func(parent string) error {
		for _, child := range idx.Children(parent) {
			if _, seen := visited[child]; seen {
				return fmt.Errorf("%w: element %q is reachable more than once below %q", domain.ErrInvalidState, child, id)
			}
			visited[child] = struct{}{}
			out = append(out, child)
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(id); err != nil {
		return nil, err
	}
	return out, nil
}
