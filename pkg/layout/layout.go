// Package layout places the nodes of a pipeline tree on an integer grid.
package layout

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// ParseOrientation accepts "horizontal" or "vertical" in any case.
func ParseOrientation(s string) (domain.Orientation, error) {
	o := domain.Orientation(strings.ToLower(strings.TrimSpace(s)))
	if err := validate(o); err != nil {
		return "", err
	}
	return o, nil
}

func validate(o domain.Orientation) error {
	switch o {
	case domain.Horizontal, domain.Vertical:
		return nil
	}
	return fmt.Errorf("%w: unknown orientation %q", domain.ErrInvalidOperation, o)
}

// Compute assigns a grid position to every node of root.
//
// Nodes are visited in pre-order. The forward coordinate is the node depth
// (root is 1). The sideways coordinate starts at 1 and moves to a new lane
// whenever the walk does not go strictly deeper than the previous node.
// Horizontal layouts grow along HorizontalPos, vertical ones along VerticalPos.
func Compute(root *domain.TreeNode, o domain.Orientation) (domain.Layout, error) {
	if err := validate(o); err != nil {
		return nil, err
	}

	positions := make(domain.Layout)
	if root == nil {
		return positions, nil
	}

	type frame struct {
		node  *domain.TreeNode
		depth int
	}

	sideway := 1
	lastDepth := 0
	pending := []frame{{node: root, depth: 1}}

	for len(pending) > 0 {
		f := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if _, seen := positions[f.node.UUID]; seen {
			return nil, fmt.Errorf("%w: element %q is reachable more than once", domain.ErrInvalidState, f.node.UUID)
		}

		if f.depth <= lastDepth {
			sideway++
		}
		lastDepth = f.depth

		if o == domain.Horizontal {
			positions[f.node.UUID] = domain.Position{HorizontalPos: f.depth, VerticalPos: sideway}
		} else {
			positions[f.node.UUID] = domain.Position{HorizontalPos: sideway, VerticalPos: f.depth}
		}

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			pending = append(pending, frame{node: f.node.Children[i], depth: f.depth + 1})
		}
	}

	return positions, nil
}
