package graph

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/tree"
	"github.com/goccy/go-graphviz"
)

// categoryColors fills nodes by registry category.
var categoryColors = map[string]string{
	"reader":      "#c7d2fe",
	"parser":      "#ddd6fe",
	"filter":      "#fbcfe8",
	"writer":      "#fde68a",
	"destination": "#bbf7d0",
}

// ToDOT converts the tree below root to Graphviz DOT. Elements listed in
// overlay.Own get a bold outline, overlay.Selected a dashed one.
func ToDOT(root *domain.TreeNode, catalogue Catalogue, overlay *Overlay) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("digraph pipeline {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("\n")

	var edges []string
	err := tree.Walk(root, func(lineage []*domain.TreeNode, node *domain.TreeNode) error {
		attrs := []string{fmt.Sprintf("label=%q", node.UUID+"\n"+node.Type)}
		if catalogue != nil {
			if def, ok := catalogue.Lookup(node.Type); ok {
				if color, ok := categoryColors[def.Category]; ok {
					attrs = append(attrs, fmt.Sprintf("fillcolor=%q", color))
				}
			}
		}
		if overlay != nil {
			switch {
			case node.UUID == overlay.Selected:
				attrs = append(attrs, "style=\"rounded,filled,dashed\"", "penwidth=3")
			case slices.Contains(overlay.Own, node.UUID):
				attrs = append(attrs, "penwidth=3")
			}
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", node.UUID, strings.Join(attrs, ", "))

		if len(lineage) > 0 {
			edges = append(edges, fmt.Sprintf("  %q -> %q;\n", lineage[len(lineage)-1].UUID, node.UUID))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}
	buf.WriteString("}\n")
	return buf.String(), nil
}

// RenderSVG renders a DOT graph to SVG using the embedded Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
