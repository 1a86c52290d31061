// Package graph draws pipeline trees as Mermaid flowcharts and Graphviz diagrams.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/tree"
)

// Catalogue looks up element types to pick node shapes. It may be nil.
type Catalogue interface {
	Lookup(elementType string) (registry.Definition, bool)
}

// Overlay marks elements to highlight on the diagram.
type Overlay struct {
	// Own lists the elements the pipeline's own layer adds or relinks.
	Own []string
	// Selected is the element in focus, if any.
	Selected string
}

// OwnElements returns the ids the own layer of p adds or links.
func OwnElements(p domain.Pipeline) []string {
	own, err := p.OwnLayer()
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range own.Elements.Add {
		add(e.ID)
	}
	for _, l := range own.Links.Add {
		add(l.To)
	}
	for _, prop := range own.Properties.Add {
		add(prop.Element)
	}
	return ids
}

// GenerateMermaid produces a Mermaid flowchart of the tree below root.
// Shapes follow the element roles:
// - Source: ((Circle))
// - Destination: [[Subroutine]]
// - Parser: [/Parallelogram/]
// - Default: [Rectangle]
func GenerateMermaid(root *domain.TreeNode, catalogue Catalogue, overlay *Overlay) (string, error) {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	err := tree.Walk(root, func(lineage []*domain.TreeNode, node *domain.TreeNode) error {
		safeID := sanitizeMermaidID(node.UUID)
		opener, closer := shape(node, catalogue)
		fmt.Fprintf(&sb, "    %s%s\"%s<br/><small>%s</small>\"%s\n", safeID, opener, node.UUID, node.Type, closer)
		if len(lineage) > 0 {
			parent := lineage[len(lineage)-1]
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(parent.UUID), safeID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef own fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		styled := make(map[string]bool)
		for _, id := range overlay.Own {
			safeID := sanitizeMermaidID(id)
			if !styled[safeID] && safeID != "" {
				styled[safeID] = true
				fmt.Fprintf(&sb, "    class %s own;\n", safeID)
			}
		}
		if overlay.Selected != "" {
			fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.Selected))
		}
	}

	return sb.String(), nil
}

func shape(node *domain.TreeNode, catalogue Catalogue) (string, string) {
	if node.UUID == tree.SourceElementID {
		return "((", "))"
	}
	if catalogue == nil {
		return "[", "]"
	}
	def, ok := catalogue.Lookup(node.Type)
	switch {
	case !ok:
		return "[", "]"
	case def.HasRole(registry.RoleSource):
		return "((", "))"
	case def.HasRole(registry.RoleDestination):
		return "[[", "]]"
	case def.HasRole(registry.RoleParser):
		return "[/", "/]"
	}
	return "[", "]"
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
