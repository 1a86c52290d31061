// Package tui formats pipelines for the terminal.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown using glamour.
// Styled output adapts to the terminal background; otherwise the notty
// style is used so pipes and files get plain text.
func NewRenderer(styled bool) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if styled {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle("notty"))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// Summary describes a pipeline document as markdown.
func Summary(doc *domain.Document, p domain.Pipeline, bin []edit.RecycleBinItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", doc.Name)
	if doc.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", doc.Description)
	}

	fmt.Fprintf(&sb, "- **ID**: `%s`\n", doc.ID)
	if doc.ParentID != "" {
		fmt.Fprintf(&sb, "- **Parent**: `%s`\n", doc.ParentID)
	}
	if doc.Folder != "" {
		fmt.Fprintf(&sb, "- **Folder**: %s\n", doc.Folder)
	}
	fmt.Fprintf(&sb, "- **Layers**: %d\n", len(doc.ConfigStack))
	if !doc.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Updated**: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	parents := make(map[string]string, len(p.Merged.Links))
	for _, l := range p.Merged.Links {
		parents[l.To] = l.From
	}

	sb.WriteString("\n## Elements\n\n")
	if len(p.Merged.Elements) == 0 {
		sb.WriteString("_none_\n")
	} else {
		sb.WriteString("| Element | Type | Parent |\n|---|---|---|\n")
		for _, e := range p.Merged.Elements {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", e.ID, e.Type, parents[e.ID])
		}
	}

	if len(p.Merged.Properties) > 0 {
		sb.WriteString("\n## Properties\n\n| Element | Property | Type | Value | Source |\n|---|---|---|---|---|\n")
		for _, prop := range p.Merged.Properties {
			source := "inherited"
			if _, own := edit.OwnValue(p, prop.Element, prop.Name); own {
				source = "own"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", prop.Element, prop.Name, prop.Value.Kind(), prop.Value, source)
		}
	}

	if len(bin) > 0 {
		sb.WriteString("\n## Recycle bin\n\n")
		for _, item := range bin {
			fmt.Fprintf(&sb, "- %s (%s)\n", item.Element.ID, item.Element.Type)
		}
	}
	return sb.String()
}

// RenderTree draws the tree below root with box drawing characters.
func RenderTree(root *domain.TreeNode) string {
	if root == nil {
		return "(empty pipeline)\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", root.UUID, root.Type)
	renderChildren(&sb, root.Children, "")
	return sb.String()
}

func renderChildren(sb *strings.Builder, children []*domain.TreeNode, prefix string) {
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(sb, "%s%s%s (%s)\n", prefix, branch, child.UUID, child.Type)
		renderChildren(sb, child.Children, prefix+next)
	}
}
