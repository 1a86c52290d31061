package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/layout"
	"github.com/aretw0/strata/pkg/tree"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree ID",
	Short: "Print the element tree of a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		root, err := a.editor.Tree(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderTree(root))
		return nil
	}),
}

var layoutCmd = &cobra.Command{
	Use:   "layout ID",
	Short: "Print the grid position of every element",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("orientation")
		o, err := layout.ParseOrientation(name)
		if err != nil {
			return err
		}
		root, err := a.editor.Tree(ctx, args[0])
		if err != nil {
			return err
		}
		grid, err := layout.Compute(root, o)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ELEMENT\tH\tV")
		err = tree.Walk(root, func(_ []*domain.TreeNode, n *domain.TreeNode) error {
			pos := grid[n.UUID]
			fmt.Fprintf(w, "%s\t%d\t%d\n", n.UUID, pos.HorizontalPos, pos.VerticalPos)
			return nil
		})
		if err != nil {
			return err
		}
		return w.Flush()
	}),
}

var graphCmd = &cobra.Command{
	Use:   "graph ID",
	Short: "Export the pipeline as a diagram",
	Long: `Outputs the element tree as Mermaid (default), Graphviz DOT or SVG.
Elements the pipeline's own layer adds or changes are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		selected, _ := cmd.Flags().GetString("select")
		output, _ := cmd.Flags().GetString("output")

		p, err := a.editor.Open(ctx, args[0])
		if err != nil {
			return err
		}
		root, err := tree.Build(p.Merged)
		if err != nil {
			return err
		}
		overlay := &graph.Overlay{Own: graph.OwnElements(p), Selected: selected}

		var out []byte
		switch format {
		case "mermaid":
			s, err := graph.GenerateMermaid(root, a.registry, overlay)
			if err != nil {
				return err
			}
			out = []byte(s)
		case "dot", "svg":
			dot, err := graph.ToDOT(root, a.registry, overlay)
			if err != nil {
				return err
			}
			out = []byte(dot)
			if format == "svg" {
				if out, err = graph.RenderSVG(ctx, dot); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unknown format %q (want mermaid, dot or svg)", format)
		}

		if output != "" {
			return os.WriteFile(output, out, 0644)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(treeCmd, layoutCmd, graphCmd)
	layoutCmd.Flags().StringP("orientation", "o", string(domain.Horizontal), "horizontal or vertical")
	graphCmd.Flags().StringP("format", "f", "mermaid", "mermaid, dot or svg")
	graphCmd.Flags().String("select", "", "Element to highlight")
	graphCmd.Flags().String("output", "", "Write to this file instead of stdout")
}
