package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/edit"
	"github.com/aretw0/strata/pkg/tree"
	"github.com/spf13/cobra"
)

// printResult shows the tree after an edit.
func printResult(w io.Writer, p domain.Pipeline) error {
	root, err := tree.Build(p.Merged)
	if err != nil {
		return err
	}
	fmt.Fprint(w, tui.RenderTree(root))
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add ID PARENT TYPE NAME",
	Short: "Add an element of TYPE named NAME below PARENT",
	Args:  cobra.ExactArgs(4),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.editor.CreateElement(cmd.Context(), args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), p)
	}),
}

var rmCmd = &cobra.Command{
	Use:   "rm ID ELEMENT",
	Short: "Remove an element; inherited elements go to the recycle bin",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.editor.RemoveElement(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), p)
	}),
}

var mvCmd = &cobra.Command{
	Use:   "mv ID ELEMENT PARENT",
	Short: "Move an element below another parent",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.editor.MoveElement(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), p)
	}),
}

var setCmd = &cobra.Command{
	Use:   "set ID ELEMENT PROPERTY VALUE",
	Short: "Override a property in the pipeline's own layer",
	Long: `Sets PROPERTY of ELEMENT. The value type is taken from the element type's
definition unless --type is given. Entity values are written type:uuid[:name].`,
	Args: cobra.ExactArgs(4),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		id, element, name, raw := args[0], args[1], args[2], args[3]

		kindName, _ := cmd.Flags().GetString("type")
		var kind domain.PropertyKind
		if kindName != "" {
			k, err := domain.ParsePropertyKind(kindName)
			if err != nil {
				return err
			}
			kind = k
		} else {
			k, err := declaredKind(cmd, a, id, element, name)
			if err != nil {
				return err
			}
			kind = k
		}

		p, err := a.editor.SetProperty(ctx, id, element, name, kind, raw)
		if err != nil {
			return err
		}
		prop, _ := domain.NewIndex(p.Merged).Property(element, name)
		fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %s (%s)\n", element, name, prop.Value, kind)
		return nil
	}),
}

func declaredKind(cmd *cobra.Command, a *app, id, element, name string) (domain.PropertyKind, error) {
	p, err := a.editor.Open(cmd.Context(), id)
	if err != nil {
		return "", err
	}
	el, ok := domain.NewIndex(p.Merged).Element(element)
	if !ok {
		return "", fmt.Errorf("%w: element %q", domain.ErrNotFound, element)
	}
	def, ok := a.registry.Lookup(el.Type)
	if !ok {
		return "", fmt.Errorf("element type %s is not registered, pass --type", el.Type)
	}
	pd, ok := def.Property(name)
	if !ok {
		return "", fmt.Errorf("%w: %s has no property %q", domain.ErrInvalidOperation, el.Type, name)
	}
	return pd.Kind, nil
}

var revertCmd = &cobra.Command{
	Use:   "revert ID ELEMENT PROPERTY",
	Short: "Revert a property to its inherited value or to no value",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		id, element, name := args[0], args[1], args[2]
		to, _ := cmd.Flags().GetString("to")

		var (
			p   domain.Pipeline
			err error
		)
		switch to {
		case "parent":
			p, err = a.editor.RevertToParent(ctx, id, element, name)
		case "default":
			p, err = a.editor.RevertToDefault(ctx, id, element, name)
		default:
			return fmt.Errorf("unknown revert target %q (want parent or default)", to)
		}
		if err != nil {
			return err
		}

		if prop, ok := domain.NewIndex(p.Merged).Property(element, name); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %s (inherited)\n", element, name, prop.Value)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s is unset\n", element, name)
		}
		return nil
	}),
}

var binCmd = &cobra.Command{
	Use:   "bin ID",
	Short: "List the recycle bin of a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		items, err := a.editor.Bin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ELEMENT\tTYPE\tCATEGORY")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", item.Element.ID, item.Element.Type, category(item))
		}
		return w.Flush()
	}),
}

func category(item edit.RecycleBinItem) string {
	if item.Definition == nil {
		return "-"
	}
	return item.Definition.Category
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID ELEMENT PARENT",
	Short: "Take an element out of the recycle bin and link it below PARENT",
	Args:  cobra.ExactArgs(3),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		p, err := a.editor.ReinstateElement(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), p)
	}),
}

func init() {
	rootCmd.AddCommand(addCmd, rmCmd, mvCmd, setCmd, revertCmd, binCmd, restoreCmd)
	setCmd.Flags().String("type", "", "Value type: boolean, entity, integer, long or string")
	revertCmd.Flags().String("to", "parent", "parent or default")
}
