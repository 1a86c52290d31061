package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create a pipeline, optionally inheriting from a parent",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		parent, _ := cmd.Flags().GetString("parent")
		doc, err := a.editor.Create(cmd.Context(), args[0], parent)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
		return nil
	}),
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored pipelines",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ids, err := a.editor.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPARENT\tLAYERS")
		for _, id := range ids {
			doc, err := a.editor.Document(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", doc.ID, doc.Name, doc.ParentID, len(doc.ConfigStack))
		}
		return w.Flush()
	}),
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Describe a pipeline: elements, properties and recycle bin",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		doc, err := a.editor.Document(ctx, args[0])
		if err != nil {
			return err
		}
		p, err := a.editor.Open(ctx, args[0])
		if err != nil {
			return err
		}
		bin, err := a.editor.Bin(ctx, args[0])
		if err != nil {
			return err
		}

		markdown := tui.Summary(doc, p, bin)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Fprint(cmd.OutOrStdout(), markdown)
			return nil
		}
		render, err := tui.NewRenderer(stdoutIsTerminal(cmd))
		if err != nil {
			return err
		}
		out, err := render(markdown)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		return a.editor.Delete(cmd.Context(), args[0])
	}),
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the element types of the registry",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tTYPE\tPROPERTIES")
		for _, def := range a.registry.List() {
			var props []string
			for _, p := range def.Properties {
				props = append(props, p.Name+":"+string(p.Kind))
			}
			fmt.Fprintf(w, "%s\t%s\t%v\n", def.Category, def.Type, props)
		}
		return w.Flush()
	}),
}

// stdoutIsTerminal reports whether the command writes straight to a terminal.
func stdoutIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && tui.IsTerminal(f)
}

func init() {
	rootCmd.AddCommand(newCmd, lsCmd, showCmd, deleteCmd, typesCmd)
	newCmd.Flags().String("parent", "", "Id of the pipeline to inherit from")
	showCmd.Flags().Bool("raw", false, "Print the markdown source instead of rendering it")
}
