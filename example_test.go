package strata_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/domain"
)

// ExampleEditor_RevertToParent shows a child pipeline overriding an inherited
// property and then falling back to the parent's value.
func ExampleEditor_RevertToParent() {
	ctx := context.Background()
	editor, err := strata.New()
	if err != nil {
		log.Fatal(err)
	}

	base, err := editor.Create(ctx, "events", "")
	if err != nil {
		log.Fatal(err)
	}
	if _, err := editor.CreateElement(ctx, base.ID, "Source", "XMLParser", "parser"); err != nil {
		log.Fatal(err)
	}
	if _, err := editor.SetProperty(ctx, base.ID, "parser", "maxSize", domain.KindInteger, 10); err != nil {
		log.Fatal(err)
	}

	child, err := editor.Create(ctx, "events-eu", base.ID)
	if err != nil {
		log.Fatal(err)
	}
	p, err := editor.SetProperty(ctx, child.ID, "parser", "maxSize", domain.KindInteger, 20)
	if err != nil {
		log.Fatal(err)
	}
	prop, _ := domain.NewIndex(p.Merged).Property("parser", "maxSize")
	fmt.Println("override:", prop.Value)

	p, err = editor.RevertToParent(ctx, child.ID, "parser", "maxSize")
	if err != nil {
		log.Fatal(err)
	}
	prop, _ = domain.NewIndex(p.Merged).Property("parser", "maxSize")
	fmt.Println("inherited:", prop.Value)

	// Output:
	// override: 20
	// inherited: 10
}

// ExampleEditor_Layout places a small pipeline on a grid.
func ExampleEditor_Layout() {
	ctx := context.Background()
	editor, _ := strata.New()

	doc, _ := editor.Create(ctx, "events", "")
	editor.CreateElement(ctx, doc.ID, "Source", "XMLParser", "parser")
	editor.CreateElement(ctx, doc.ID, "parser", "XMLWriter", "writer")
	editor.CreateElement(ctx, doc.ID, "parser", "TextWriter", "text")

	grid, err := editor.Layout(ctx, doc.ID, domain.Horizontal)
	if err != nil {
		log.Fatal(err)
	}
	for _, id := range []string{"Source", "parser", "writer", "text"} {
		fmt.Printf("%s %d,%d\n", id, grid[id].HorizontalPos, grid[id].VerticalPos)
	}

	// Output:
	// Source 1,1
	// parser 2,1
	// writer 3,1
	// text 3,2
}
