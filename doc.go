/*
Package strata edits layered pipeline configurations.

A pipeline is described by a stack of layers. Each layer adds and removes
elements, the links between them and element properties. Folding the layers
from oldest to newest gives the merged view: the pipeline as it actually runs.
A child pipeline inherits its parent's layers and records its own changes in
the last layer, so the parent's settings can be overridden, hidden or restored
one property at a time.

# Concept

The library is split the same way as the data:

  - pkg/stack resolves a config stack into a merged view.
  - pkg/edit applies one change to the own layer and keeps the merged view in step.
  - pkg/tree and pkg/layout turn the merged view into a tree and a grid.
  - pkg/session serializes edits per pipeline and keeps undo history.
  - pkg/adapters holds the stores (memory, file, loam, sqlite, redis) and the
    HTTP and MCP front ends.

# Usage

	editor, err := strata.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	base, _ := editor.Create(ctx, "events", "")
	editor.CreateElement(ctx, base.ID, "Source", "XMLParser", "parser")
	editor.SetProperty(ctx, base.ID, "parser", "maxSize", domain.KindInteger, 10)

	child, _ := editor.Create(ctx, "events-eu", base.ID)
	editor.SetProperty(ctx, child.ID, "parser", "maxSize", domain.KindInteger, 20)
	editor.RevertToParent(ctx, child.ID, "parser", "maxSize") // back to 10

Stores are chosen with WithStore. Every store implements ports.PipelineStore
and passes the shared contract suite in pkg/ports.
*/
package strata
