/*
Package ports defines the driven ports (interfaces) of the Strata editor.

These interfaces decouple the pipeline edit logic from external implementations,
allowing the editor to work with various storage backends and lock providers.

# Key Interfaces

  - PipelineStore: Responsible for persisting and loading pipeline Documents.
  - DistributedLocker: Provides distributed locking for concurrent edits of one pipeline.
  - ElementRegistry: Resolves element type names to their definitions.
*/
package ports
