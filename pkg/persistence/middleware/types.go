// Package middleware wraps a ports.PipelineStore with cross-cutting behavior.
package middleware

import "github.com/aretw0/strata/pkg/ports"

// Middleware allows wrapping a PipelineStore to add behavior.
type Middleware func(ports.PipelineStore) ports.PipelineStore

// Chain applies mws to store so that the first middleware is the outermost.
func Chain(store ports.PipelineStore, mws ...Middleware) ports.PipelineStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
