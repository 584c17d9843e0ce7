package middleware

import "github.com/aretw0/covidash/pkg/ports"

// Middleware allows wrapping a SelectionStore to add behavior.
type Middleware func(ports.SelectionStore) ports.SelectionStore

// Chain wraps store so that the first middleware is the outermost.
func Chain(store ports.SelectionStore, mws ...Middleware) ports.SelectionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
