// Package middleware provides composable middleware around job handler
// execution. Middleware wraps handler calls synchronously and can
// recover from panics, log, or add timing around the dispatch.
package middleware

import (
	"context"

	"github.com/scribeq/scribeq/job"
)

// Handler is the terminal function that executes the job's handler.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being executed, and the next handler to
// call. Middleware MUST call next to continue the chain unless
// short-circuiting on error.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
