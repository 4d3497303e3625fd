package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scribeq/scribeq/id"
)

// Definition is a typed job definition. T is the node-parameter type:
// the matching workflow node's data is decoded into T before the typed
// handler runs, so handlers read options like model size or language
// from a struct instead of a raw map.
type Definition[T any] struct {
	// Type is the job type this definition handles.
	Type string

	// Handler processes the payload with its decoded node parameters.
	Handler func(ctx context.Context, p Payload, params T) (*Result, error)
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](jobType string, handler func(ctx context.Context, p Payload, params T) (*Result, error)) *Definition[T] {
	return &Definition[T]{Type: jobType, Handler: handler}
}

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in a closure that decodes the matching workflow
// node's parameters into T before calling it. Absent or unmatched
// workflow configuration yields T's zero value.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	r.Register(def.Type, func(ctx context.Context, p Payload, tenantID id.TenantID) (*Result, error) {
		var params T
		if raw := NodeParams(p.WorkflowConfig, def.Type); raw != nil {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("scribeq/job: encode node params for %q: %w", def.Type, err)
			}
			if err := json.Unmarshal(data, &params); err != nil {
				return nil, fmt.Errorf("scribeq/job: decode node params for %q: %w", def.Type, err)
			}
		}
		return def.Handler(ctx, p, params)
	})
}
