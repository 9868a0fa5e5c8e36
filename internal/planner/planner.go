// Package planner defines the boundary to the expensive full-planning agent
// and the heuristic deciding when its output deserves a second look.
package planner

import "context"

// Planner produces a baseline plan from the incremental context payload.
// The second return is the run directory holding the invocation artifacts,
// empty when the implementation keeps none. Implementations are expected to
// be slow and expensive; nothing on the reflection-adjustment path may call
// one.
type Planner interface {
	Plan(ctx context.Context, req Request) (*Result, string, error)
}
