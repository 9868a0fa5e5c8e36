package graph

import (
	"fmt"

	"github.com/gammazero/toposort"

	"github.com/replanhq/replan/internal/model"
)

// ExecutionOrder returns the task ids sorted so that every task appears
// after its prerequisites. References to unknown ids are skipped, matching
// DetectCycle. Cyclic graphs return an error.
func ExecutionOrder(tasks []model.Task) ([]string, error) {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	var edges []toposort.Edge
	for _, t := range tasks {
		deps := 0
		for _, dep := range t.DependsOn {
			if !known[dep] {
				continue
			}
			edges = append(edges, toposort.Edge{dep, t.ID})
			deps++
		}
		if deps == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains a cycle: %w", err)
	}

	order := make([]string, 0, len(tasks))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}
