package graph

import (
	"github.com/replanhq/replan/internal/model"
)

// DetectCycle reports whether the dependency graph over the given tasks
// contains a cycle. Edges run from each entry in a task's depends_on list to
// the task itself; references to ids outside the task set are ignored.
func DetectCycle(tasks []model.Task) bool {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}

	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !known[dep] {
				continue
			}
			dependents[dep] = append(dependents[dep], t.ID)
			indegree[t.ID]++
		}
	}

	queue := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	eliminated := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		eliminated++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return eliminated != len(tasks)
}
