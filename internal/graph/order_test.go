package graph

import (
	"strings"
	"testing"

	"github.com/replanhq/replan/internal/model"
)

func TestExecutionOrder_PrerequisitesComeFirst(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		testTask("003", "002"),
		testTask("001"),
		testTask("002", "001"),
		testTask("004", "001", "003"),
	}

	order, err := ExecutionOrder(tasks)
	if err != nil {
		t.Fatalf("ExecutionOrder() error = %v", err)
	}
	if len(order) != len(tasks) {
		t.Fatalf("len(order) = %d, want %d", len(order), len(tasks))
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			if pos[dep] > pos[task.ID] {
				t.Fatalf("order %v places %q before its prerequisite %q", order, task.ID, dep)
			}
		}
	}
}

func TestExecutionOrder_IgnoresDanglingReferences(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		testTask("001", "999"),
		testTask("002", "001"),
	}

	order, err := ExecutionOrder(tasks)
	if err != nil {
		t.Fatalf("ExecutionOrder() error = %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("len(order) = %d, want 2", len(order))
	}
}

func TestExecutionOrder_RejectsCycle(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		testTask("001", "002"),
		testTask("002", "001"),
	}

	_, err := ExecutionOrder(tasks)
	if err == nil {
		t.Fatal("ExecutionOrder() returned nil error, want cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("error = %q, want mention of cycle", err)
	}
}
