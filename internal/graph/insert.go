// Package graph mutates and inspects the task dependency graph.
package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/replanhq/replan/internal/model"
)

// StartOfPlan is the sentinel predecessor id meaning the gap sits before the
// first task, so the bridging chain starts with no dependencies.
const StartOfPlan = "000"

// SourceGapFill marks tasks created by bridging insertion.
const SourceGapFill = "gap_fill"

// ErrCircularDependency is returned when a mutation would make the task
// graph cyclic. The original plan is never modified in that case.
var ErrCircularDependency = errors.New("circular dependency detected")

// Gap identifies where bridging work belongs: between a predecessor task and
// a successor task that currently lacks the intermediate steps.
type Gap struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
}

func (g Gap) Validate() error {
	if strings.TrimSpace(g.PredecessorID) == "" {
		return fmt.Errorf("gap predecessor id is required")
	}
	if strings.TrimSpace(g.SuccessorID) == "" {
		return fmt.Errorf("gap successor id is required")
	}
	return nil
}

// BridgingTask describes one task to insert into a gap.
type BridgingTask struct {
	Text           string  `json:"text"`
	EstimatedHours float64 `json:"estimated_hours"`
}

func (b BridgingTask) Validate() error {
	if strings.TrimSpace(b.Text) == "" {
		return fmt.Errorf("bridging task text is required")
	}
	if b.EstimatedHours <= 0 {
		return fmt.Errorf("bridging task estimated hours must be a positive number")
	}
	return nil
}

// InsertBridgingTasks inserts a dependency chain of new tasks between the
// gap's predecessor and successor. New ids are allocated sequentially after
// the predecessor's numeric id, zero-padded, skipping ids already in use.
// The successor's dependency on the predecessor is replaced in place by the
// last new task; when the successor never depended on the predecessor, the
// dependency is appended instead.
//
// The input plan is left untouched: the mutation happens on a copy which is
// only returned after the updated graph passes the cycle check. An empty
// bridging list is a valid no-op.
func InsertBridgingTasks(plan []model.Task, gap Gap, bridging []BridgingTask) ([]model.Task, []string, error) {
	if err := gap.Validate(); err != nil {
		return nil, nil, err
	}
	for i := range bridging {
		if err := bridging[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("bridging task[%d]: %w", i, err)
		}
	}

	updated := model.CloneTasks(plan)
	if len(bridging) == 0 {
		return updated, nil, nil
	}

	predIdx := -1
	if gap.PredecessorID != StartOfPlan {
		predIdx = indexOf(updated, gap.PredecessorID)
		if predIdx < 0 {
			return nil, nil, fmt.Errorf("predecessor task %q not found in plan", gap.PredecessorID)
		}
	}
	succIdx := indexOf(updated, gap.SuccessorID)
	if succIdx < 0 {
		return nil, nil, fmt.Errorf("successor task %q not found in plan", gap.SuccessorID)
	}

	used := make(map[string]bool, len(updated))
	for _, t := range updated {
		used[t.ID] = true
	}
	ids := allocateIDs(gap.PredecessorID, used, len(bridging))

	createdAt := time.Now().UTC().Format(time.RFC3339)
	inserted := make([]model.Task, len(bridging))
	for i, b := range bridging {
		t := model.Task{
			ID:             ids[i],
			Text:           b.Text,
			EstimatedHours: b.EstimatedHours,
			Source:         SourceGapFill,
			CreatedAt:      createdAt,
		}
		if i > 0 {
			t.DependsOn = []string{ids[i-1]}
		} else if gap.PredecessorID != StartOfPlan {
			t.DependsOn = []string{gap.PredecessorID}
		}
		inserted[i] = t
	}

	rewireSuccessor(&updated[succIdx], gap.PredecessorID, ids[len(ids)-1])

	at := predIdx + 1
	updated = append(updated[:at], append(inserted, updated[at:]...)...)

	if DetectCycle(updated) {
		return nil, nil, fmt.Errorf("insert between %q and %q: %w", gap.PredecessorID, gap.SuccessorID, ErrCircularDependency)
	}
	return updated, ids, nil
}

// rewireSuccessor swaps the successor's dependency on the predecessor for
// the last bridging task, keeping its position in the list.
func rewireSuccessor(succ *model.Task, predecessorID, lastID string) {
	for i, dep := range succ.DependsOn {
		if dep == predecessorID {
			succ.DependsOn[i] = lastID
			return
		}
	}
	succ.DependsOn = append(succ.DependsOn, lastID)
}

// allocateIDs hands out n unused ids counting up from the predecessor,
// padded to the predecessor's width. A non-numeric predecessor falls back to
// counting from the highest numeric id in use.
func allocateIDs(predecessorID string, used map[string]bool, n int) []string {
	width := len(predecessorID)
	if width < 3 {
		width = 3
	}
	next, err := strconv.Atoi(predecessorID)
	if err != nil {
		next = 0
		for id := range used {
			if v, convErr := strconv.Atoi(id); convErr == nil && v > next {
				next = v
			}
		}
	}

	ids := make([]string, 0, n)
	for len(ids) < n {
		next++
		id := fmt.Sprintf("%0*d", width, next)
		if used[id] {
			continue
		}
		used[id] = true
		ids = append(ids, id)
	}
	return ids
}

func indexOf(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
