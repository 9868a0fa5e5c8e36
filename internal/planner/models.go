package planner

import (
	"fmt"
	"strings"

	"github.com/replanhq/replan/internal/model"
)

// Request is the planning request passed to the planning agent. The baseline
// summary and new-task records come from the incremental context builder.
// ReviewNotes is set only on a self-check pass and carries the corrections
// the previous pass reported about itself.
type Request struct {
	Goal              string              `json:"goal"`
	BaselineSummary   string              `json:"baseline_summary"`
	NewTasks          []model.TaskSummary `json:"new_tasks"`
	ActiveReflections []string            `json:"active_reflections,omitempty"`
	ReviewNotes       string              `json:"review_notes,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return fmt.Errorf("goal is required")
	}
	for i := range r.NewTasks {
		if strings.TrimSpace(r.NewTasks[i].TaskID) == "" {
			return fmt.Errorf("new task[%d]: task id is required", i)
		}
		if strings.TrimSpace(r.NewTasks[i].TaskText) == "" {
			return fmt.Errorf("new task[%d]: task text is required", i)
		}
	}
	return nil
}

// Result is the structured plan returned by the planning agent.
type Result struct {
	OrderedTaskIDs   []string           `json:"ordered_task_ids"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	InclusionReasons map[string]string  `json:"inclusion_reasons,omitempty"`
	ExclusionReasons map[string]string  `json:"exclusion_reasons,omitempty"`
	CorrectionsMade  string             `json:"corrections_made,omitempty"`
	Confidence       float64            `json:"confidence"`
}

func (r Result) Validate() error {
	if len(r.OrderedTaskIDs) == 0 {
		return fmt.Errorf("ordered task ids are required")
	}
	seen := make(map[string]bool, len(r.OrderedTaskIDs))
	for i, id := range r.OrderedTaskIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("ordered task ids[%d]: id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("ordered task ids[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1]")
	}
	for id, score := range r.ConfidenceScores {
		if score < 0 || score > 1 {
			return fmt.Errorf("confidence score for task %q must be within [0,1]", id)
		}
	}
	return nil
}
