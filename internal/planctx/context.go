// Package planctx bounds the payload sent to the full planner by splitting
// the task corpus into an already-summarized baseline and the new tasks.
package planctx

import (
	"strings"
	"time"

	"github.com/replanhq/replan/internal/model"
)

// Token cost heuristics for the savings estimate. Observability numbers, not
// billed usage.
const (
	TokensPerTask         = 50
	SummaryOverheadTokens = 100
)

const maxRepresentativeTasks = 3

// BaselineSummary is the compressed stand-in for tasks the planner has
// already seen. AgeHours is nil when the baseline timestamp is unparsable.
type BaselineSummary struct {
	DocumentIDs           []string `json:"document_ids"`
	DocumentCount         int      `json:"document_count"`
	TaskCount             int      `json:"task_count"`
	RepresentativeTaskIDs []string `json:"representative_task_ids"`
	CreatedAt             string   `json:"created_at"`
	AgeHours              *float64 `json:"age_hours"`
}

// Context is the incremental planner payload.
type Context struct {
	IsFirstRun           bool             `json:"is_first_run"`
	Baseline             *BaselineSummary `json:"baseline"`
	NewTasks             []model.Task     `json:"new_tasks"`
	AllTasks             []model.Task     `json:"all_tasks"`
	TokenSavingsEstimate int              `json:"token_savings_estimate"`
}

// Build partitions the corpus against the documents remembered from the last
// full run. Without a baseline every task is new and the build is a first
// run. A task with an empty document_id is always treated as new so nothing
// silently drops out of the planner payload.
func Build(allTasks []model.Task, baselineDocIDs []string, baselineCreatedAt string, now time.Time) Context {
	all := model.CloneTasks(allTasks)
	if len(baselineDocIDs) == 0 || strings.TrimSpace(baselineCreatedAt) == "" {
		return Context{
			IsFirstRun: true,
			NewTasks:   model.CloneTasks(allTasks),
			AllTasks:   all,
		}
	}

	seen := make(map[string]bool, len(baselineDocIDs))
	for _, id := range baselineDocIDs {
		seen[id] = true
	}

	newTasks := make([]model.Task, 0, len(all))
	baselineCount := 0
	representatives := make([]string, 0, maxRepresentativeTasks)
	for _, t := range all {
		if t.DocumentID != "" && seen[t.DocumentID] {
			baselineCount++
			if len(representatives) < maxRepresentativeTasks {
				representatives = append(representatives, t.ID)
			}
			continue
		}
		newTasks = append(newTasks, t)
	}

	savings := baselineCount*TokensPerTask - SummaryOverheadTokens
	if savings < 0 {
		savings = 0
	}

	summary := &BaselineSummary{
		DocumentIDs:           append([]string(nil), baselineDocIDs...),
		DocumentCount:         len(baselineDocIDs),
		TaskCount:             baselineCount,
		RepresentativeTaskIDs: representatives,
		CreatedAt:             baselineCreatedAt,
	}
	if ts, ok := model.ParseTime(baselineCreatedAt); ok {
		hours := now.Sub(ts).Hours()
		summary.AgeHours = &hours
	}

	return Context{
		Baseline:             summary,
		NewTasks:             newTasks,
		AllTasks:             all,
		TokenSavingsEstimate: savings,
	}
}
