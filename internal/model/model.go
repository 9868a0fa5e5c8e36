package model

import (
	"fmt"
	"strings"
	"time"
)

// Task is a single unit of work in the task corpus.
type Task struct {
	ID             string   `json:"id" yaml:"id"`
	Text           string   `json:"text" yaml:"text"`
	EstimatedHours float64  `json:"estimated_hours" yaml:"estimated_hours"`
	DependsOn      []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	DocumentID     string   `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Source         string   `json:"source,omitempty" yaml:"source,omitempty"`
	LNOCategory    string   `json:"lno_category,omitempty" yaml:"lno_category,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("task text is required")
	}
	if t.EstimatedHours <= 0 {
		return fmt.Errorf("estimated hours must be a positive number")
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.DependsOn != nil {
		out.DependsOn = make([]string, len(t.DependsOn))
		copy(out.DependsOn, t.DependsOn)
	}
	return out
}

// CloneTasks returns a deep copy of a task slice.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// Reflection is a timestamped prioritization note written by the user.
type Reflection struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"created_at"`
	IsActive  bool      `json:"is_active"`
	Embedding []float32 `json:"-"`
}

func (r Reflection) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("reflection text is required")
	}
	return nil
}

// BaselinePlan is the immutable snapshot produced by a full planning run.
type BaselinePlan struct {
	ID               string             `json:"id,omitempty"`
	OrderedTaskIDs   []string           `json:"ordered_task_ids"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	CreatedAt        string             `json:"created_at"`
}

// AgeHours reports the plan age relative to now. The second return is false
// when the created_at timestamp cannot be parsed.
func (p *BaselinePlan) AgeHours(now time.Time) (float64, bool) {
	ts, ok := ParseTime(p.CreatedAt)
	if !ok {
		return 0, false
	}
	return now.Sub(ts).Hours(), true
}

// Rank returns the 1-indexed position of a task in the baseline ordering,
// or 0 when the task is not part of the plan.
func (p *BaselinePlan) Rank(taskID string) int {
	for i, id := range p.OrderedTaskIDs {
		if id == taskID {
			return i + 1
		}
	}
	return 0
}

// AdjustedPlan is a reordering of a baseline plan driven by active
// reflections. It never adds or removes tasks.
type AdjustedPlan struct {
	BaselineID       string             `json:"baseline_id,omitempty"`
	OrderedTaskIDs   []string           `json:"ordered_task_ids"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
	Diff             PlanDiff           `json:"diff"`
	Metadata         AdjustmentMetadata `json:"metadata"`
}

// PlanDiff records how an adjusted plan differs from its baseline.
type PlanDiff struct {
	Moved    []RankMove   `json:"moved"`
	Filtered []RankFilter `json:"filtered"`
}

// RankMove records one task changing rank. Ranks are 1-indexed.
type RankMove struct {
	TaskID string `json:"task_id"`
	From   int    `json:"from"`
	To     int    `json:"to"`
	Reason string `json:"reason"`
}

// RankFilter records a task excluded from the adjusted ordering. Reflection
// adjustment demotes but never filters, so these come only from explicit
// exclusions during a full run.
type RankFilter struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

// ReflectionInfluence reports how much weight one reflection carried during
// an adjustment. AgeHours is nil when the reflection timestamp is unparsable.
type ReflectionInfluence struct {
	ReflectionID string   `json:"reflection_id"`
	Text         string   `json:"text"`
	Weight       float64  `json:"recency_weight"`
	AgeHours     *float64 `json:"age_hours"`
}

// AdjustmentMetadata describes one adjustment pass.
type AdjustmentMetadata struct {
	Reflections           []ReflectionInfluence `json:"reflections"`
	TaskCount             int                   `json:"task_count"`
	ActiveReflectionCount int                   `json:"active_reflection_count"`
	BoostedCount          int                   `json:"boosted_count"`
	PenalizedCount        int                   `json:"penalized_count"`
	StaleBaseline         bool                  `json:"stale_baseline"`
	Warning               string                `json:"warning,omitempty"`
	Duration              time.Duration         `json:"duration_ns"`
}

// TaskSummary is the compact task projection handed to the planner.
type TaskSummary struct {
	TaskID      string `json:"task_id"`
	TaskText    string `json:"task_text"`
	DocumentID  string `json:"document_id,omitempty"`
	Source      string `json:"source,omitempty"`
	LNOCategory string `json:"lno_category,omitempty"`
}

// Summarize projects a task into its planner summary.
func Summarize(t Task) TaskSummary {
	return TaskSummary{
		TaskID:      t.ID,
		TaskText:    t.Text,
		DocumentID:  t.DocumentID,
		Source:      t.Source,
		LNOCategory: t.LNOCategory,
	}
}

// timeLayouts are the accepted created_at formats: RFC3339 as written by the
// API surfaces and the sqlite datetime('now') layout written by the stores.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a created_at timestamp. The second return is false when
// no known layout matches; callers degrade instead of failing.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
