package engine

import (
	"context"
	"errors"
	"time"

	"github.com/replanhq/replan/internal/graph"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/planctx"
	"github.com/replanhq/replan/internal/rank"
	"github.com/replanhq/replan/internal/store"
)

// Status summarizes a session's planning state.
type Status struct {
	Session               string          `json:"session"`
	TaskCount             int             `json:"task_count"`
	ReflectionCount       int             `json:"reflection_count"`
	ActiveReflectionCount int             `json:"active_reflection_count"`
	Baseline              *BaselineStatus `json:"baseline,omitempty"`
	HasAdjusted           bool            `json:"has_adjusted"`
}

// BaselineStatus describes the active baseline, including whether it has
// drifted past the staleness or expiry windows.
type BaselineStatus struct {
	ID        string   `json:"id"`
	Goal      string   `json:"goal,omitempty"`
	CreatedAt string   `json:"created_at"`
	AgeHours  *float64 `json:"age_hours,omitempty"`
	Stale     bool     `json:"stale"`
	Expired   bool     `json:"expired"`
	TaskCount int      `json:"task_count"`
}

// PlanStatus reports the session's current planning state.
func (e *Engine) PlanStatus(ctx context.Context, session string) (Status, error) {
	tasks, err := e.store.ListTasks(ctx, session)
	if err != nil {
		return Status{}, err
	}
	reflections, err := e.store.ListReflections(ctx, session)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Session:         session,
		TaskCount:       len(tasks),
		ReflectionCount: len(reflections),
	}
	for _, r := range reflections {
		if r.IsActive {
			st.ActiveReflectionCount++
		}
	}

	rec, err := e.store.ActiveBaseline(ctx, session)
	if errors.Is(err, store.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return Status{}, err
	}

	bs := &BaselineStatus{
		ID:        rec.ID,
		Goal:      rec.Goal,
		CreatedAt: rec.CreatedAt,
		TaskCount: len(rec.OrderedTaskIDs),
	}
	if ts, ok := model.ParseTime(rec.CreatedAt); ok {
		age := time.Now().UTC().Sub(ts)
		hours := age.Hours()
		bs.AgeHours = &hours
		bs.Stale = age > rank.StaleAfter
		bs.Expired = age > rank.ExpireAfter
	}
	st.Baseline = bs

	if _, err := e.store.LatestAdjusted(ctx, rec.ID); err == nil {
		st.HasAdjusted = true
	} else if !errors.Is(err, store.ErrNotFound) {
		return Status{}, err
	}
	return st, nil
}

// BuildContext assembles the incremental planner payload for inspection
// without invoking the planner.
func (e *Engine) BuildContext(ctx context.Context, session string) (planctx.Context, error) {
	tasks, err := e.store.ListTasks(ctx, session)
	if err != nil {
		return planctx.Context{}, err
	}

	var baselineDocs []string
	var baselineCreatedAt string
	rec, err := e.store.ActiveBaseline(ctx, session)
	switch {
	case err == nil:
		baselineDocs = rec.DocumentIDs
		baselineCreatedAt = rec.CreatedAt
	case errors.Is(err, store.ErrNotFound):
	default:
		return planctx.Context{}, err
	}

	return planctx.Build(tasks, baselineDocs, baselineCreatedAt, time.Now().UTC()), nil
}

// ExecutionOrder returns a dependency-respecting order over the whole
// corpus, independent of any baseline.
func (e *Engine) ExecutionOrder(ctx context.Context, session string) ([]string, error) {
	tasks, err := e.store.ListTasks(ctx, session)
	if err != nil {
		return nil, err
	}
	return graph.ExecutionOrder(tasks)
}

// Tasks returns the session's task corpus ordered by id.
func (e *Engine) Tasks(ctx context.Context, session string) ([]model.Task, error) {
	return e.store.ListTasks(ctx, session)
}

// Store exposes the backing store for commands that operate on it directly.
func (e *Engine) Store() *store.Store {
	return e.store
}
