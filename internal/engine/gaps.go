package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/replanhq/replan/internal/graph"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/store"
)

// Confidence seeded for bridging tasks spliced into a baseline; they have
// not been through a full planning pass yet.
const bridgingConfidence = 0.5

// InsertGapTasks inserts a bridging chain into the session's task graph and
// splices the new ids into the active baseline right after the predecessor,
// without invalidating the rest of the plan. Returns the updated corpus and
// the ids of the inserted tasks.
func (e *Engine) InsertGapTasks(ctx context.Context, session string, gap graph.Gap, bridging []graph.BridgingTask) ([]model.Task, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks, err := e.store.ListTasks(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	updated, newIDs, err := graph.InsertBridgingTasks(tasks, gap, bridging)
	if err != nil {
		return nil, nil, err
	}
	if len(newIDs) == 0 {
		return updated, nil, nil
	}

	changed := changedTasks(tasks, updated)
	if err := e.store.UpsertTasks(ctx, session, changed); err != nil {
		return nil, nil, err
	}
	if err := e.ensureTaskEmbeddings(ctx, session, updated); err != nil {
		e.logger.Warn().Err(err).Msg("bridging task embedding failed; reflection adjustment will have partial signal")
	}

	rec, err := e.store.ActiveBaseline(ctx, session)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug().Int("inserted", len(newIDs)).Msg("gap filled without a baseline to splice")
		return updated, newIDs, nil
	}
	if err != nil {
		return nil, nil, err
	}

	ordered, scores := spliceBaseline(rec, gap.PredecessorID, newIDs)
	if err := e.store.UpdateBaselineOrder(ctx, rec.ID, ordered, scores); err != nil {
		return nil, nil, fmt.Errorf("splice baseline %s: %w", rec.ID, err)
	}

	e.logger.Info().
		Str("baseline", rec.ID).
		Str("predecessor", gap.PredecessorID).
		Str("successor", gap.SuccessorID).
		Int("inserted", len(newIDs)).
		Msg("bridging tasks spliced into baseline")
	return updated, newIDs, nil
}

// spliceBaseline places newIDs immediately after the predecessor in the
// baseline ordering, seeding each with bridgingConfidence. The start-of-plan
// sentinel splices at the front; a predecessor the baseline never included
// splices at the end.
func spliceBaseline(rec store.BaselineRecord, predecessorID string, newIDs []string) ([]string, map[string]float64) {
	at := len(rec.OrderedTaskIDs)
	if predecessorID == graph.StartOfPlan {
		at = 0
	} else {
		for i, id := range rec.OrderedTaskIDs {
			if id == predecessorID {
				at = i + 1
				break
			}
		}
	}

	ordered := make([]string, 0, len(rec.OrderedTaskIDs)+len(newIDs))
	ordered = append(ordered, rec.OrderedTaskIDs[:at]...)
	ordered = append(ordered, newIDs...)
	ordered = append(ordered, rec.OrderedTaskIDs[at:]...)

	scores := make(map[string]float64, len(rec.ConfidenceScores)+len(newIDs))
	for id, score := range rec.ConfidenceScores {
		scores[id] = score
	}
	for _, id := range newIDs {
		scores[id] = bridgingConfidence
	}
	return ordered, scores
}

// changedTasks returns the rows that differ from the original corpus: the
// inserted tasks plus any rewired successors.
func changedTasks(before, after []model.Task) []model.Task {
	prev := make(map[string]model.Task, len(before))
	for _, t := range before {
		prev[t.ID] = t
	}

	var out []model.Task
	for _, t := range after {
		old, ok := prev[t.ID]
		if !ok || taskChanged(old, t) {
			out = append(out, t)
		}
	}
	return out
}
