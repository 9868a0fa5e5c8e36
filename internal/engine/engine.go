// Package engine orchestrates planning, adjustment, and graph edits for
// replan sessions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/replanhq/replan/internal/config"
	"github.com/replanhq/replan/internal/embedding"
	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/planctx"
	"github.com/replanhq/replan/internal/planner"
	"github.com/replanhq/replan/internal/rank"
	"github.com/replanhq/replan/internal/store"
)

// ErrNoTasks is returned when planning is requested on an empty corpus.
var ErrNoTasks = errors.New("no tasks to plan: add or import tasks first")

// Engine wires the stores, the embedder, and the planning agent together.
// Mutating operations are serialized per process; cross-process exclusion
// is the session lock's job.
type Engine struct {
	logger   zerolog.Logger
	cfg      config.Config
	store    *store.Store
	embedder embedding.Embedder
	planner  planner.Planner
	adjuster *rank.Adjuster

	mu sync.Mutex
}

// New creates an engine. The adjuster thresholds come from cfg.Ranking;
// zero values fall back to the calibrated defaults.
func New(logger zerolog.Logger, cfg config.Config, st *store.Store, emb embedding.Embedder, pl planner.Planner) *Engine {
	thresholds := rank.Thresholds{
		Boost:   cfg.Ranking.BoostThreshold,
		Penalty: cfg.Ranking.PenaltyThreshold,
	}
	return &Engine{
		logger:   logger.With().Str("component", "engine").Logger(),
		cfg:      cfg,
		store:    st,
		embedder: emb,
		planner:  pl,
		adjuster: rank.NewAdjuster(embedding.Similarity01, thresholds),
	}
}

// RunFullPlan executes the full planning pipeline: build the incremental
// context against the current baseline, invoke the planning agent, run the
// self-check pass when the result looks weak, and persist the new baseline.
// A blank goal inherits the previous baseline's goal.
func (e *Engine) RunFullPlan(ctx context.Context, session, goal string) (store.BaselineRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks, err := e.store.ListTasks(ctx, session)
	if err != nil {
		return store.BaselineRecord{}, err
	}
	if len(tasks) == 0 {
		return store.BaselineRecord{}, ErrNoTasks
	}

	if err := e.ensureTaskEmbeddings(ctx, session, tasks); err != nil {
		e.logger.Warn().Err(err).Msg("task embedding failed; reflection adjustment will have partial signal")
	}

	var prevPlan *model.BaselinePlan
	var baselineDocs []string
	var baselineCreatedAt string
	prev, err := e.store.ActiveBaseline(ctx, session)
	switch {
	case err == nil:
		p := prev.Plan()
		prevPlan = &p
		baselineDocs = prev.DocumentIDs
		baselineCreatedAt = prev.CreatedAt
		if strings.TrimSpace(goal) == "" {
			goal = prev.Goal
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return store.BaselineRecord{}, err
	}

	pctx := planctx.Build(tasks, baselineDocs, baselineCreatedAt, time.Now().UTC())

	reflections, err := e.store.ListReflections(ctx, session)
	if err != nil {
		return store.BaselineRecord{}, err
	}
	var activeTexts []string
	for _, r := range reflections {
		if r.IsActive {
			activeTexts = append(activeTexts, r.Text)
		}
	}

	req := planner.Request{
		Goal:              goal,
		BaselineSummary:   planctx.FormatBaseline(pctx.Baseline),
		NewTasks:          summarize(pctx.NewTasks),
		ActiveReflections: activeTexts,
	}

	res, runDir, err := e.planner.Plan(ctx, req)
	if err != nil {
		return store.BaselineRecord{}, fmt.Errorf("full planning failed: %w", err)
	}

	if planner.NeedsEvaluation(res, prevPlan) && e.selfCheckEnabled() {
		e.logger.Info().Float64("confidence", res.Confidence).Msg("plan flagged for self-check")
		res, runDir = e.selfCheck(ctx, req, res, runDir, prevPlan)
	}

	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	for _, id := range res.OrderedTaskIDs {
		if !known[id] {
			return store.BaselineRecord{}, fmt.Errorf("planner referenced unknown task %q", id)
		}
	}

	saved, err := e.store.SaveBaseline(ctx, store.BaselineRecord{
		Session:          session,
		Goal:             goal,
		OrderedTaskIDs:   res.OrderedTaskIDs,
		ConfidenceScores: res.ConfidenceScores,
		DocumentIDs:      collectDocumentIDs(tasks),
		RunDir:           runDir,
	})
	if err != nil {
		return store.BaselineRecord{}, err
	}

	e.logger.Info().
		Str("baseline", saved.ID).
		Int("tasks", len(saved.OrderedTaskIDs)).
		Int("corpus", len(tasks)).
		Bool("first_run", pctx.IsFirstRun).
		Float64("confidence", res.Confidence).
		Msg("baseline plan saved")
	return saved, nil
}

// selfCheck reruns the planner once with the previous pass's corrections as
// review notes. The revision is adopted only when its confidence is not
// lower than the original.
func (e *Engine) selfCheck(ctx context.Context, req planner.Request, res *planner.Result, runDir string, prev *model.BaselinePlan) (*planner.Result, string) {
	reviewReq := req
	reviewReq.ReviewNotes = reviewNotes(res, prev)

	revised, revisedDir, err := e.planner.Plan(ctx, reviewReq)
	if err != nil {
		e.logger.Warn().Err(err).Msg("self-check pass failed; keeping first plan")
		return res, runDir
	}
	if revised.Confidence < res.Confidence {
		e.logger.Debug().
			Float64("first", res.Confidence).
			Float64("revised", revised.Confidence).
			Msg("self-check result discarded")
		return res, runDir
	}
	return revised, revisedDir
}

func reviewNotes(res *planner.Result, prev *model.BaselinePlan) string {
	notes := []string{fmt.Sprintf("Your previous pass reported confidence %.2f.", res.Confidence)}
	if len(res.OrderedTaskIDs) < planner.MinIncludedTasks {
		notes = append(notes, fmt.Sprintf("It included only %d tasks.", len(res.OrderedTaskIDs)))
	}
	if res.CorrectionsMade != "" {
		notes = append(notes, "It reported these corrections: "+res.CorrectionsMade)
	}
	if prev != nil {
		notes = append(notes, "It reordered a large share of tasks relative to the previous baseline; re-examine whether each move is justified.")
	}
	notes = append(notes, "Address each point and return the complete plan again.")
	return strings.Join(notes, " ")
}

func (e *Engine) selfCheckEnabled() bool {
	return e.cfg.Planner.SelfCheck == nil || *e.cfg.Planner.SelfCheck
}

// AdjustPlan recomputes the reflection-adjusted plan from the active
// baseline and persists it as the baseline's latest adjustment.
func (e *Engine) AdjustPlan(ctx context.Context, session string) (*model.AdjustedPlan, error) {
	rec, err := e.store.ActiveBaseline(ctx, session)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rank.ErrNoBaseline
	}
	if err != nil {
		return nil, err
	}

	reflections, err := e.store.ListReflections(ctx, session)
	if err != nil {
		return nil, err
	}
	embeddings, err := e.store.TaskEmbeddings(ctx, session)
	if err != nil {
		return nil, err
	}

	plan := rec.Plan()
	adjusted, err := e.adjuster.Adjust(&plan, reflections, embeddings, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveAdjusted(ctx, store.AdjustedRecord{
		BaselineID:       rec.ID,
		OrderedTaskIDs:   adjusted.OrderedTaskIDs,
		ConfidenceScores: adjusted.ConfidenceScores,
		Diff:             adjusted.Diff,
		Metadata:         adjusted.Metadata,
	}); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("baseline", rec.ID).
		Int("moved", len(adjusted.Diff.Moved)).
		Int("active_reflections", adjusted.Metadata.ActiveReflectionCount).
		Msg("adjusted plan recomputed")
	return adjusted, nil
}

// CurrentPlan returns the latest adjusted plan for the active baseline,
// falling back to the unadjusted baseline when no adjustment exists.
func (e *Engine) CurrentPlan(ctx context.Context, session string) (*model.AdjustedPlan, store.BaselineRecord, error) {
	rec, err := e.store.ActiveBaseline(ctx, session)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.BaselineRecord{}, rank.ErrNoBaseline
	}
	if err != nil {
		return nil, store.BaselineRecord{}, err
	}

	adj, err := e.store.LatestAdjusted(ctx, rec.ID)
	if errors.Is(err, store.ErrNotFound) {
		plan := rec.Plan()
		return &model.AdjustedPlan{
			BaselineID:       rec.ID,
			OrderedTaskIDs:   plan.OrderedTaskIDs,
			ConfidenceScores: plan.ConfidenceScores,
			Metadata:         model.AdjustmentMetadata{TaskCount: len(plan.OrderedTaskIDs)},
		}, rec, nil
	}
	if err != nil {
		return nil, store.BaselineRecord{}, err
	}
	plan := adj.Plan()
	return &plan, rec, nil
}

// ensureTaskEmbeddings embeds every task that has no stored embedding yet.
func (e *Engine) ensureTaskEmbeddings(ctx context.Context, session string, tasks []model.Task) error {
	if e.embedder == nil {
		return nil
	}
	existing, err := e.store.TaskEmbeddings(ctx, session)
	if err != nil {
		return err
	}

	var missing []model.Task
	for _, t := range tasks {
		if _, ok := existing[t.ID]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	texts := make([]string, len(missing))
	for i, t := range missing {
		texts[i] = t.Text
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d tasks: %w", len(missing), err)
	}

	out := make(map[string][]float32, len(missing))
	for i, t := range missing {
		out[t.ID] = vecs[i]
	}
	return e.store.SetTaskEmbeddings(ctx, session, out)
}

func summarize(tasks []model.Task) []model.TaskSummary {
	out := make([]model.TaskSummary, len(tasks))
	for i, t := range tasks {
		out[i] = model.Summarize(t)
	}
	return out
}

func collectDocumentIDs(tasks []model.Task) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range tasks {
		if t.DocumentID == "" || seen[t.DocumentID] {
			continue
		}
		seen[t.DocumentID] = true
		ids = append(ids, t.DocumentID)
	}
	sort.Strings(ids)
	return ids
}

func taskChanged(a, b model.Task) bool {
	return !reflect.DeepEqual(a, b)
}
