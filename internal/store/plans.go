package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/replanhq/replan/internal/model"
)

// BaselineRecord is a stored baseline plan with session bookkeeping.
type BaselineRecord struct {
	ID               string
	Session          string
	Status           string
	Goal             string
	OrderedTaskIDs   []string
	ConfidenceScores map[string]float64
	DocumentIDs      []string
	RunDir           string
	CreatedAt        string
}

// Plan converts the record to its model form.
func (r BaselineRecord) Plan() model.BaselinePlan {
	return model.BaselinePlan{
		ID:               r.ID,
		OrderedTaskIDs:   r.OrderedTaskIDs,
		ConfidenceScores: r.ConfidenceScores,
		CreatedAt:        r.CreatedAt,
	}
}

// SaveBaseline stores rec as the session's active baseline, superseding any
// previously active baseline in the same transaction. A blank ID or
// CreatedAt is filled in; the stored record is returned.
func (s *Store) SaveBaseline(ctx context.Context, rec BaselineRecord) (BaselineRecord, error) {
	if rec.ID == "" {
		id, err := newID("plan")
		if err != nil {
			return BaselineRecord{}, fmt.Errorf("new baseline id: %w", err)
		}
		rec.ID = id
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	rec.Status = StatusActive

	ordered, err := marshalJSON(rec.OrderedTaskIDs)
	if err != nil {
		return BaselineRecord{}, err
	}
	scores, err := marshalJSON(rec.ConfidenceScores)
	if err != nil {
		return BaselineRecord{}, err
	}
	docs, err := marshalJSON(rec.DocumentIDs)
	if err != nil {
		return BaselineRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return BaselineRecord{}, fmt.Errorf("begin save baseline: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE baseline_plans SET status=? WHERE session=? AND status=?`,
		StatusSuperseded, rec.Session, StatusActive); err != nil {
		_ = tx.Rollback()
		return BaselineRecord{}, fmt.Errorf("supersede baseline: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO baseline_plans(baseline_id, session, status, goal, ordered_task_ids, confidence_scores, document_ids, run_dir, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Session, rec.Status, rec.Goal, ordered, scores, docs, rec.RunDir, rec.CreatedAt); err != nil {
		_ = tx.Rollback()
		return BaselineRecord{}, fmt.Errorf("insert baseline: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return BaselineRecord{}, fmt.Errorf("commit save baseline: %w", err)
	}
	return rec, nil
}

const baselineColumns = `baseline_id, session, status, goal, ordered_task_ids, confidence_scores, document_ids, run_dir, created_at`

// ActiveBaseline returns the session's current active baseline, or
// ErrNotFound when no full plan has been stored yet.
func (s *Store) ActiveBaseline(ctx context.Context, session string) (BaselineRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+baselineColumns+` FROM baseline_plans
		WHERE session=? AND status=? ORDER BY created_at DESC LIMIT 1`, session, StatusActive)
	return scanBaseline(row)
}

// GetBaseline returns a baseline by id, or ErrNotFound.
func (s *Store) GetBaseline(ctx context.Context, baselineID string) (BaselineRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+baselineColumns+` FROM baseline_plans WHERE baseline_id=?`, baselineID)
	return scanBaseline(row)
}

// ListBaselines returns the session's baselines, newest first.
func (s *Store) ListBaselines(ctx context.Context, session string) ([]BaselineRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+baselineColumns+` FROM baseline_plans
		WHERE session=? ORDER BY created_at DESC, baseline_id DESC`, session)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []BaselineRecord
	for rows.Next() {
		rec, err := scanBaseline(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baselines: %w", err)
	}
	return recs, nil
}

func scanBaseline(row rowScanner) (BaselineRecord, error) {
	var rec BaselineRecord
	var ordered, scores, docs string
	err := row.Scan(&rec.ID, &rec.Session, &rec.Status, &rec.Goal, &ordered, &scores, &docs, &rec.RunDir, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return BaselineRecord{}, ErrNotFound
	}
	if err != nil {
		return BaselineRecord{}, fmt.Errorf("scan baseline: %w", err)
	}
	if err := json.Unmarshal([]byte(ordered), &rec.OrderedTaskIDs); err != nil {
		return BaselineRecord{}, fmt.Errorf("decode ordered_task_ids for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(scores), &rec.ConfidenceScores); err != nil {
		return BaselineRecord{}, fmt.Errorf("decode confidence_scores for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(docs), &rec.DocumentIDs); err != nil {
		return BaselineRecord{}, fmt.Errorf("decode document_ids for %s: %w", rec.ID, err)
	}
	return rec, nil
}

// UpdateBaselineOrder rewrites a baseline's task ordering and confidence
// scores in place, used when tasks are spliced into an existing plan.
func (s *Store) UpdateBaselineOrder(ctx context.Context, baselineID string, orderedTaskIDs []string, confidenceScores map[string]float64) error {
	ordered, err := marshalJSON(orderedTaskIDs)
	if err != nil {
		return err
	}
	scores, err := marshalJSON(confidenceScores)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE baseline_plans SET ordered_task_ids=?, confidence_scores=? WHERE baseline_id=?`,
		ordered, scores, baselineID)
	if err != nil {
		return fmt.Errorf("update baseline order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkBaselineStale flags a baseline as expired without deleting it.
func (s *Store) MarkBaselineStale(ctx context.Context, baselineID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE baseline_plans SET status=? WHERE baseline_id=?`, StatusStale, baselineID)
	if err != nil {
		return fmt.Errorf("mark baseline stale: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustedRecord is a stored reflection-adjusted plan.
type AdjustedRecord struct {
	BaselineID       string
	OrderedTaskIDs   []string
	ConfidenceScores map[string]float64
	Diff             model.PlanDiff
	Metadata         model.AdjustmentMetadata
	CreatedAt        string
}

// Plan converts the record to its model form.
func (r AdjustedRecord) Plan() model.AdjustedPlan {
	return model.AdjustedPlan{
		BaselineID:       r.BaselineID,
		OrderedTaskIDs:   r.OrderedTaskIDs,
		ConfidenceScores: r.ConfidenceScores,
		Diff:             r.Diff,
		Metadata:         r.Metadata,
	}
}

// SaveAdjusted appends an adjusted plan for its baseline.
func (s *Store) SaveAdjusted(ctx context.Context, rec AdjustedRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	ordered, err := marshalJSON(rec.OrderedTaskIDs)
	if err != nil {
		return err
	}
	scores, err := marshalJSON(rec.ConfidenceScores)
	if err != nil {
		return err
	}
	diff, err := marshalJSON(rec.Diff)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(rec.Metadata)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO adjusted_plans(baseline_id, ordered_task_ids, confidence_scores, diff_json, metadata_json, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		rec.BaselineID, ordered, scores, diff, metadata, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert adjusted plan: %w", err)
	}
	return nil
}

// LatestAdjusted returns the most recent adjusted plan for a baseline, or
// ErrNotFound when the baseline has never been adjusted.
func (s *Store) LatestAdjusted(ctx context.Context, baselineID string) (AdjustedRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT baseline_id, ordered_task_ids, confidence_scores, diff_json, metadata_json, created_at
		FROM adjusted_plans WHERE baseline_id=? ORDER BY id DESC LIMIT 1`, baselineID)

	var rec AdjustedRecord
	var ordered, scores, diff, metadata string
	err := row.Scan(&rec.BaselineID, &ordered, &scores, &diff, &metadata, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return AdjustedRecord{}, ErrNotFound
	}
	if err != nil {
		return AdjustedRecord{}, fmt.Errorf("scan adjusted plan: %w", err)
	}
	if err := json.Unmarshal([]byte(ordered), &rec.OrderedTaskIDs); err != nil {
		return AdjustedRecord{}, fmt.Errorf("decode ordered_task_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &rec.ConfidenceScores); err != nil {
		return AdjustedRecord{}, fmt.Errorf("decode confidence_scores: %w", err)
	}
	if err := json.Unmarshal([]byte(diff), &rec.Diff); err != nil {
		return AdjustedRecord{}, fmt.Errorf("decode diff: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return AdjustedRecord{}, fmt.Errorf("decode metadata: %w", err)
	}
	return rec, nil
}
