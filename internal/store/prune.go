package store

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RetentionPolicy controls baseline cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
	Skipped    int
}

// PruneBaselines deletes old superseded and stale baselines along with their
// planner artifacts. The active baseline is always kept; adjusted plans are
// removed with their baseline. A zero policy prunes nothing.
func (s *Store) PruneBaselines(ctx context.Context, session string, policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT baseline_id, status, run_dir, created_at
		FROM baseline_plans WHERE session=? ORDER BY created_at DESC`, session)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list baselines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type baselineRow struct {
		id        string
		status    string
		runDir    string
		createdAt time.Time
		parseErr  error
	}
	var baselines []baselineRow
	for rows.Next() {
		var id, status, runDir, createdAt string
		if err := rows.Scan(&id, &status, &runDir, &createdAt); err != nil {
			return PruneResult{}, fmt.Errorf("scan baseline: %w", err)
		}
		parsed, parseErr := time.Parse(time.RFC3339, createdAt)
		baselines = append(baselines, baselineRow{id: id, status: status, runDir: runDir, createdAt: parsed, parseErr: parseErr})
	}
	if err := rows.Err(); err != nil {
		return PruneResult{}, fmt.Errorf("iterate baselines: %w", err)
	}

	res := PruneResult{Considered: len(baselines)}
	for idx, row := range baselines {
		keep := false
		if row.status == StatusActive {
			keep = true
		}
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 {
			if row.parseErr != nil {
				keep = true
			} else if row.createdAt.After(cutoff) {
				keep = true
			}
		}
		if keep {
			res.Kept++
			continue
		}
		if dryRun {
			res.Deleted++
			continue
		}
		if row.runDir != "" {
			if err := os.RemoveAll(row.runDir); err != nil && !os.IsNotExist(err) {
				res.Skipped++
				continue
			}
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM baseline_plans WHERE baseline_id=?`, row.id); err != nil {
			return res, fmt.Errorf("delete baseline %s: %w", row.id, err)
		}
		res.Deleted++
	}
	return res, nil
}
