// Package reconcile keeps stored plan state consistent with the filesystem.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/rank"
	"github.com/replanhq/replan/internal/store"
)

// Run reconciles the database with the filesystem. Active baselines past
// the expiry window are marked stale, baseline rows pointing at vanished
// run directories get the reference cleared, and run directories no
// baseline references anymore are removed. Callers hold the session lock.
func Run(ctx context.Context, db *sql.DB, replanDir string) error {
	if err := expireBaselines(ctx, db, time.Now().UTC()); err != nil {
		return err
	}
	return cleanRunDirs(ctx, db, replanDir)
}

func expireBaselines(ctx context.Context, db *sql.DB, now time.Time) error {
	rows, err := db.QueryContext(ctx,
		`SELECT baseline_id, created_at FROM baseline_plans WHERE status = ?`, store.StatusActive)
	if err != nil {
		return fmt.Errorf("list active baselines: %w", err)
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var id, createdAt string
		if err := rows.Scan(&id, &createdAt); err != nil {
			return fmt.Errorf("scan baseline: %w", err)
		}
		ts, ok := model.ParseTime(createdAt)
		if !ok {
			continue
		}
		if now.Sub(ts) > rank.ExpireAfter {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	st := store.New(db)
	for _, id := range expired {
		if err := st.MarkBaselineStale(ctx, id); err != nil {
			return fmt.Errorf("expire baseline %s: %w", id, err)
		}
		log.Warn().Str("baseline", id).Msg("active baseline expired; full re-plan required")
	}
	return nil
}

func cleanRunDirs(ctx context.Context, db *sql.DB, replanDir string) error {
	rows, err := db.QueryContext(ctx,
		`SELECT baseline_id, run_dir FROM baseline_plans WHERE run_dir != ''`)
	if err != nil {
		return fmt.Errorf("list run dirs: %w", err)
	}
	defer rows.Close()

	type ref struct{ id, dir string }
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.id, &r.dir); err != nil {
			return fmt.Errorf("scan run dir: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	referenced := make(map[string]bool, len(refs))
	for _, r := range refs {
		if _, err := os.Stat(r.dir); errors.Is(err, fs.ErrNotExist) {
			if _, err := db.ExecContext(ctx,
				`UPDATE baseline_plans SET run_dir = '' WHERE baseline_id = ?`, r.id); err != nil {
				return fmt.Errorf("clear run dir for %s: %w", r.id, err)
			}
			log.Debug().Str("baseline", r.id).Str("dir", r.dir).Msg("run dir missing; reference cleared")
			continue
		}
		referenced[r.dir] = true
	}

	plansDir := filepath.Join(replanDir, "plans")
	entries, err := os.ReadDir(plansDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read plans dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(plansDir, entry.Name())
		if referenced[dir] {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to remove orphaned run dir")
			continue
		}
		log.Debug().Str("dir", dir).Msg("removed orphaned run dir")
	}
	return nil
}
