package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	internaldb "github.com/replanhq/replan/internal/db"
	"github.com/replanhq/replan/internal/store"
)

func TestRunExpiresOverdueBaselines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	replanDir := filepath.Join(t.TempDir(), ".replan")
	db, err := internaldb.Open(filepath.Join(replanDir, "replan.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db)
	old, err := st.SaveBaseline(ctx, store.BaselineRecord{
		Session:        "alpha",
		Goal:           "old goal",
		OrderedTaskIDs: []string{"001"},
		CreatedAt:      time.Now().UTC().Add(-10 * 24 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}
	fresh, err := st.SaveBaseline(ctx, store.BaselineRecord{
		Session:        "beta",
		Goal:           "fresh goal",
		OrderedTaskIDs: []string{"001"},
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}

	if err := Run(ctx, db, replanDir); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var status string
	if err := db.QueryRowContext(ctx,
		`SELECT status FROM baseline_plans WHERE baseline_id = ?`, old.ID).Scan(&status); err != nil {
		t.Fatalf("query old baseline: %v", err)
	}
	if status != store.StatusStale {
		t.Fatalf("old baseline status = %q, want %q", status, store.StatusStale)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT status FROM baseline_plans WHERE baseline_id = ?`, fresh.ID).Scan(&status); err != nil {
		t.Fatalf("query fresh baseline: %v", err)
	}
	if status != store.StatusActive {
		t.Fatalf("fresh baseline status = %q, want %q", status, store.StatusActive)
	}

	// Second pass is idempotent.
	if err := Run(ctx, db, replanDir); err != nil {
		t.Fatalf("Run second pass returned error: %v", err)
	}
}

func TestRunCleansRunDirs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	replanDir := filepath.Join(t.TempDir(), ".replan")
	db, err := internaldb.Open(filepath.Join(replanDir, "replan.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	keptDir := filepath.Join(replanDir, "plans", "run-kept")
	orphanDir := filepath.Join(replanDir, "plans", "run-orphan")
	missingDir := filepath.Join(replanDir, "plans", "run-missing")
	for _, dir := range []string{keptDir, orphanDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create run dir: %v", err)
		}
	}

	st := store.New(db)
	kept, err := st.SaveBaseline(ctx, store.BaselineRecord{
		Session:        "alpha",
		Goal:           "goal",
		OrderedTaskIDs: []string{"001"},
		RunDir:         keptDir,
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}
	dangling, err := st.SaveBaseline(ctx, store.BaselineRecord{
		Session:        "beta",
		Goal:           "goal",
		OrderedTaskIDs: []string{"001"},
		RunDir:         missingDir,
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}

	if err := Run(ctx, db, replanDir); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, err := os.Stat(keptDir); err != nil {
		t.Fatalf("referenced run dir was removed: %v", err)
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Fatal("orphaned run dir still exists")
	}

	var runDir string
	if err := db.QueryRowContext(ctx,
		`SELECT run_dir FROM baseline_plans WHERE baseline_id = ?`, dangling.ID).Scan(&runDir); err != nil {
		t.Fatalf("query dangling baseline: %v", err)
	}
	if runDir != "" {
		t.Fatalf("run_dir = %q, want cleared", runDir)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT run_dir FROM baseline_plans WHERE baseline_id = ?`, kept.ID).Scan(&runDir); err != nil {
		t.Fatalf("query kept baseline: %v", err)
	}
	if runDir != keptDir {
		t.Fatalf("run_dir = %q, want %q", runDir, keptDir)
	}
}
