package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	internaldb "github.com/replanhq/replan/internal/db"
	"github.com/replanhq/replan/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "replan.db")
	database, err := internaldb.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return New(database)
}

func sampleTasks() []model.Task {
	return []model.Task{
		{ID: "001", Text: "Draft architecture note", EstimatedHours: 2, DocumentID: "doc-a", CreatedAt: "2026-08-01T09:00:00Z"},
		{ID: "002", Text: "Review architecture note", EstimatedHours: 1, DependsOn: []string{"001"}, DocumentID: "doc-a"},
		{ID: "003", Text: "Publish decision record", EstimatedHours: 0.5, DependsOn: []string{"001", "002"}, DocumentID: "doc-b", LNOCategory: "leverage"},
	}
}

func TestTasks_ReplaceAndList(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if err := s.ReplaceTasks(ctx, "s1", sampleTasks()); err != nil {
		t.Fatalf("ReplaceTasks returned error: %v", err)
	}

	tasks, err := s.ListTasks(ctx, "s1")
	if err != nil {
		t.Fatalf("ListTasks returned error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	if !reflect.DeepEqual(tasks[2].DependsOn, []string{"001", "002"}) {
		t.Fatalf("tasks[2].DependsOn = %v, want [001 002]", tasks[2].DependsOn)
	}
	if tasks[2].LNOCategory != "leverage" {
		t.Fatalf("tasks[2].LNOCategory = %q, want %q", tasks[2].LNOCategory, "leverage")
	}

	got, err := s.GetTask(ctx, "s1", "002")
	if err != nil {
		t.Fatalf("GetTask returned error: %v", err)
	}
	if got.Text != "Review architecture note" {
		t.Fatalf("task text = %q, want %q", got.Text, "Review architecture note")
	}

	if _, err := s.GetTask(ctx, "s1", "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTask(999) error = %v, want ErrNotFound", err)
	}

	// Other sessions stay isolated.
	other, err := s.ListTasks(ctx, "s2")
	if err != nil {
		t.Fatalf("ListTasks(s2) returned error: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("len(other session tasks) = %d, want 0", len(other))
	}
}

func TestTasks_UpsertPreservesEmbeddingWhenTextUnchanged(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	tasks := sampleTasks()
	if err := s.ReplaceTasks(ctx, "s1", tasks); err != nil {
		t.Fatalf("ReplaceTasks returned error: %v", err)
	}
	if err := s.SetTaskEmbeddings(ctx, "s1", map[string][]float32{"001": {0.5, -1.25, 3}}); err != nil {
		t.Fatalf("SetTaskEmbeddings returned error: %v", err)
	}

	// Same text: embedding survives the upsert.
	if err := s.UpsertTasks(ctx, "s1", []model.Task{tasks[0]}); err != nil {
		t.Fatalf("UpsertTasks returned error: %v", err)
	}
	embeddings, err := s.TaskEmbeddings(ctx, "s1")
	if err != nil {
		t.Fatalf("TaskEmbeddings returned error: %v", err)
	}
	if !reflect.DeepEqual(embeddings["001"], []float32{0.5, -1.25, 3}) {
		t.Fatalf("embedding after same-text upsert = %v, want preserved", embeddings["001"])
	}

	// Changed text: embedding is stale and gets cleared.
	changed := tasks[0]
	changed.Text = "Draft revised architecture note"
	if err := s.UpsertTasks(ctx, "s1", []model.Task{changed}); err != nil {
		t.Fatalf("UpsertTasks returned error: %v", err)
	}
	embeddings, err = s.TaskEmbeddings(ctx, "s1")
	if err != nil {
		t.Fatalf("TaskEmbeddings returned error: %v", err)
	}
	if _, ok := embeddings["001"]; ok {
		t.Fatal("embedding should be cleared after text change")
	}
}

func TestBaseline_SaveSupersedesPrevious(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.SaveBaseline(ctx, BaselineRecord{
		Session:          "s1",
		Goal:             "ship v1",
		OrderedTaskIDs:   []string{"001", "002"},
		ConfidenceScores: map[string]float64{"001": 0.9, "002": 0.8},
		DocumentIDs:      []string{"doc-a"},
		CreatedAt:        time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}
	if first.ID == "" {
		t.Fatal("SaveBaseline did not assign an id")
	}

	second, err := s.SaveBaseline(ctx, BaselineRecord{
		Session:          "s1",
		Goal:             "ship v1",
		OrderedTaskIDs:   []string{"002", "001"},
		ConfidenceScores: map[string]float64{"001": 0.7, "002": 0.9},
		DocumentIDs:      []string{"doc-a", "doc-b"},
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}

	active, err := s.ActiveBaseline(ctx, "s1")
	if err != nil {
		t.Fatalf("ActiveBaseline returned error: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active baseline = %s, want %s", active.ID, second.ID)
	}
	if !reflect.DeepEqual(active.OrderedTaskIDs, []string{"002", "001"}) {
		t.Fatalf("active ordering = %v, want [002 001]", active.OrderedTaskIDs)
	}

	old, err := s.GetBaseline(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetBaseline returned error: %v", err)
	}
	if old.Status != StatusSuperseded {
		t.Fatalf("first baseline status = %q, want %q", old.Status, StatusSuperseded)
	}

	all, err := s.ListBaselines(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBaselines returned error: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("ListBaselines = %d records with first %q, want newest first", len(all), all[0].ID)
	}
}

func TestActiveBaseline_EmptyIsNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if _, err := s.ActiveBaseline(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ActiveBaseline error = %v, want ErrNotFound", err)
	}
}

func TestUpdateBaselineOrder(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveBaseline(ctx, BaselineRecord{
		Session:          "s1",
		OrderedTaskIDs:   []string{"001", "003"},
		ConfidenceScores: map[string]float64{"001": 0.9, "003": 0.6},
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}

	if err := s.UpdateBaselineOrder(ctx, rec.ID, []string{"001", "002", "003"}, map[string]float64{"001": 0.9, "002": 0.5, "003": 0.6}); err != nil {
		t.Fatalf("UpdateBaselineOrder returned error: %v", err)
	}

	got, err := s.GetBaseline(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetBaseline returned error: %v", err)
	}
	if !reflect.DeepEqual(got.OrderedTaskIDs, []string{"001", "002", "003"}) {
		t.Fatalf("ordering = %v, want spliced [001 002 003]", got.OrderedTaskIDs)
	}
	if got.ConfidenceScores["002"] != 0.5 {
		t.Fatalf("confidence for 002 = %v, want 0.5", got.ConfidenceScores["002"])
	}

	if err := s.UpdateBaselineOrder(ctx, "missing", []string{"001"}, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateBaselineOrder(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAdjusted_LatestWins(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.SaveBaseline(ctx, BaselineRecord{
		Session:          "s1",
		OrderedTaskIDs:   []string{"001", "002"},
		ConfidenceScores: map[string]float64{"001": 0.9, "002": 0.8},
	})
	if err != nil {
		t.Fatalf("SaveBaseline returned error: %v", err)
	}

	if _, err := s.LatestAdjusted(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestAdjusted error = %v, want ErrNotFound before any adjustment", err)
	}

	older := AdjustedRecord{
		BaselineID:       rec.ID,
		OrderedTaskIDs:   []string{"001", "002"},
		ConfidenceScores: map[string]float64{"001": 0.9, "002": 0.8},
		Metadata:         model.AdjustmentMetadata{TaskCount: 2},
	}
	if err := s.SaveAdjusted(ctx, older); err != nil {
		t.Fatalf("SaveAdjusted returned error: %v", err)
	}

	newer := AdjustedRecord{
		BaselineID:       rec.ID,
		OrderedTaskIDs:   []string{"002", "001"},
		ConfidenceScores: map[string]float64{"001": 0.7, "002": 0.95},
		Diff: model.PlanDiff{Moved: []model.RankMove{
			{TaskID: "002", From: 2, To: 1, Reason: "boosted by reflection r-x"},
		}},
		Metadata: model.AdjustmentMetadata{TaskCount: 2, BoostedCount: 1},
	}
	if err := s.SaveAdjusted(ctx, newer); err != nil {
		t.Fatalf("SaveAdjusted returned error: %v", err)
	}

	got, err := s.LatestAdjusted(ctx, rec.ID)
	if err != nil {
		t.Fatalf("LatestAdjusted returned error: %v", err)
	}
	if !reflect.DeepEqual(got.OrderedTaskIDs, []string{"002", "001"}) {
		t.Fatalf("latest ordering = %v, want [002 001]", got.OrderedTaskIDs)
	}
	if len(got.Diff.Moved) != 1 || got.Diff.Moved[0].TaskID != "002" {
		t.Fatalf("latest diff = %+v, want move of 002", got.Diff)
	}
	if got.Metadata.BoostedCount != 1 {
		t.Fatalf("metadata boosted count = %d, want 1", got.Metadata.BoostedCount)
	}
}

func TestReflections_AddToggleList(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.AddReflection(ctx, "s1", "Focus on unblocking the launch", []float32{0.25, 0.5})
	if err != nil {
		t.Fatalf("AddReflection returned error: %v", err)
	}
	if !first.IsActive {
		t.Fatal("new reflection should start active")
	}

	second, err := s.AddReflection(ctx, "s1", "Deprioritize refactors", nil)
	if err != nil {
		t.Fatalf("AddReflection returned error: %v", err)
	}

	toggled, err := s.SetReflectionActive(ctx, "s1", second.ID, false)
	if err != nil {
		t.Fatalf("SetReflectionActive returned error: %v", err)
	}
	if toggled.IsActive {
		t.Fatal("reflection should be inactive after toggle")
	}

	reflections, err := s.ListReflections(ctx, "s1")
	if err != nil {
		t.Fatalf("ListReflections returned error: %v", err)
	}
	if len(reflections) != 2 {
		t.Fatalf("len(reflections) = %d, want 2", len(reflections))
	}
	if reflections[0].ID != first.ID {
		t.Fatalf("reflections[0] = %s, want oldest first (%s)", reflections[0].ID, first.ID)
	}
	if !reflect.DeepEqual(reflections[0].Embedding, []float32{0.25, 0.5}) {
		t.Fatalf("embedding roundtrip = %v, want [0.25 0.5]", reflections[0].Embedding)
	}

	if _, err := s.SetReflectionActive(ctx, "s1", "r-missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetReflectionActive(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPruneBaselines(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	ages := []time.Duration{96 * time.Hour, 72 * time.Hour, 48 * time.Hour, 24 * time.Hour}
	ids := make([]string, 0, len(ages))
	for _, age := range ages {
		rec, err := s.SaveBaseline(ctx, BaselineRecord{
			Session:          "s1",
			OrderedTaskIDs:   []string{"001"},
			ConfidenceScores: map[string]float64{"001": 0.9},
			CreatedAt:        time.Now().UTC().Add(-age).Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("SaveBaseline returned error: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	// Adjusted plans ride along with their baseline when it is deleted.
	if err := s.SaveAdjusted(ctx, AdjustedRecord{
		BaselineID:       ids[0],
		OrderedTaskIDs:   []string{"001"},
		ConfidenceScores: map[string]float64{"001": 0.9},
	}); err != nil {
		t.Fatalf("SaveAdjusted returned error: %v", err)
	}

	dry, err := s.PruneBaselines(ctx, "s1", RetentionPolicy{KeepLast: 2}, true)
	if err != nil {
		t.Fatalf("PruneBaselines dry run returned error: %v", err)
	}
	if dry.Deleted != 2 {
		t.Fatalf("dry run deleted = %d, want 2", dry.Deleted)
	}
	if all, _ := s.ListBaselines(ctx, "s1"); len(all) != 4 {
		t.Fatalf("dry run removed records: %d left, want 4", len(all))
	}

	res, err := s.PruneBaselines(ctx, "s1", RetentionPolicy{KeepLast: 2}, false)
	if err != nil {
		t.Fatalf("PruneBaselines returned error: %v", err)
	}
	if res.Considered != 4 || res.Kept != 2 || res.Deleted != 2 {
		t.Fatalf("result = %+v, want considered 4, kept 2, deleted 2", res)
	}

	remaining, err := s.ListBaselines(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBaselines returned error: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	if remaining[0].Status != StatusActive {
		t.Fatalf("newest remaining status = %q, want active kept", remaining[0].Status)
	}

	if _, err := s.LatestAdjusted(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestAdjusted after prune error = %v, want ErrNotFound (cascade)", err)
	}
}
