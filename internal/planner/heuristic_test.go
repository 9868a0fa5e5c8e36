package planner

import (
	"fmt"
	"strings"
	"testing"

	"github.com/replanhq/replan/internal/model"
)

func resultWithTasks(n int, confidence float64) *Result {
	ids := make([]string, n)
	scores := make(map[string]float64, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%03d", i+1)
		scores[ids[i]] = 0.8
	}
	return &Result{
		OrderedTaskIDs:   ids,
		ConfidenceScores: scores,
		Confidence:       confidence,
	}
}

func reversedBaseline(n int) *model.BaselinePlan {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%03d", n-i)
	}
	return &model.BaselinePlan{OrderedTaskIDs: ids, CreatedAt: "2026-08-19T12:00:00Z"}
}

func sameBaseline(n int) *model.BaselinePlan {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%03d", i+1)
	}
	return &model.BaselinePlan{OrderedTaskIDs: ids, CreatedAt: "2026-08-19T12:00:00Z"}
}

func TestNeedsEvaluation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *Result
		previous *model.BaselinePlan
		want     bool
	}{
		{
			name:   "healthy result stands alone",
			result: resultWithTasks(12, 0.85),
			want:   false,
		},
		{
			name:     "healthy result with stable ordering",
			result:   resultWithTasks(12, 0.85),
			previous: sameBaseline(12),
			want:     false,
		},
		{
			name:   "low confidence alone",
			result: resultWithTasks(12, 0.65),
			want:   true,
		},
		{
			name:   "short task list alone",
			result: resultWithTasks(6, 0.95),
			want:   true,
		},
		{
			name: "long corrections note alone",
			result: func() *Result {
				r := resultWithTasks(12, 0.9)
				r.CorrectionsMade = strings.Repeat("reordered dependencies; ", 6)
				return r
			}(),
			want: true,
		},
		{
			name:     "full reversal of ten tasks",
			result:   resultWithTasks(10, 0.9),
			previous: reversedBaseline(10),
			want:     true,
		},
		{
			name:     "disjoint plans have no movement signal",
			result:   resultWithTasks(12, 0.85),
			previous: &model.BaselinePlan{OrderedTaskIDs: []string{"900", "901"}},
			want:     false,
		},
		{
			name:   "nil result",
			result: nil,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsEvaluation(tt.result, tt.previous); got != tt.want {
				t.Fatalf("NeedsEvaluation() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestHasMajorMovement_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	previous := make([]string, 20)
	current := make([]string, 20)
	for i := 0; i < 20; i++ {
		previous[i] = fmt.Sprintf("%03d", i+1)
		current[i] = previous[i]
	}

	// Each distant swap moves two tasks fourteen ranks. Three swaps move
	// exactly 30% of the tasks, which is not "more than 30%".
	for _, pair := range [][2]int{{0, 14}, {1, 15}, {2, 16}} {
		current[pair[0]], current[pair[1]] = current[pair[1]], current[pair[0]]
	}
	if hasMajorMovement(current, previous) {
		t.Fatal("hasMajorMovement() = true at exactly 30%, want false")
	}

	// A fourth swap pushes the share to 40%.
	current[3], current[17] = current[17], current[3]
	if !hasMajorMovement(current, previous) {
		t.Fatal("hasMajorMovement() = false at 40%, want true")
	}
}
