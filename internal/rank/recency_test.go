package rank

import (
	"testing"
	"time"
)

func TestRecencyWeight_StepDecay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt string
		want      float64
	}{
		{"hours old", now.Add(-2 * time.Hour).Format(time.RFC3339), WeightFresh},
		{"exactly seven days", now.Add(-7 * 24 * time.Hour).Format(time.RFC3339), WeightFresh},
		{"eight days", now.Add(-8 * 24 * time.Hour).Format(time.RFC3339), WeightAging},
		{"exactly fourteen days", now.Add(-14 * 24 * time.Hour).Format(time.RFC3339), WeightAging},
		{"fifteen days", now.Add(-15 * 24 * time.Hour).Format(time.RFC3339), WeightOld},
		{"months old", now.Add(-90 * 24 * time.Hour).Format(time.RFC3339), WeightOld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, age := RecencyWeight(tt.createdAt, now)
			if got != tt.want {
				t.Fatalf("RecencyWeight(%q) = %v, want %v", tt.createdAt, got, tt.want)
			}
			if age == nil {
				t.Fatalf("RecencyWeight(%q) age = nil, want value", tt.createdAt)
			}
		})
	}
}

func TestRecencyWeight_UnparsableTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for _, createdAt := range []string{"", "not-a-date", "13/45/2026"} {
		got, age := RecencyWeight(createdAt, now)
		if got != WeightOld {
			t.Fatalf("RecencyWeight(%q) = %v, want minimum weight %v", createdAt, got, WeightOld)
		}
		if age != nil {
			t.Fatalf("RecencyWeight(%q) age = %v, want nil", createdAt, *age)
		}
	}
}
