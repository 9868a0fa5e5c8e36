package graph

import (
	"testing"

	"github.com/replanhq/replan/internal/model"
)

func TestDetectCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tasks []model.Task
		want  bool
	}{
		{
			name:  "empty graph",
			tasks: nil,
			want:  false,
		},
		{
			name:  "single task without dependencies",
			tasks: []model.Task{testTask("001")},
			want:  false,
		},
		{
			name:  "self loop",
			tasks: []model.Task{testTask("001", "001")},
			want:  true,
		},
		{
			name: "two task cycle",
			tasks: []model.Task{
				testTask("001", "002"),
				testTask("002", "001"),
			},
			want: true,
		},
		{
			name: "three task cycle",
			tasks: []model.Task{
				testTask("001", "003"),
				testTask("002", "001"),
				testTask("003", "002"),
			},
			want: true,
		},
		{
			name: "linear chain",
			tasks: []model.Task{
				testTask("001"),
				testTask("002", "001"),
				testTask("003", "002"),
			},
			want: false,
		},
		{
			name: "diamond",
			tasks: []model.Task{
				testTask("001"),
				testTask("002", "001"),
				testTask("003", "001"),
				testTask("004", "002", "003"),
			},
			want: false,
		},
		{
			name: "dangling reference is ignored",
			tasks: []model.Task{
				testTask("001", "999"),
				testTask("002", "001"),
			},
			want: false,
		},
		{
			name: "cycle hidden behind dangling references",
			tasks: []model.Task{
				testTask("001", "999", "002"),
				testTask("002", "001"),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectCycle(tt.tasks); got != tt.want {
				t.Fatalf("DetectCycle() = %t, want %t", got, tt.want)
			}
		})
	}
}
