// Package rank recomputes a plan ordering from active reflections without
// re-invoking the full planner.
package rank

import (
	"time"

	"github.com/replanhq/replan/internal/model"
)

// Recency weights step down with reflection age. A note from this week
// carries full influence, older notes progressively less.
const (
	WeightFresh = 1.0
	WeightAging = 0.5
	WeightOld   = 0.25

	freshCutoff = 7 * 24 * time.Hour
	agingCutoff = 14 * 24 * time.Hour
)

// RecencyWeight derives a reflection's influence multiplier from its
// created_at timestamp. An unparsable timestamp yields a nil age and the
// minimum weight instead of an error.
func RecencyWeight(createdAt string, now time.Time) (float64, *float64) {
	ts, ok := model.ParseTime(createdAt)
	if !ok {
		return WeightOld, nil
	}
	age := now.Sub(ts)
	hours := age.Hours()
	switch {
	case age <= freshCutoff:
		return WeightFresh, &hours
	case age <= agingCutoff:
		return WeightAging, &hours
	default:
		return WeightOld, &hours
	}
}
