package planner

import (
	"github.com/replanhq/replan/internal/model"
)

// Self-check triggers. A result needs a second evaluation pass when any of
// these fire; all of them must hold for the first pass to stand alone.
const (
	MinConfidence        = 0.7
	MinIncludedTasks     = 10
	MaxCorrectionsLength = 100

	// MovementShare is the fraction of common tasks that may move more than
	// MovementRanks positions before the plan counts as majorly reshuffled.
	MovementShare = 0.3
	MovementRanks = 5
)

// NeedsEvaluation decides whether a planning result warrants re-invoking the
// planner for a self-check. Pure predicate, no I/O. The previous plan is
// optional; without one the movement check is skipped.
func NeedsEvaluation(result *Result, previous *model.BaselinePlan) bool {
	if result == nil {
		return true
	}
	if result.Confidence < MinConfidence {
		return true
	}
	if len(result.OrderedTaskIDs) < MinIncludedTasks {
		return true
	}
	if len(result.CorrectionsMade) > MaxCorrectionsLength {
		return true
	}
	if previous != nil && hasMajorMovement(result.OrderedTaskIDs, previous.OrderedTaskIDs) {
		return true
	}
	return false
}

// hasMajorMovement reports whether more than MovementShare of the tasks
// present in both orderings moved more than MovementRanks positions.
func hasMajorMovement(current, previous []string) bool {
	prevRank := make(map[string]int, len(previous))
	for i, id := range previous {
		prevRank[id] = i + 1
	}

	common := 0
	movedFar := 0
	for i, id := range current {
		from, ok := prevRank[id]
		if !ok {
			continue
		}
		common++
		delta := (i + 1) - from
		if delta < 0 {
			delta = -delta
		}
		if delta > MovementRanks {
			movedFar++
		}
	}
	if common == 0 {
		return false
	}
	return float64(movedFar)/float64(common) > MovementShare
}
