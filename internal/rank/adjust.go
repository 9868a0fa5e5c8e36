package rank

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/replanhq/replan/internal/model"
)

// Similarity thresholds and staleness limits. The 0.7/0.3 band is a product
// calibration; override via Thresholds rather than editing these.
const (
	DefaultBoostThreshold   = 0.7
	DefaultPenaltyThreshold = 0.3

	// StaleAfter flags the baseline in adjustment metadata; ExpireAfter
	// blocks adjustment entirely until a full re-plan.
	StaleAfter  = 24 * time.Hour
	ExpireAfter = 7 * 24 * time.Hour
)

var (
	// ErrNoBaseline is returned when adjustment is requested before any full
	// planning run has produced a baseline.
	ErrNoBaseline = errors.New("no baseline plan: run full analysis first")
	// ErrBaselineExpired is returned when the baseline is past the hard
	// staleness limit and only a full re-plan can help.
	ErrBaselineExpired = errors.New("baseline plan expired: full re-plan required")
)

// SimilarityFunc compares two embedding vectors and returns a similarity in
// [0,1]. Errors (such as mismatched dimensions) make the pair contribute no
// signal rather than failing the adjustment.
type SimilarityFunc func(a, b []float32) (float64, error)

// Thresholds bound the similarity band that leaves confidence untouched.
type Thresholds struct {
	Boost   float64 `json:"boost"`
	Penalty float64 `json:"penalty"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Boost: DefaultBoostThreshold, Penalty: DefaultPenaltyThreshold}
}

// Adjuster reorders a baseline plan using active reflections. It is pure
// CPU work over in-memory data; callers own debouncing and serialization.
type Adjuster struct {
	similarity SimilarityFunc
	thresholds Thresholds
}

func NewAdjuster(similarity SimilarityFunc, thresholds Thresholds) *Adjuster {
	if thresholds.Boost == 0 && thresholds.Penalty == 0 {
		thresholds = DefaultThresholds()
	}
	return &Adjuster{similarity: similarity, thresholds: thresholds}
}

// rankedTask carries one baseline entry through scoring and re-sorting.
type rankedTask struct {
	id       string
	baseRank int
	conf     float64
	signal   *taskSignal
	effect   int
}

// taskSignal is the dominant reflection influence for one task.
type taskSignal struct {
	reflectionID string
	similarity   float64
	weighted     float64
	weight       float64
}

// Adjust recomputes the ordering of a baseline plan from the currently
// active reflections. Confidence is boosted when the recency-scaled
// similarity clears the boost threshold, penalized when it falls under the
// penalty threshold, and clamped to [0,1]. Tasks are re-sorted stably so
// ties keep their baseline order; demotion never removes a task.
func (a *Adjuster) Adjust(baseline *model.BaselinePlan, reflections []model.Reflection, taskEmbeddings map[string][]float32, now time.Time) (*model.AdjustedPlan, error) {
	start := time.Now()
	if baseline == nil {
		return nil, ErrNoBaseline
	}

	meta := model.AdjustmentMetadata{TaskCount: len(baseline.OrderedTaskIDs)}
	age, known := baseline.AgeHours(now)
	switch {
	case !known:
		meta.StaleBaseline = true
		meta.Warning = "baseline plan age unknown; consider a full re-plan"
	case age > ExpireAfter.Hours():
		return nil, fmt.Errorf("baseline plan is %.0f hours old: %w", age, ErrBaselineExpired)
	case age > StaleAfter.Hours():
		meta.StaleBaseline = true
		meta.Warning = fmt.Sprintf("baseline plan is %.0f hours old; consider a full re-plan", age)
	}

	active := make([]model.Reflection, 0, len(reflections))
	for _, r := range reflections {
		if r.IsActive {
			active = append(active, r)
		}
	}
	meta.ActiveReflectionCount = len(active)

	weights := make([]float64, len(active))
	for i, r := range active {
		w, ageHours := RecencyWeight(r.CreatedAt, now)
		weights[i] = w
		meta.Reflections = append(meta.Reflections, model.ReflectionInfluence{
			ReflectionID: r.ID,
			Text:         r.Text,
			Weight:       w,
			AgeHours:     ageHours,
		})
	}

	if len(active) == 0 {
		meta.Duration = time.Since(start)
		return &model.AdjustedPlan{
			BaselineID:       baseline.ID,
			OrderedTaskIDs:   append([]string(nil), baseline.OrderedTaskIDs...),
			ConfidenceScores: copyScores(baseline.ConfidenceScores),
			Metadata:         meta,
		}, nil
	}

	items := make([]rankedTask, len(baseline.OrderedTaskIDs))
	scores := make(map[string]float64, len(baseline.OrderedTaskIDs))
	for i, id := range baseline.OrderedTaskIDs {
		item := rankedTask{id: id, baseRank: i + 1, conf: baseline.ConfidenceScores[id]}
		if sig := a.dominantSignal(taskEmbeddings[id], active, weights); sig != nil {
			item.signal = sig
			if sig.weighted > a.thresholds.Boost {
				item.conf += sig.weighted - a.thresholds.Boost
				item.effect = 1
				meta.BoostedCount++
			} else if sig.weighted < a.thresholds.Penalty {
				item.conf -= a.thresholds.Penalty - sig.weighted
				item.effect = -1
				meta.PenalizedCount++
			}
		}
		item.conf = clamp01(item.conf)
		items[i] = item
		scores[id] = item.conf
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].conf > items[j].conf
	})

	ordered := make([]string, len(items))
	var moved []model.RankMove
	for i, item := range items {
		ordered[i] = item.id
		to := i + 1
		if item.baseRank != to {
			moved = append(moved, model.RankMove{
				TaskID: item.id,
				From:   item.baseRank,
				To:     to,
				Reason: moveReason(item),
			})
		}
	}

	meta.Duration = time.Since(start)
	log.Debug().
		Int("tasks", meta.TaskCount).
		Int("active_reflections", meta.ActiveReflectionCount).
		Int("boosted", meta.BoostedCount).
		Int("penalized", meta.PenalizedCount).
		Int("moved", len(moved)).
		Dur("duration", meta.Duration).
		Msg("adjusted plan")

	return &model.AdjustedPlan{
		BaselineID:       baseline.ID,
		OrderedTaskIDs:   ordered,
		ConfidenceScores: scores,
		Diff:             model.PlanDiff{Moved: moved},
		Metadata:         meta,
	}, nil
}

// dominantSignal picks the strongest recency-scaled similarity across the
// active reflections. Tasks or reflections without embeddings, and pairs the
// similarity function rejects, contribute nothing.
func (a *Adjuster) dominantSignal(taskEmbedding []float32, active []model.Reflection, weights []float64) *taskSignal {
	if len(taskEmbedding) == 0 {
		return nil
	}
	var best *taskSignal
	for i, r := range active {
		if len(r.Embedding) == 0 {
			continue
		}
		sim, err := a.similarity(taskEmbedding, r.Embedding)
		if err != nil {
			log.Debug().Err(err).Str("reflection_id", r.ID).Msg("similarity unavailable")
			continue
		}
		weighted := sim * weights[i]
		if best == nil || weighted > best.weighted {
			best = &taskSignal{
				reflectionID: r.ID,
				similarity:   sim,
				weighted:     weighted,
				weight:       weights[i],
			}
		}
	}
	return best
}

func moveReason(item rankedTask) string {
	switch {
	case item.effect > 0:
		return fmt.Sprintf("boosted by reflection %s (similarity=%.2f recency_weight=%.2f)",
			item.signal.reflectionID, item.signal.similarity, item.signal.weight)
	case item.effect < 0:
		return fmt.Sprintf("penalized by reflection %s (similarity=%.2f recency_weight=%.2f)",
			item.signal.reflectionID, item.signal.similarity, item.signal.weight)
	default:
		return "displaced by adjusted tasks"
	}
}

func copyScores(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for id, v := range scores {
		out[id] = v
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
