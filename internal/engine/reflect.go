package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/replanhq/replan/internal/model"
	"github.com/replanhq/replan/internal/rank"
)

// AddReflection stores a new reflection, embedding its text when an embedder
// is configured. Embedding failures are not fatal: the reflection is stored
// without a vector and carries no similarity signal until re-embedded.
func (e *Engine) AddReflection(ctx context.Context, session, text string) (model.Reflection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Reflection{}, fmt.Errorf("reflection text is required")
	}

	var vec []float32
	if e.embedder != nil {
		v, err := e.embedder.Embed(ctx, text)
		if err != nil {
			e.logger.Warn().Err(err).Msg("reflection embedding failed; storing without similarity signal")
		} else {
			vec = v
		}
	}

	r, err := e.store.AddReflection(ctx, session, text, vec)
	if err != nil {
		return model.Reflection{}, err
	}
	e.logger.Info().Str("reflection", r.ID).Bool("embedded", len(vec) > 0).Msg("reflection added")
	return r, nil
}

// ToggleReflection flips a reflection's active flag and recomputes the
// adjusted plan. The flip is durable even when there is no usable baseline;
// in that case the returned plan is nil and the error is nil.
func (e *Engine) ToggleReflection(ctx context.Context, session, reflectionID string, active bool) (model.Reflection, *model.AdjustedPlan, error) {
	r, err := e.store.SetReflectionActive(ctx, session, reflectionID, active)
	if err != nil {
		return model.Reflection{}, nil, err
	}

	adjusted, err := e.AdjustPlan(ctx, session)
	if err != nil {
		if errors.Is(err, rank.ErrNoBaseline) || errors.Is(err, rank.ErrBaselineExpired) {
			e.logger.Debug().Err(err).Str("reflection", reflectionID).Msg("toggle saved without readjustment")
			return r, nil, nil
		}
		return r, nil, err
	}
	return r, adjusted, nil
}

// SetReflectionActive flips a reflection's active flag without recomputing
// the adjusted plan. Callers that batch toggles recompute once afterwards.
func (e *Engine) SetReflectionActive(ctx context.Context, session, reflectionID string, active bool) (model.Reflection, error) {
	return e.store.SetReflectionActive(ctx, session, reflectionID, active)
}

// ListReflections returns the session's reflections, oldest first.
func (e *Engine) ListReflections(ctx context.Context, session string) ([]model.Reflection, error) {
	return e.store.ListReflections(ctx, session)
}
