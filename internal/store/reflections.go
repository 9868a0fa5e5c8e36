package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/replanhq/replan/internal/model"
)

// AddReflection appends a reflection with its embedding and returns the
// stored record. New reflections start active.
func (s *Store) AddReflection(ctx context.Context, session, text string, embedding []float32) (model.Reflection, error) {
	id, err := newID("r")
	if err != nil {
		return model.Reflection{}, fmt.Errorf("new reflection id: %w", err)
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	if _, err := s.db.ExecContext(ctx, `INSERT INTO reflections(reflection_id, session, text, is_active, embedding, created_at)
		VALUES(?, ?, ?, 1, ?, ?)`,
		id, session, text, encodeFloat32s(embedding), createdAt); err != nil {
		return model.Reflection{}, fmt.Errorf("insert reflection: %w", err)
	}

	return model.Reflection{
		ID:        id,
		Text:      text,
		CreatedAt: createdAt,
		IsActive:  true,
		Embedding: embedding,
	}, nil
}

// ListReflections returns the session's reflections, oldest first.
func (s *Store) ListReflections(ctx context.Context, session string) ([]model.Reflection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reflection_id, text, is_active, embedding, created_at
		FROM reflections WHERE session=? ORDER BY created_at, reflection_id`, session)
	if err != nil {
		return nil, fmt.Errorf("list reflections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reflections []model.Reflection
	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return nil, err
		}
		reflections = append(reflections, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reflections: %w", err)
	}
	return reflections, nil
}

// GetReflection returns a single reflection, or ErrNotFound.
func (s *Store) GetReflection(ctx context.Context, session, reflectionID string) (model.Reflection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT reflection_id, text, is_active, embedding, created_at
		FROM reflections WHERE session=? AND reflection_id=?`, session, reflectionID)
	r, err := scanReflection(row)
	if err == sql.ErrNoRows {
		return model.Reflection{}, ErrNotFound
	}
	return r, err
}

func scanReflection(row rowScanner) (model.Reflection, error) {
	var r model.Reflection
	var active int
	var blob []byte
	if err := row.Scan(&r.ID, &r.Text, &active, &blob, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Reflection{}, err
		}
		return model.Reflection{}, fmt.Errorf("scan reflection: %w", err)
	}
	r.IsActive = active != 0

	vec, err := decodeFloat32s(blob)
	if err != nil {
		return model.Reflection{}, fmt.Errorf("reflection %s: %w", r.ID, err)
	}
	r.Embedding = vec
	return r, nil
}

// SetReflectionActive flips a reflection's active flag and returns the
// updated record, or ErrNotFound.
func (s *Store) SetReflectionActive(ctx context.Context, session, reflectionID string, active bool) (model.Reflection, error) {
	flag := 0
	if active {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reflections SET is_active=? WHERE session=? AND reflection_id=?`,
		flag, session, reflectionID)
	if err != nil {
		return model.Reflection{}, fmt.Errorf("toggle reflection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Reflection{}, ErrNotFound
	}
	return s.GetReflection(ctx, session, reflectionID)
}
