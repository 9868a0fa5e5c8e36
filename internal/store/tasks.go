package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/replanhq/replan/internal/model"
)

// ReplaceTasks replaces the session's task corpus in one transaction.
// Stored embeddings are discarded along with the old rows.
func (s *Store) ReplaceTasks(ctx context.Context, session string, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE session=?`, session); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear tasks: %w", err)
	}
	for i, t := range tasks {
		if err := upsertTask(ctx, tx, session, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tasks: %w", err)
	}
	return nil
}

// UpsertTasks inserts or updates tasks without touching the rest of the
// corpus. An existing row keeps its embedding as long as the text is
// unchanged; a text change clears it.
func (s *Store) UpsertTasks(ctx context.Context, session string, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin upsert tasks: %w", err)
	}
	for i, t := range tasks {
		if err := upsertTask(ctx, tx, session, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tasks: %w", err)
	}
	return nil
}

func upsertTask(ctx context.Context, tx *sql.Tx, session string, t model.Task) error {
	dependsOn, err := marshalJSON(t.DependsOn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks(session, task_id, text, estimated_hours, depends_on, document_id, source, lno_category, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, task_id) DO UPDATE SET
			text=excluded.text,
			estimated_hours=excluded.estimated_hours,
			depends_on=excluded.depends_on,
			document_id=excluded.document_id,
			source=excluded.source,
			lno_category=excluded.lno_category,
			created_at=excluded.created_at,
			embedding=CASE WHEN tasks.text=excluded.text THEN tasks.embedding ELSE NULL END`,
		session, t.ID, t.Text, t.EstimatedHours, dependsOn, t.DocumentID, t.Source, t.LNOCategory, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

// ListTasks returns the session's tasks ordered by task id.
func (s *Store) ListTasks(ctx context.Context, session string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, text, estimated_hours, depends_on, document_id, source, lno_category, created_at
		FROM tasks WHERE session=? ORDER BY task_id`, session)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a single task, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, session, taskID string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT task_id, text, estimated_hours, depends_on, document_id, source, lno_category, created_at
		FROM tasks WHERE session=? AND task_id=?`, session, taskID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return model.Task{}, ErrNotFound
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	var dependsOn string
	if err := row.Scan(&t.ID, &t.Text, &t.EstimatedHours, &dependsOn, &t.DocumentID, &t.Source, &t.LNOCategory, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scan task: %w", err)
	}
	if err := json.Unmarshal([]byte(dependsOn), &t.DependsOn); err != nil {
		return model.Task{}, fmt.Errorf("decode depends_on for %s: %w", t.ID, err)
	}
	return t, nil
}

// TaskEmbeddings returns the stored embeddings for the session keyed by
// task id. Tasks without an embedding are absent from the map.
func (s *Store) TaskEmbeddings(ctx context.Context, session string) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, embedding FROM tasks WHERE session=? AND embedding IS NOT NULL`, session)
	if err != nil {
		return nil, fmt.Errorf("list task embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan task embedding: %w", err)
		}
		vec, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		out[id] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task embeddings: %w", err)
	}
	return out, nil
}

// SetTaskEmbeddings stores embeddings for the given task ids.
func (s *Store) SetTaskEmbeddings(ctx context.Context, session string, embeddings map[string][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin set embeddings: %w", err)
	}
	for id, vec := range embeddings {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET embedding=? WHERE session=? AND task_id=?`,
			encodeFloat32s(vec), session, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set embedding for %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set embeddings: %w", err)
	}
	return nil
}
