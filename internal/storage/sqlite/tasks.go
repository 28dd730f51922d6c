package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

const taskColumns = `id, milestone_id, title, description, estimated_minutes, is_completed, completed_at,
        context_hint, order_index, mastery_assessment, understanding_score, created_at, updated_at`

// prefixed qualifies every column of a list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ListTasks returns a milestone's tasks in order.
func (s *Store) ListTasks(ctx context.Context, milestoneID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+`
        FROM tasks WHERE milestone_id = ? ORDER BY order_index, created_at`, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (models.Task, error) {
	var t models.Task
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return models.Task{}, notFound("task", err)
	}
	return t, nil
}

// CreateTask appends a task to a milestone and recalculates the milestone and
// its assignment.
func (s *Store) CreateTask(ctx context.Context, milestoneID uuid.UUID, in models.NewTask) (models.Task, error) {
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}
	minutes := models.DefaultEstimatedMinutes
	if in.EstimatedMinutes != nil {
		minutes = *in.EstimatedMinutes
	}

	var created models.Task
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := getMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		pos, err := nextOrderIndex(ctx, tx, `SELECT MAX(order_index) FROM tasks WHERE milestone_id = ?`, milestoneID)
		if err != nil {
			return err
		}

		id := uuid.New()
		err = insertTask(ctx, tx, id, milestoneID, in.Title, nullableString(in.Description), minutes,
			nullableString(in.ContextHint), pos, s.Now())
		if err != nil {
			return err
		}
		if _, err := s.recalculateMilestone(ctx, tx, milestoneID); err != nil {
			return err
		}
		if _, err := s.recalculateAssignment(ctx, tx, m.AssignmentID); err != nil {
			return err
		}
		created, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return created, nil
}

func insertTask(ctx context.Context, tx *sqlx.Tx, id, milestoneID uuid.UUID, title string, description any,
	minutes int, hint any, pos int, now time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id, milestone_id, title, description, estimated_minutes,
            is_completed, completed_at, context_hint, order_index, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?)`,
		id, milestoneID, title, description, minutes, hint, pos, now, now)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask changes the supplied fields only. The assignment is recalculated
// so its cached estimate follows the new minutes.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, changes models.TaskChanges) (models.Task, error) {
	if err := changes.Validate(); err != nil {
		return models.Task{}, err
	}

	var updated models.Task
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		title := current.Title
		description := current.Description.Ptr()
		minutes := current.EstimatedMinutes
		if changes.Title != nil {
			title = *changes.Title
		}
		if changes.Description != nil {
			description = changes.Description
		}
		if changes.EstimatedMinutes != nil {
			minutes = *changes.EstimatedMinutes
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, estimated_minutes = ? WHERE id = ?`,
			title, nullableString(description), minutes, id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		m, err := getMilestone(ctx, tx, current.MilestoneID)
		if err != nil {
			return err
		}
		if _, err := s.recalculateAssignment(ctx, tx, m.AssignmentID); err != nil {
			return err
		}
		updated, err = getTask(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

// ToggleTask flips the task's completion, then recalculates its milestone and
// the owning assignment, in that order.
func (s *Store) ToggleTask(ctx context.Context, id uuid.UUID) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		result, err = s.toggle(ctx, tx, t)
		return err
	})
	return result, err
}

// SetTaskCompleted moves the task to the requested completion state. A task
// already in that state is left untouched, keeping its completed_at.
func (s *Store) SetTaskCompleted(ctx context.Context, id uuid.UUID, completed bool) (models.ToggleResult, error) {
	var result models.ToggleResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.IsCompleted != completed {
			result, err = s.toggle(ctx, tx, t)
			return err
		}

		m, err := getMilestone(ctx, tx, t.MilestoneID)
		if err != nil {
			return err
		}
		a, err := getAssignment(ctx, tx, m.AssignmentID)
		if err != nil {
			return err
		}
		result = models.ToggleResult{Task: t, MilestoneProgress: m.Progress, AssignmentProgress: a.ProgressPercent()}
		return nil
	})
	return result, err
}

// MarkComplete completes the task unless it already is.
func (s *Store) MarkComplete(ctx context.Context, id uuid.UUID) (models.ToggleResult, error) {
	return s.SetTaskCompleted(ctx, id, true)
}

// MarkIncomplete reopens the task unless it already is open.
func (s *Store) MarkIncomplete(ctx context.Context, id uuid.UUID) (models.ToggleResult, error) {
	return s.SetTaskCompleted(ctx, id, false)
}

func (s *Store) toggle(ctx context.Context, tx *sqlx.Tx, t models.Task) (models.ToggleResult, error) {
	t.Toggle(s.Now())
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET is_completed = ?, completed_at = ? WHERE id = ?`,
		t.IsCompleted, t.CompletedAt, t.ID)
	if err != nil {
		return models.ToggleResult{}, fmt.Errorf("toggle task: %w", err)
	}

	progress, err := s.recalculateMilestone(ctx, tx, t.MilestoneID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	m, err := getMilestone(ctx, tx, t.MilestoneID)
	if err != nil {
		return models.ToggleResult{}, err
	}
	a, err := s.recalculateAssignment(ctx, tx, m.AssignmentID)
	if err != nil {
		return models.ToggleResult{}, err
	}

	s.logger.Debug("task toggled", "task_id", t.ID, "completed", t.IsCompleted, "assignment_id", a.ID)
	return models.ToggleResult{Task: t, MilestoneProgress: progress, AssignmentProgress: a.ProgressPercent()}, nil
}

// DeleteTask removes a task, then recalculates its milestone and assignment.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) (models.Assignment, error) {
	var a models.Assignment
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		m, err := getMilestone(ctx, tx, t.MilestoneID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if _, err := s.recalculateMilestone(ctx, tx, m.ID); err != nil {
			return err
		}
		a, err = s.recalculateAssignment(ctx, tx, m.AssignmentID)
		return err
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

// RecordAssessment stores the outcome of a mastery check on a task.
func (s *Store) RecordAssessment(ctx context.Context, id uuid.UUID, in models.Assessment) (models.Task, error) {
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET mastery_assessment = ?, understanding_score = ? WHERE id = ?`,
		in.Feedback, *in.Score, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("record assessment: %w", err)
	}
	if err := affectedOrNotFound("task", res); err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}
