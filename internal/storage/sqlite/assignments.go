package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

const assignmentColumns = `id, user_id, title, description, due_date, raw_context, parsed_data, status,
        total_estimated_minutes, completed_tasks_count, total_tasks_count, created_at, updated_at`

// CreateAssignment persists a new pending assignment.
func (s *Store) CreateAssignment(ctx context.Context, in models.NewAssignment) (models.Assignment, error) {
	if err := in.Validate(); err != nil {
		return models.Assignment{}, err
	}

	now := s.Now()
	due := now.Add(models.DefaultDueIn)
	if in.DueDate != nil {
		due = in.DueDate.UTC()
	}

	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO assignments(id, user_id, title, description, due_date, raw_context, parsed_data, status, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.UserID, in.Title, nullableString(in.Description), due, nullableString(in.RawContext),
		nullableJSON(in.ParsedData), models.StatusPending, now, now)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	s.logger.Info("assignment created", "assignment_id", id, "user_id", in.UserID)
	return s.GetAssignment(ctx, id)
}

// GetAssignment fetches a single assignment by id.
func (s *Store) GetAssignment(ctx context.Context, id uuid.UUID) (models.Assignment, error) {
	return getAssignment(ctx, s.db, id)
}

func getAssignment(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (models.Assignment, error) {
	var a models.Assignment
	err := sqlx.GetContext(ctx, q, &a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	if err != nil {
		return models.Assignment{}, notFound("assignment", err)
	}
	return a, nil
}

// GetAssignmentView returns the assignment with its ordered milestone/task tree
// and the values derived at the current time.
func (s *Store) GetAssignmentView(ctx context.Context, id uuid.UUID) (models.AssignmentView, error) {
	a, err := s.GetAssignment(ctx, id)
	if err != nil {
		return models.AssignmentView{}, err
	}
	milestones, err := s.ListMilestones(ctx, id)
	if err != nil {
		return models.AssignmentView{}, err
	}
	view := a.View(s.Now())
	view.Milestones = milestones
	return view, nil
}

// ListAssignments returns a user's assignments ordered by due date.
func (s *Store) ListAssignments(ctx context.Context, userID uuid.UUID) ([]models.AssignmentView, error) {
	var list []models.Assignment
	err := s.db.SelectContext(ctx, &list, `SELECT `+assignmentColumns+`
        FROM assignments WHERE user_id = ? ORDER BY due_date, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return s.views(list), nil
}

func (s *Store) views(list []models.Assignment) []models.AssignmentView {
	now := s.Now()
	out := make([]models.AssignmentView, 0, len(list))
	for _, a := range list {
		out = append(out, a.View(now))
	}
	return out
}

// UpdateAssignment applies the confirm/edit step. A new due date changes the
// remaining-time fraction, so the status is derived again.
func (s *Store) UpdateAssignment(ctx context.Context, id uuid.UUID, changes models.AssignmentChanges) (models.Assignment, error) {
	if err := changes.Validate(); err != nil {
		return models.Assignment{}, err
	}

	var updated models.Assignment
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE assignments SET title = ?, description = ?, due_date = ? WHERE id = ?`,
			changes.Title, nullableString(changes.Description), changes.DueDate.UTC(), id)
		if err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if err := affectedOrNotFound("assignment", res); err != nil {
			return err
		}
		updated, err = s.recalculateAssignment(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return updated, nil
}

// DeleteAssignment removes an assignment with its milestones, tasks and chat history.
func (s *Store) DeleteAssignment(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if err := affectedOrNotFound("assignment", res); err != nil {
		return err
	}
	s.logger.Info("assignment deleted", "assignment_id", id)
	return nil
}

// RecalculateAssignment recounts the assignment's tasks, derives its status and
// refreshes every milestone's progress.
func (s *Store) RecalculateAssignment(ctx context.Context, id uuid.UUID) (models.Assignment, error) {
	var a models.Assignment
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		a, err = s.recalculateAssignment(ctx, tx, id)
		return err
	})
	return a, err
}
