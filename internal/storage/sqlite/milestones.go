package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

const milestoneColumns = `id, assignment_id, title, description, order_index, progress, created_at, updated_at`

// ListMilestones returns the assignment's milestones in order, each with its ordered tasks.
func (s *Store) ListMilestones(ctx context.Context, assignmentID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := s.db.SelectContext(ctx, &milestones, `SELECT `+milestoneColumns+`
        FROM milestones WHERE assignment_id = ? ORDER BY order_index, created_at`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	if len(milestones) == 0 {
		return milestones, nil
	}

	var tasks []models.Task
	err = s.db.SelectContext(ctx, &tasks, `SELECT `+prefixed("t", taskColumns)+`
        FROM tasks t JOIN milestones m ON m.id = t.milestone_id
        WHERE m.assignment_id = ? ORDER BY t.order_index, t.created_at`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	byMilestone := make(map[uuid.UUID][]models.Task, len(milestones))
	for _, t := range tasks {
		byMilestone[t.MilestoneID] = append(byMilestone[t.MilestoneID], t)
	}
	for i := range milestones {
		milestones[i].Tasks = byMilestone[milestones[i].ID]
	}
	return milestones, nil
}

// GetMilestone fetches a single milestone by id.
func (s *Store) GetMilestone(ctx context.Context, id uuid.UUID) (models.Milestone, error) {
	return getMilestone(ctx, s.db, id)
}

func getMilestone(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (models.Milestone, error) {
	var m models.Milestone
	err := sqlx.GetContext(ctx, q, &m, `SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id)
	if err != nil {
		return models.Milestone{}, notFound("milestone", err)
	}
	return m, nil
}

// CreateMilestone appends a milestone after the assignment's last one.
func (s *Store) CreateMilestone(ctx context.Context, assignmentID uuid.UUID, in models.NewMilestone) (models.Milestone, error) {
	if err := in.Validate(); err != nil {
		return models.Milestone{}, err
	}

	var created models.Milestone
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getAssignment(ctx, tx, assignmentID); err != nil {
			return err
		}
		pos, err := nextOrderIndex(ctx, tx, `SELECT MAX(order_index) FROM milestones WHERE assignment_id = ?`, assignmentID)
		if err != nil {
			return err
		}
		id := uuid.New()
		if err := insertMilestone(ctx, tx, id, assignmentID, in.Title, nullableString(in.Description), pos, s.Now()); err != nil {
			return err
		}
		created, err = getMilestone(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Milestone{}, err
	}
	return created, nil
}

func insertMilestone(ctx context.Context, tx *sqlx.Tx, id, assignmentID uuid.UUID, title string, description any, pos int, now time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO milestones(id, assignment_id, title, description, order_index, progress, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, 0, ?, ?)`, id, assignmentID, title, description, pos, now, now)
	if err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

// UpdateMilestone renames a milestone and replaces its description.
func (s *Store) UpdateMilestone(ctx context.Context, id uuid.UUID, in models.NewMilestone) (models.Milestone, error) {
	if err := in.Validate(); err != nil {
		return models.Milestone{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE milestones SET title = ?, description = ? WHERE id = ?`,
		in.Title, nullableString(in.Description), id)
	if err != nil {
		return models.Milestone{}, fmt.Errorf("update milestone: %w", err)
	}
	if err := affectedOrNotFound("milestone", res); err != nil {
		return models.Milestone{}, err
	}
	return s.GetMilestone(ctx, id)
}

// DeleteMilestone removes a milestone with its tasks and recalculates the
// owning assignment, whose task totals shrink accordingly.
func (s *Store) DeleteMilestone(ctx context.Context, id uuid.UUID) (models.Assignment, error) {
	var a models.Assignment
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := getMilestone(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE milestone_id = ?`, id); err != nil {
			return fmt.Errorf("delete milestone tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete milestone: %w", err)
		}
		a, err = s.recalculateAssignment(ctx, tx, m.AssignmentID)
		return err
	})
	if err != nil {
		return models.Assignment{}, err
	}
	s.logger.Info("milestone deleted", "milestone_id", id, "assignment_id", a.ID)
	return a, nil
}

// nextOrderIndex returns MAX(order_index)+1 for the query, or 0 when there are no siblings.
func nextOrderIndex(ctx context.Context, tx *sqlx.Tx, query string, parentID uuid.UUID) (int, error) {
	var position sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, parentID).Scan(&position); err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return int(position.Int64) + 1, nil
	}
	return 0, nil
}
