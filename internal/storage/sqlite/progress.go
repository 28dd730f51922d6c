package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

type taskCounts struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
	Minutes   int `db:"minutes"`
}

// recalculateMilestone recounts the milestone's tasks from scratch and stores
// the rounded completion percentage.
func (s *Store) recalculateMilestone(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) (int, error) {
	var c taskCounts
	err := tx.GetContext(ctx, &c, `SELECT COUNT(*) AS total,
            COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0) AS completed,
            COALESCE(SUM(estimated_minutes), 0) AS minutes
        FROM tasks WHERE milestone_id = ?`, milestoneID)
	if err != nil {
		return 0, fmt.Errorf("count milestone tasks: %w", err)
	}

	progress := models.Percent(c.Completed, c.Total)
	res, err := tx.ExecContext(ctx, `UPDATE milestones SET progress = ? WHERE id = ?`, progress, milestoneID)
	if err != nil {
		return 0, fmt.Errorf("update milestone progress: %w", err)
	}
	if err := affectedOrNotFound("milestone", res); err != nil {
		return 0, err
	}
	return progress, nil
}

// recalculateAssignment recounts every task under the assignment's milestones,
// derives the status, persists it and then refreshes each milestone.
func (s *Store) recalculateAssignment(ctx context.Context, tx *sqlx.Tx, assignmentID uuid.UUID) (models.Assignment, error) {
	a, err := getAssignment(ctx, tx, assignmentID)
	if err != nil {
		return models.Assignment{}, err
	}

	var c taskCounts
	err = tx.GetContext(ctx, &c, `SELECT COUNT(t.id) AS total,
            COALESCE(SUM(CASE WHEN t.is_completed THEN 1 ELSE 0 END), 0) AS completed,
            COALESCE(SUM(t.estimated_minutes), 0) AS minutes
        FROM tasks t JOIN milestones m ON m.id = t.milestone_id
        WHERE m.assignment_id = ?`, assignmentID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("count assignment tasks: %w", err)
	}

	a.ApplyCounts(c.Completed, c.Total, s.Now())
	a.TotalEstimatedMinutes = c.Minutes

	_, err = tx.ExecContext(ctx, `UPDATE assignments SET status = ?, completed_tasks_count = ?, total_tasks_count = ?,
        total_estimated_minutes = ? WHERE id = ?`,
		a.Status, a.CompletedTasksCount, a.TotalTasksCount, a.TotalEstimatedMinutes, a.ID)
	if err != nil {
		return models.Assignment{}, fmt.Errorf("update assignment progress: %w", err)
	}

	var milestoneIDs []uuid.UUID
	if err := tx.SelectContext(ctx, &milestoneIDs, `SELECT id FROM milestones WHERE assignment_id = ? ORDER BY order_index`, assignmentID); err != nil {
		return models.Assignment{}, fmt.Errorf("list milestone ids: %w", err)
	}
	for _, id := range milestoneIDs {
		if _, err := s.recalculateMilestone(ctx, tx, id); err != nil {
			return models.Assignment{}, err
		}
	}

	s.logger.Debug("assignment recalculated",
		"assignment_id", a.ID,
		"status", a.Status,
		"completed", a.CompletedTasksCount,
		"total", a.TotalTasksCount,
		"milestones", len(milestoneIDs))
	return a, nil
}
