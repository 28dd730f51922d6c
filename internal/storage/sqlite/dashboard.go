package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

// Dashboard collects a user's active assignments, per-status counts and the
// next open task to work on.
func (s *Store) Dashboard(ctx context.Context, userID uuid.UUID) (models.Dashboard, error) {
	query, args, err := sqlx.In(`SELECT `+assignmentColumns+`
        FROM assignments WHERE user_id = ? AND status IN (?) ORDER BY due_date, created_at`,
		userID, models.ActiveStatuses)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("build active query: %w", err)
	}
	var active []models.Assignment
	if err := s.db.SelectContext(ctx, &active, s.db.Rebind(query), args...); err != nil {
		return models.Dashboard{}, fmt.Errorf("list active assignments: %w", err)
	}

	var stats models.DashboardStats
	err = s.db.GetContext(ctx, &stats, `SELECT COUNT(*) AS total_assignments,
            COALESCE(SUM(CASE WHEN status IN ('pending', 'in_progress', 'at_risk') THEN 1 ELSE 0 END), 0) AS active_assignments,
            COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_assignments,
            COALESCE(SUM(CASE WHEN status = 'at_risk' THEN 1 ELSE 0 END), 0) AS at_risk_assignments
        FROM assignments WHERE user_id = ?`, userID)
	if err != nil {
		return models.Dashboard{}, fmt.Errorf("dashboard stats: %w", err)
	}

	next, err := s.nextTask(ctx, userID)
	if err != nil {
		return models.Dashboard{}, err
	}

	return models.Dashboard{Assignments: s.views(active), Stats: stats, NextTask: next}, nil
}

func (s *Store) nextTask(ctx context.Context, userID uuid.UUID) (*models.NextTask, error) {
	var next models.NextTask
	err := s.db.GetContext(ctx, &next, `SELECT t.id, t.title, t.estimated_minutes, a.id AS assignment_id, a.title AS assignment_title
        FROM tasks t
        JOIN milestones m ON m.id = t.milestone_id
        JOIN assignments a ON a.id = m.assignment_id
        WHERE a.user_id = ? AND a.status != ? AND t.is_completed = 0
        ORDER BY a.due_date, m.order_index, t.order_index
        LIMIT 1`, userID, models.StatusCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next task: %w", err)
	}
	return &next, nil
}
