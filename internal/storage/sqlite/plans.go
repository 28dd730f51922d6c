package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"studyplan/internal/models"
	"studyplan/internal/plan"
)

// ErrPlanExists rejects ingesting a second plan on top of an existing one
// without asking for replacement.
var ErrPlanExists = errors.New("assignment already has a plan")

// IngestPlan converts a planner payload into milestones and tasks ordered by
// their array positions, then resets the assignment's totals and sets it to
// pending. With replace, the existing milestones are deleted first in the same
// transaction. An empty payload returns plan.ErrEmptyPlan and touches nothing.
func (s *Store) IngestPlan(ctx context.Context, assignmentID uuid.UUID, p plan.Payload, replace bool) ([]models.Milestone, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var created []models.Milestone
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getAssignment(ctx, tx, assignmentID); err != nil {
			return err
		}

		var existing int
		if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM milestones WHERE assignment_id = ?`, assignmentID); err != nil {
			return fmt.Errorf("count milestones: %w", err)
		}
		if existing > 0 {
			if !replace {
				return ErrPlanExists
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE milestone_id IN (SELECT id FROM milestones WHERE assignment_id = ?)`, assignmentID); err != nil {
				return fmt.Errorf("delete plan tasks: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE assignment_id = ?`, assignmentID); err != nil {
				return fmt.Errorf("delete plan milestones: %w", err)
			}
		}

		now := s.Now()
		totalMinutes := 0
		created = make([]models.Milestone, 0, len(p.Milestones))
		for i, entry := range p.Milestones {
			m := models.Milestone{
				ID:           uuid.New(),
				AssignmentID: assignmentID,
				Title:        entry.TitleText(),
				OrderIndex:   i,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			m.Description = optional(entry.Description)
			if err := insertMilestone(ctx, tx, m.ID, assignmentID, m.Title, nullableString(entry.Description), i, now); err != nil {
				return fmt.Errorf("milestones[%d]: %w", i, err)
			}

			m.Tasks = make([]models.Task, 0, len(entry.Tasks))
			for j, te := range entry.Tasks {
				t := models.Task{
					ID:               uuid.New(),
					MilestoneID:      m.ID,
					Title:            te.TitleText(),
					EstimatedMinutes: te.Minutes(),
					OrderIndex:       j,
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				t.Description = optional(te.Description)
				t.ContextHint = optional(te.ContextHint)

				err := insertTask(ctx, tx, t.ID, m.ID, t.Title, nullableString(te.Description), t.EstimatedMinutes,
					nullableString(te.ContextHint), j, now)
				if err != nil {
					return fmt.Errorf("milestones[%d].tasks[%d]: %w", i, j, err)
				}
				m.Tasks = append(m.Tasks, t)
				totalMinutes += t.EstimatedMinutes
			}
			created = append(created, m)
		}

		_, err := tx.ExecContext(ctx, `UPDATE assignments SET total_estimated_minutes = ?, total_tasks_count = ?,
            completed_tasks_count = 0, status = ? WHERE id = ?`,
			totalMinutes, p.TaskCount(), models.StatusPending, assignmentID)
		if err != nil {
			return fmt.Errorf("update assignment totals: %w", err)
		}

		s.logger.Info("plan ingested",
			"assignment_id", assignmentID,
			"milestones", len(created),
			"tasks", p.TaskCount(),
			"minutes", totalMinutes,
			"replaced", existing)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// optional mirrors nullableString for the in-memory copy of a row.
func optional(s *string) null.String {
	if s == nil {
		return null.String{}
	}
	v := strings.TrimSpace(*s)
	return null.NewString(v, v != "")
}
