package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studyplan/internal/models"
)

// AppendChatMessage adds one turn to an assignment's tutor conversation.
// A referenced task must belong to the same assignment.
func (s *Store) AppendChatMessage(ctx context.Context, assignmentID uuid.UUID, in models.NewChatMessage) (models.ChatMessage, error) {
	if err := in.Validate(); err != nil {
		return models.ChatMessage{}, err
	}

	msg := models.ChatMessage{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Role:         in.Role,
		Content:      in.Content,
		CreatedAt:    s.Now(),
	}
	if in.TaskID != nil {
		msg.TaskID = uuid.NullUUID{UUID: *in.TaskID, Valid: true}
	}

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getAssignment(ctx, tx, assignmentID); err != nil {
			return err
		}
		if msg.TaskID.Valid {
			var owned int
			err := tx.GetContext(ctx, &owned, `SELECT COUNT(*) FROM tasks t JOIN milestones m ON m.id = t.milestone_id
                WHERE t.id = ? AND m.assignment_id = ?`, msg.TaskID.UUID, assignmentID)
			if err != nil {
				return fmt.Errorf("check chat task: %w", err)
			}
			if owned == 0 {
				return fmt.Errorf("task %w", ErrNotFound)
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO chat_messages(id, assignment_id, task_id, role, content, created_at)
            VALUES(?, ?, ?, ?, ?, ?)`, msg.ID, msg.AssignmentID, msg.TaskID, msg.Role, msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// ListChatMessages returns an assignment's conversation in creation order.
func (s *Store) ListChatMessages(ctx context.Context, assignmentID uuid.UUID) ([]models.ChatMessage, error) {
	if _, err := s.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	messages := []models.ChatMessage{}
	err := s.db.SelectContext(ctx, &messages, `SELECT id, assignment_id, task_id, role, content, created_at
        FROM chat_messages WHERE assignment_id = ? ORDER BY created_at, rowid`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return messages, nil
}
