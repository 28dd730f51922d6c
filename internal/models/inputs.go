package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewAssignment carries the fields accepted when an assignment is created manually
// or from parsed instructions.
type NewAssignment struct {
	UserID      uuid.UUID      `json:"user_id" validate:"required"`
	Title       string         `json:"title" validate:"max=255"`
	Description *string        `json:"description"`
	DueDate     *time.Time     `json:"due_date"`
	RawContext  *string        `json:"raw_context" validate:"omitempty,max=50000"`
	ParsedData  types.JSONText `json:"parsed_data"`
}

// AssignmentChanges is the confirm/edit step applied after instructions were parsed.
type AssignmentChanges struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date" validate:"required"`
}

// NewMilestone is a manually added milestone.
type NewMilestone struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// NewTask is a manually added task. EstimatedMinutes defaults to 30.
type NewTask struct {
	Title            string  `json:"title" validate:"required,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=1000"`
	EstimatedMinutes *int    `json:"estimated_minutes" validate:"omitempty,min=5,max=480"`
	ContextHint      *string `json:"context_hint"`
}

// TaskChanges holds the optional fields of a task update; nil means untouched.
type TaskChanges struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=1000"`
	EstimatedMinutes *int    `json:"estimated_minutes" validate:"omitempty,min=5,max=480"`
}

// Assessment is the result of a mastery check on a task.
type Assessment struct {
	Feedback string `json:"feedback" validate:"required"`
	Score    *int   `json:"score" validate:"required,min=0,max=100"`
}

// NewChatMessage appends one turn to an assignment's conversation.
type NewChatMessage struct {
	TaskID  *uuid.UUID `json:"task_id"`
	Role    string     `json:"role" validate:"required,oneof=user assistant"`
	Content string     `json:"content" validate:"required"`
}

func (in *NewAssignment) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = UntitledAssignment
	}
	return check(in)
}

func (in *AssignmentChanges) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return check(in)
}

func (in *NewMilestone) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return check(in)
}

func (in *NewTask) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	return check(in)
}

func (in *TaskChanges) Validate() error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	return check(in)
}

func (in *Assessment) Validate() error {
	return check(in)
}

func (in *NewChatMessage) Validate() error {
	in.Content = strings.TrimSpace(in.Content)
	if err := check(in); err != nil {
		return err
	}
	if in.Role == RoleUser && len([]rune(in.Content)) > 2000 {
		return &InputError{Field: "content", Tag: "max"}
	}
	return nil
}

// InputError reports the first field that failed validation.
type InputError struct {
	Field string
	Tag   string
	Param string
}

func (e *InputError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s validation", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InputError{Field: jsonName(fe.Field()), Tag: fe.Tag(), Param: fe.Param()}
	}
	return err
}

// jsonName converts a Go field name such as EstimatedMinutes to estimated_minutes.
func jsonName(field string) string {
	var b strings.Builder
	var prev rune
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(prev >= 'A' && prev <= 'Z') {
				b.WriteByte('_')
			}
			prev = r
			r += 'a' - 'A'
		} else {
			prev = r
		}
		b.WriteRune(r)
	}
	return b.String()
}
