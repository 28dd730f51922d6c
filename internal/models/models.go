package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"
)

// Status is the coarse lifecycle state of an assignment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusAtRisk     Status = "at_risk"
	StatusCompleted  Status = "completed"
)

// ActiveStatuses are the statuses shown on the dashboard.
var ActiveStatuses = []Status{StatusPending, StatusInProgress, StatusAtRisk}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultEstimatedMinutes is used when a task carries no usable estimate.
	DefaultEstimatedMinutes = 30
	MinEstimatedMinutes     = 5
	MaxEstimatedMinutes     = 480

	// RiskThresholdPercent bounds both progress and remaining time for at-risk.
	RiskThresholdPercent = 30

	// DefaultDueIn is applied when an assignment is created without a due date.
	DefaultDueIn = 14 * 24 * time.Hour

	UntitledAssignment = "Untitled Assignment"
)

// Assignment is a student's piece of work together with its cached progress counters.
type Assignment struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	UserID                uuid.UUID      `db:"user_id" json:"user_id"`
	Title                 string         `db:"title" json:"title"`
	Description           null.String    `db:"description" json:"description"`
	DueDate               time.Time      `db:"due_date" json:"due_date"`
	RawContext            null.String    `db:"raw_context" json:"raw_context,omitempty"`
	ParsedData            types.JSONText `db:"parsed_data" json:"parsed_data,omitempty"`
	Status                Status         `db:"status" json:"status"`
	TotalEstimatedMinutes int            `db:"total_estimated_minutes" json:"total_estimated_minutes"`
	CompletedTasksCount   int            `db:"completed_tasks_count" json:"completed_tasks_count"`
	TotalTasksCount       int            `db:"total_tasks_count" json:"total_tasks_count"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Milestone groups ordered tasks of one assignment.
type Milestone struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	AssignmentID uuid.UUID   `db:"assignment_id" json:"assignment_id"`
	Title        string      `db:"title" json:"title"`
	Description  null.String `db:"description" json:"description"`
	OrderIndex   int         `db:"order_index" json:"order_index"`
	Progress     int         `db:"progress" json:"progress"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`

	Tasks []Task `db:"-" json:"tasks,omitempty"`
}

// Task is the atomic unit of work and the only entity owning completion state.
type Task struct {
	ID                 uuid.UUID   `db:"id" json:"id"`
	MilestoneID        uuid.UUID   `db:"milestone_id" json:"milestone_id"`
	Title              string      `db:"title" json:"title"`
	Description        null.String `db:"description" json:"description"`
	EstimatedMinutes   int         `db:"estimated_minutes" json:"estimated_minutes"`
	IsCompleted        bool        `db:"is_completed" json:"is_completed"`
	CompletedAt        null.Time   `db:"completed_at" json:"completed_at"`
	ContextHint        null.String `db:"context_hint" json:"context_hint"`
	OrderIndex         int         `db:"order_index" json:"order_index"`
	MasteryAssessment  null.String `db:"mastery_assessment" json:"mastery_assessment"`
	UnderstandingScore null.Int    `db:"understanding_score" json:"understanding_score"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
}

// ChatMessage is one entry of the tutor conversation attached to an assignment.
type ChatMessage struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	AssignmentID uuid.UUID     `db:"assignment_id" json:"assignment_id"`
	TaskID       uuid.NullUUID `db:"task_id" json:"task_id"`
	Role         string        `db:"role" json:"role"`
	Content      string        `db:"content" json:"content"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// AssignmentView is an assignment enriched with the values derived at read time.
type AssignmentView struct {
	Assignment
	ProgressPercent int         `json:"progress_percent"`
	DaysRemaining   int         `json:"days_remaining"`
	IsAtRisk        bool        `json:"is_at_risk"`
	Milestones      []Milestone `json:"milestones,omitempty"`
}

// View computes the derived read-only attributes at the given instant.
func (a Assignment) View(now time.Time) AssignmentView {
	return AssignmentView{
		Assignment:      a,
		ProgressPercent: a.ProgressPercent(),
		DaysRemaining:   a.DaysRemaining(now),
		IsAtRisk:        a.IsAtRisk(now),
	}
}

// ToggleResult reports the state after a completion change.
type ToggleResult struct {
	Task               Task `json:"task"`
	MilestoneProgress  int  `json:"milestone_progress"`
	AssignmentProgress int  `json:"assignment_progress"`
}

// NextTask is the first open task across a user's unfinished assignments.
type NextTask struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	EstimatedMinutes int       `db:"estimated_minutes" json:"estimated_minutes"`
	AssignmentID     uuid.UUID `db:"assignment_id" json:"assignment_id"`
	AssignmentTitle  string    `db:"assignment_title" json:"assignment_title"`
}

// DashboardStats counts a user's assignments by state.
type DashboardStats struct {
	TotalAssignments     int `db:"total_assignments" json:"total_assignments"`
	ActiveAssignments    int `db:"active_assignments" json:"active_assignments"`
	CompletedAssignments int `db:"completed_assignments" json:"completed_assignments"`
	AtRiskAssignments    int `db:"at_risk_assignments" json:"at_risk_assignments"`
}

// Dashboard is the overview shown to a user.
type Dashboard struct {
	Assignments []AssignmentView `json:"assignments"`
	Stats       DashboardStats   `json:"stats"`
	NextTask    *NextTask        `json:"next_task"`
}
