package models

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Percent returns round(completed/total*100), rounding halves away from zero.
// An empty set is 0 percent.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// wholeDays counts the whole days from one instant to another, flooring.
func wholeDays(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// ProgressPercent is the share of completed tasks.
func (a Assignment) ProgressPercent() int {
	return Percent(a.CompletedTasksCount, a.TotalTasksCount)
}

// DaysRemaining is the number of whole days until the due date, never negative.
func (a Assignment) DaysRemaining(now time.Time) int {
	return max(0, wholeDays(now, a.DueDate))
}

// TimeRemainingPercentage relates the remaining days to the span between
// creation and due date. A span of zero whole days yields 0.
func (a Assignment) TimeRemainingPercentage(now time.Time) float64 {
	span := wholeDays(a.CreatedAt, a.DueDate)
	if span <= 0 {
		return 0
	}
	return float64(a.DaysRemaining(now)) / float64(span) * 100
}

// IsAtRisk holds when both progress and remaining time are below the threshold.
func (a Assignment) IsAtRisk(now time.Time) bool {
	return a.ProgressPercent() < RiskThresholdPercent &&
		a.TimeRemainingPercentage(now) < RiskThresholdPercent
}

// ApplyCounts stores freshly counted task totals and derives the status.
// The first matching rule wins; when none match the status is kept as is.
func (a *Assignment) ApplyCounts(completed, total int, now time.Time) {
	a.TotalTasksCount = total
	a.CompletedTasksCount = completed

	switch {
	case total > 0 && completed == total:
		a.Status = StatusCompleted
	case a.IsAtRisk(now):
		a.Status = StatusAtRisk
	case completed > 0:
		a.Status = StatusInProgress
	}
}

// Toggle flips completion and keeps completed_at in step with it.
func (t *Task) Toggle(now time.Time) {
	t.IsCompleted = !t.IsCompleted
	if t.IsCompleted {
		t.CompletedAt.SetValid(now)
		return
	}
	t.CompletedAt.Valid = false
	t.CompletedAt.Time = time.Time{}
}
