// Package plan decodes the milestone/task tree produced by the AI planner.
package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"studyplan/internal/models"
)

// ErrEmptyPlan means the planner produced nothing usable.
var ErrEmptyPlan = errors.New("plan has no milestones")

// ValidationError names the payload item that failed validation.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s %s", e.Path, e.Reason)
}

// Payload is the planner output:
//
//	{ "milestones": [ { "title", "description"?, "tasks": [ { "title",
//	  "description"?, "estimated_minutes"?, "context_hint"? } ] } ] }
type Payload struct {
	Milestones []Milestone `json:"milestones"`
}

type Milestone struct {
	Title       json.RawMessage `json:"title"`
	Description *string         `json:"description"`
	Tasks       []Task          `json:"tasks"`
}

type Task struct {
	Title            json.RawMessage `json:"title"`
	Description      *string         `json:"description"`
	EstimatedMinutes json.RawMessage `json:"estimated_minutes"`
	ContextHint      *string         `json:"context_hint"`
}

// Minutes returns the estimate when it is a positive number or numeric string,
// otherwise the default of 30.
func (t Task) Minutes() int {
	raw := bytes.TrimSpace(t.EstimatedMinutes)
	if len(raw) == 0 {
		return models.DefaultEstimatedMinutes
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return models.DefaultEstimatedMinutes
		}
		text = strings.TrimSpace(text)
	} else {
		text = string(raw)
	}
	if !decimal.MatchString(text) {
		return models.DefaultEstimatedMinutes
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || !(f >= 1 && f <= 65535) {
		return models.DefaultEstimatedMinutes
	}
	return int(f)
}

// TitleText returns the trimmed title, or "" when it is missing or not a string.
func (m Milestone) TitleText() string { return stringValue(m.Title) }

// TitleText returns the trimmed title, or "" when it is missing or not a string.
func (t Task) TitleText() string { return stringValue(t.Title) }

var (
	decimal       = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	leadingFence  = regexp.MustCompile("^\\s*```[A-Za-z]*")
	trailingFence = regexp.MustCompile("```\\s*$")
)

// Decode extracts the outermost JSON object from planner output, tolerating
// markdown fences and surrounding prose, and validates it.
func Decode(data []byte) (Payload, error) {
	cleaned := leadingFence.ReplaceAll(data, nil)
	cleaned = bytes.TrimSpace(trailingFence.ReplaceAll(cleaned, nil))
	first := bytes.IndexByte(cleaned, '{')
	last := bytes.LastIndexByte(cleaned, '}')
	if first >= 0 && last > first {
		cleaned = cleaned[first : last+1]
	}

	var p Payload
	if err := json.Unmarshal(cleaned, &p); err != nil {
		return Payload{}, &ValidationError{Path: "payload", Reason: "is not a plan object: " + err.Error()}
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate checks that every milestone and task carries a string title.
// A payload without milestones yields ErrEmptyPlan.
func (p Payload) Validate() error {
	if len(p.Milestones) == 0 {
		return ErrEmptyPlan
	}
	for i, m := range p.Milestones {
		if m.TitleText() == "" {
			return &ValidationError{Path: fmt.Sprintf("milestones[%d].title", i), Reason: "must be a non-empty string"}
		}
		for j, t := range m.Tasks {
			if t.TitleText() == "" {
				return &ValidationError{Path: fmt.Sprintf("milestones[%d].tasks[%d].title", i, j), Reason: "must be a non-empty string"}
			}
		}
	}
	return nil
}

// TaskCount is the number of tasks across all milestones.
func (p Payload) TaskCount() int {
	n := 0
	for _, m := range p.Milestones {
		n += len(m.Tasks)
	}
	return n
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
