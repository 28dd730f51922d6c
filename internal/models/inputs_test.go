package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func inputErr(err error) *InputError {
	var ie *InputError
	if errors.As(err, &ie) {
		return ie
	}
	return nil
}

func TestNewTaskValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        NewTask
		wantField string
	}{
		{name: "defaults", in: NewTask{Title: "Outline"}},
		{name: "lower bound", in: NewTask{Title: "Outline", EstimatedMinutes: intPtr(5)}},
		{name: "upper bound", in: NewTask{Title: "Outline", EstimatedMinutes: intPtr(480)}},
		{name: "too short", in: NewTask{Title: "Outline", EstimatedMinutes: intPtr(4)}, wantField: "estimated_minutes"},
		{name: "too long", in: NewTask{Title: "Outline", EstimatedMinutes: intPtr(481)}, wantField: "estimated_minutes"},
		{name: "blank title", in: NewTask{Title: "   "}, wantField: "title"},
		{name: "long description", in: NewTask{Title: "x", Description: strPtr(strings.Repeat("a", 1001))}, wantField: "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			ie := inputErr(err)
			require.NotNil(t, ie, "expected InputError, got %v", err)
			assert.Equal(t, tt.wantField, ie.Field)
		})
	}
}

func TestTaskChangesValidate(t *testing.T) {
	assert.NoError(t, (&TaskChanges{}).Validate())
	assert.NoError(t, (&TaskChanges{EstimatedMinutes: intPtr(60)}).Validate())

	blank := TaskChanges{Title: strPtr("  ")}
	ie := inputErr(blank.Validate())
	require.NotNil(t, ie)
	assert.Equal(t, "title", ie.Field)

	ie = inputErr((&TaskChanges{EstimatedMinutes: intPtr(1000)}).Validate())
	require.NotNil(t, ie)
	assert.Equal(t, "estimated_minutes", ie.Field)
}

func TestNewAssignmentValidate(t *testing.T) {
	in := NewAssignment{UserID: uuid.New()}
	require.NoError(t, in.Validate())
	assert.Equal(t, UntitledAssignment, in.Title)

	missingUser := NewAssignment{Title: "Essay"}
	ie := inputErr(missingUser.Validate())
	require.NotNil(t, ie)
	assert.Equal(t, "user_id", ie.Field)
}

func TestAssessmentValidate(t *testing.T) {
	assert.NoError(t, (&Assessment{Feedback: "solid", Score: intPtr(0)}).Validate())
	assert.NoError(t, (&Assessment{Feedback: "solid", Score: intPtr(100)}).Validate())
	assert.Error(t, (&Assessment{Feedback: "solid", Score: intPtr(101)}).Validate())
	assert.Error(t, (&Assessment{Feedback: "solid"}).Validate())
	assert.Error(t, (&Assessment{Score: intPtr(50)}).Validate())
}

func TestNewChatMessageValidate(t *testing.T) {
	assert.NoError(t, (&NewChatMessage{Role: RoleUser, Content: "How do I start?"}).Validate())
	assert.Error(t, (&NewChatMessage{Role: "system", Content: "hi"}).Validate())
	assert.Error(t, (&NewChatMessage{Role: RoleUser, Content: "  "}).Validate())

	long := strings.Repeat("a", 2001)
	assert.Error(t, (&NewChatMessage{Role: RoleUser, Content: long}).Validate())
	assert.NoError(t, (&NewChatMessage{Role: RoleAssistant, Content: long}).Validate())
}

func TestJSONName(t *testing.T) {
	assert.Equal(t, "estimated_minutes", jsonName("EstimatedMinutes"))
	assert.Equal(t, "title", jsonName("Title"))
	assert.Equal(t, "task_id", jsonName("TaskID"))
	assert.Equal(t, "user_id", jsonName("UserID"))
}
