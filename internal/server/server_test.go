package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplan/internal/models"
	"studyplan/internal/plan"
	"studyplan/internal/storage/sqlite"
)

var t0 = time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

const researchPlan = "```json\n" +
	`{"milestones":[{"title":"Research","tasks":[{"title":"Find 3 sources","estimated_minutes":45},{"title":"Take notes"}]}]}` +
	"\n```"

type assignmentBody struct {
	Assignment models.AssignmentView `json:"assignment"`
}

type planBody struct {
	Milestones []models.Milestone     `json:"milestones"`
	Assignment models.AssignmentView `json:"assignment"`
}

func newTestServer(t *testing.T, staticDir string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return t0 })
	return New(store, logger, Options{StaticDir: staticDir})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createAssignment(t *testing.T, s *Server, userID uuid.UUID) models.AssignmentView {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/assignments", obj{"user_id": userID, "title": "History essay"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[assignmentBody](t, rec).Assignment
}

type obj = map[string]any

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAssignmentLifecycle(t *testing.T) {
	s := newTestServer(t, "")
	user := uuid.New()

	a := createAssignment(t, s, user)
	assert.Equal(t, "History essay", a.Title)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, 14, a.DaysRemaining)

	rec := do(t, s, http.MethodGet, "/api/assignments?user_id="+user.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Assignments []models.AssignmentView `json:"assignments"`
	}](t, rec)
	require.Len(t, list.Assignments, 1)
	assert.Equal(t, a.ID, list.Assignments[0].ID)

	due := t0.Add(7 * 24 * time.Hour)
	rec = do(t, s, http.MethodPut, "/api/assignments/"+a.ID.String(), obj{"title": "Essay", "due_date": due})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[assignmentBody](t, rec).Assignment
	assert.Equal(t, "Essay", updated.Title)
	assert.Equal(t, 7, updated.DaysRemaining)

	rec = do(t, s, http.MethodPut, "/api/assignments/"+a.ID.String(), obj{"title": "Essay"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/assignments/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/api/assignments/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "list without user", method: http.MethodGet, path: "/api/assignments", want: http.StatusBadRequest},
		{name: "dashboard without user", method: http.MethodGet, path: "/api/dashboard", want: http.StatusBadRequest},
		{name: "malformed id", method: http.MethodGet, path: "/api/assignments/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown assignment", method: http.MethodGet, path: "/api/assignments/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "create without user", method: http.MethodPost, path: "/api/assignments", body: obj{"title": "x"}, want: http.StatusBadRequest},
		{name: "malformed json", method: http.MethodPost, path: "/api/assignments", body: "{", want: http.StatusBadRequest},
		{name: "toggle unknown task", method: http.MethodPatch, path: "/api/tasks/" + uuid.NewString() + "/toggle", want: http.StatusNotFound},
		{name: "plan for unknown assignment", method: http.MethodPost, path: "/api/assignments/" + uuid.NewString() + "/plan", body: researchPlan, want: http.StatusNotFound},
		{name: "unknown api route", method: http.MethodGet, path: "/api/nope", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestIngestPlanEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	a := createAssignment(t, s, uuid.New())
	path := "/api/assignments/" + a.ID.String() + "/plan"

	rec := do(t, s, http.MethodPost, path, researchPlan)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[planBody](t, rec)
	require.Len(t, body.Milestones, 1)
	require.Len(t, body.Milestones[0].Tasks, 2)
	assert.Equal(t, 75, body.Assignment.TotalEstimatedMinutes)
	assert.Equal(t, 2, body.Assignment.TotalTasksCount)
	assert.Equal(t, models.StatusPending, body.Assignment.Status)
	require.Len(t, body.Assignment.Milestones, 1)

	rec = do(t, s, http.MethodPost, path, researchPlan)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, path+"?replace=true", `{"milestones":[{"title":"Draft","tasks":[{"title":"Write intro"}]}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = decode[planBody](t, rec)
	assert.Equal(t, 1, body.Assignment.TotalTasksCount)
	assert.Equal(t, 30, body.Assignment.TotalEstimatedMinutes)

	rec = do(t, s, http.MethodPost, path+"?replace=true", `{"milestones":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, path+"?replace=true", `{"milestones":[{"tasks":[]}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "milestones[0].title")

	rec = do(t, s, http.MethodPost, path+"?replace=maybe", researchPlan)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	a := createAssignment(t, s, uuid.New())

	rec := do(t, s, http.MethodPost, "/api/assignments/"+a.ID.String()+"/plan", researchPlan)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	milestone := decode[planBody](t, rec).Milestones[0]
	taskID := milestone.Tasks[0].ID

	rec = do(t, s, http.MethodPatch, "/api/tasks/"+taskID.String()+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	toggled := decode[models.ToggleResult](t, rec)
	assert.True(t, toggled.Task.IsCompleted)
	assert.Equal(t, 50, toggled.MilestoneProgress)
	assert.Equal(t, 50, toggled.AssignmentProgress)

	rec = do(t, s, http.MethodPut, "/api/tasks/"+taskID.String()+"/complete", obj{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.ToggleResult](t, rec).Task.IsCompleted)

	rec = do(t, s, http.MethodPut, "/api/tasks/"+taskID.String()+"/complete", obj{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/milestones/"+milestone.ID.String()+"/tasks", obj{"title": "Cite", "estimated_minutes": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/milestones/"+milestone.ID.String()+"/tasks", obj{"title": "Cite", "estimated_minutes": 15})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Task models.Task `json:"task"`
	}](t, rec).Task
	assert.Equal(t, 2, created.OrderIndex)

	rec = do(t, s, http.MethodGet, "/api/milestones/"+milestone.ID.String()+"/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Tasks []models.Task `json:"tasks"`
	}](t, rec).Tasks
	require.Len(t, listed, 3)
	assert.Equal(t, "Cite", listed[2].Title)

	rec = do(t, s, http.MethodGet, "/api/milestones/"+uuid.NewString()+"/tasks", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/tasks/"+created.ID.String(), obj{"estimated_minutes": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPut, "/api/tasks/"+created.ID.String()+"/assessment", obj{"feedback": "Good grasp", "score": 90})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/tasks/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/assignments/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[assignmentBody](t, rec).Assignment
	assert.Equal(t, 2, view.TotalTasksCount)
	assert.Equal(t, 1, view.CompletedTasksCount)
	assert.Equal(t, 50, view.ProgressPercent)
	assert.Equal(t, models.StatusInProgress, view.Status)
}

func TestMilestoneEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	a := createAssignment(t, s, uuid.New())

	rec := do(t, s, http.MethodPost, "/api/assignments/"+a.ID.String()+"/milestones", obj{"title": "Outline"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decode[struct {
		Milestone models.Milestone `json:"milestone"`
	}](t, rec).Milestone
	assert.Equal(t, 0, m.OrderIndex)

	rec = do(t, s, http.MethodPut, "/api/milestones/"+m.ID.String(), obj{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/milestones/"+m.ID.String(), obj{"title": "Detailed outline"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/milestones/"+m.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodDelete, "/api/milestones/"+m.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	a := createAssignment(t, s, uuid.New())
	path := "/api/assignments/" + a.ID.String() + "/chat"

	rec := do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, path, obj{"role": "user", "content": "How long should the intro be?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, path, obj{"role": "system", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, path, obj{"role": "user", "content": "x", "task_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := decode[struct {
		Messages []models.ChatMessage `json:"messages"`
	}](t, rec).Messages
	require.Len(t, messages, 1)
	assert.Equal(t, "How long should the intro be?", messages[0].Content)
}

func TestDashboardEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	user := uuid.New()
	a := createAssignment(t, s, user)
	rec := do(t, s, http.MethodPost, "/api/assignments/"+a.ID.String()+"/plan", researchPlan)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/dashboard?user_id="+user.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decode[models.Dashboard](t, rec)
	assert.Equal(t, 1, d.Stats.TotalAssignments)
	assert.Equal(t, 1, d.Stats.ActiveAssignments)
	require.NotNil(t, d.NextTask)
	assert.Equal(t, "Find 3 sources", d.NextTask.Title)
}

func TestRecalculateEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	a := createAssignment(t, s, uuid.New())

	rec := do(t, s, http.MethodPost, "/api/assignments/"+a.ID.String()+"/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusPending, decode[assignmentBody](t, rec).Assignment.Status)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>planner</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	s := newTestServer(t, dir)

	rec := do(t, s, http.MethodGet, "/assignments/123", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planner")

	rec = do(t, s, http.MethodGet, "/assets/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint not found")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("task %w", sqlite.ErrNotFound), http.StatusNotFound},
		{&models.InputError{Field: "title", Tag: "required"}, http.StatusBadRequest},
		{plan.ErrEmptyPlan, http.StatusUnprocessableEntity},
		{&plan.ValidationError{Path: "milestones[0].title", Reason: "is required"}, http.StatusUnprocessableEntity},
		{sqlite.ErrPlanExists, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
