package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"studyplan/internal/models"
)

type completeRequest struct {
	Completed *bool `json:"completed"`
}

// handleListTasks fetches the ordered tasks of a milestone.
func (s *Server) handleListTasks(c *gin.Context) {
	milestoneID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetMilestone(c.Request.Context(), milestoneID); err != nil {
		s.fail(c, err)
		return
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), milestoneID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask appends a task to a milestone.
func (s *Server) handleCreateTask(c *gin.Context) {
	milestoneID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), milestoneID, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask updates title, description or estimate.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.TaskChanges
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleToggleTask flips completion and reports the new progress values.
func (s *Server) handleToggleTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	result, err := s.store.ToggleTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// handleCompleteTask sets completion to an explicit state; repeating it is a no-op.
func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Completed == nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("completed is required"))
		return
	}

	result, err := s.store.SetTaskCompleted(c.Request.Context(), id, *req.Completed)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	assignment, err := s.store.DeleteTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted", "assignment": assignment.View(s.store.Now())})
}

// handleAssessment records the outcome of a mastery check.
func (s *Server) handleAssessment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.Assessment
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.RecordAssessment(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}
