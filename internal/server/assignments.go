package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyplan/internal/models"
)

// handleListAssignments returns the user's assignments ordered by due date.
func (s *Server) handleListAssignments(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	assignments, err := s.store.ListAssignments(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"assignments": assignments})
}

// handleCreateAssignment stores an assignment from parsed instructions or manual input.
func (s *Server) handleCreateAssignment(c *gin.Context) {
	var req models.NewAssignment
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	assignment, err := s.store.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"assignment": assignment.View(s.store.Now())})
}

// handleGetAssignment returns the assignment with its milestone/task tree.
func (s *Server) handleGetAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := s.store.GetAssignmentView(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"assignment": view})
}

// handleUpdateAssignment confirms or edits title, description and due date.
func (s *Server) handleUpdateAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.AssignmentChanges
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	assignment, err := s.store.UpdateAssignment(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"assignment": assignment.View(s.store.Now())})
}

// handleDeleteAssignment removes an assignment and everything it owns.
func (s *Server) handleDeleteAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteAssignment(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleRecalculate recounts progress from task state.
func (s *Server) handleRecalculate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	assignment, err := s.store.RecalculateAssignment(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"assignment": assignment.View(s.store.Now())})
}

// handleDashboard returns active assignments, stats and the next task.
func (s *Server) handleDashboard(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	dashboard, err := s.store.Dashboard(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, dashboard)
}
