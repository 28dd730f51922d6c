package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyplan/internal/models"
)

// handleCreateMilestone appends a milestone to an assignment.
func (s *Server) handleCreateMilestone(c *gin.Context) {
	assignmentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.NewMilestone
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	milestone, err := s.store.CreateMilestone(c.Request.Context(), assignmentID, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"milestone": milestone})
}

// handleUpdateMilestone renames a milestone.
func (s *Server) handleUpdateMilestone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.NewMilestone
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	milestone, err := s.store.UpdateMilestone(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"milestone": milestone})
}

// handleDeleteMilestone removes a milestone with its tasks.
func (s *Server) handleDeleteMilestone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	assignment, err := s.store.DeleteMilestone(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted", "assignment": assignment.View(s.store.Now())})
}
