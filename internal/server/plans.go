package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studyplan/internal/plan"
)

// handleIngestPlan turns the planner output in the request body into
// milestones and tasks. replace=true swaps out an existing plan.
func (s *Server) handleIngestPlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	replace := false
	if raw := c.Query("replace"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid replace flag"})
			return
		}
		replace = v
	}

	body, err := c.GetRawData()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	payload, err := plan.Decode(body)
	if err != nil {
		s.fail(c, err)
		return
	}

	milestones, err := s.store.IngestPlan(c.Request.Context(), id, payload, replace)
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := s.store.GetAssignmentView(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"milestones": milestones, "assignment": view})
}
