package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyplan/internal/models"
)

// handleListChat returns the tutor conversation of an assignment.
func (s *Server) handleListChat(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	messages, err := s.store.ListChatMessages(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"messages": messages})
}

// handleAppendChat stores one user or assistant turn.
func (s *Server) handleAppendChat(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.NewChatMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	msg, err := s.store.AppendChatMessage(c.Request.Context(), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"message": msg})
}
