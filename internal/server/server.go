package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyplan/internal/models"
	"studyplan/internal/plan"
	"studyplan/internal/storage/sqlite"
)

// Server provides HTTP handlers for the study planner backend.
type Server struct {
	engine    *gin.Engine
	store     *sqlite.Store
	logger    *slog.Logger
	staticDir string
}

// Options tunes the HTTP layer.
type Options struct {
	StaticDir   string
	CORSOrigins []string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	srv := &Server{
		engine:    router,
		store:     store,
		logger:    logger,
		staticDir: opts.StaticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/dashboard", s.handleDashboard)

		assignments := api.Group("/assignments")
		{
			assignments.GET("", s.handleListAssignments)
			assignments.POST("", s.handleCreateAssignment)
			assignments.GET(":id", s.handleGetAssignment)
			assignments.PUT(":id", s.handleUpdateAssignment)
			assignments.DELETE(":id", s.handleDeleteAssignment)
			assignments.POST(":id/plan", s.handleIngestPlan)
			assignments.POST(":id/recalculate", s.handleRecalculate)
			assignments.POST(":id/milestones", s.handleCreateMilestone)
			assignments.GET(":id/chat", s.handleListChat)
			assignments.POST(":id/chat", s.handleAppendChat)
		}

		milestones := api.Group("/milestones")
		{
			milestones.PUT(":id", s.handleUpdateMilestone)
			milestones.DELETE(":id", s.handleDeleteMilestone)
			milestones.GET(":id/tasks", s.handleListTasks)
			milestones.POST(":id/tasks", s.handleCreateTask)
		}

		tasks := api.Group("/tasks")
		{
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.PATCH(":id/toggle", s.handleToggleTask)
			tasks.PUT(":id/complete", s.handleCompleteTask)
			tasks.PUT(":id/assessment", s.handleAssessment)
		}
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to a UUID with error handling.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return uuid.Nil, false
	}
	return id, true
}

// parseUserID reads the mandatory user_id query parameter.
func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("user_id"))
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps store and validation errors to HTTP statuses.
func statusFor(err error) int {
	var inputErr *models.InputError
	var planErr *plan.ValidationError
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.Is(err, plan.ErrEmptyPlan), errors.As(err, &planErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sqlite.ErrPlanExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status matching err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
