package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/warrantyeye/internal/alert"
	"github.com/warrantyeye/internal/auth"
	"github.com/warrantyeye/internal/database"
	"github.com/warrantyeye/internal/models"
	"github.com/warrantyeye/internal/settings"

	"github.com/gin-gonic/gin"
)

type Server struct {
	manager   *alert.Manager
	evaluator *alert.Evaluator
	settings  *settings.Store
	router    *gin.Engine
}

func NewServer(manager *alert.Manager, evaluator *alert.Evaluator, store *settings.Store) *Server {
	server := &Server{
		manager:   manager,
		evaluator: evaluator,
		settings:  store,
		router:    gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)

	// Manager console (requires authentication and manager privilege)
	api := s.router.Group("/api/v1")
	api.Use(auth.AuthMiddleware())
	api.Use(auth.RequireRole(models.RoleStaffManager, models.RoleAdmin))

	api.GET("/alerts", s.listAlerts)
	api.PUT("/alerts/:id/acknowledge", s.acknowledgeAlert)
	api.PUT("/alerts/:id/resolve", s.resolveAlert)

	api.GET("/metrics", s.getMetrics)
	api.GET("/trends", s.getTrends)

	api.POST("/evaluate", s.triggerEvaluation)

	api.GET("/settings", s.getSettings)
	api.PUT("/settings", auth.RequireRole(models.RoleAdmin), s.updateSettings)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.GetDB().Where("username = ?", loginReq.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !user.CheckPassword(loginReq.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) listAlerts(c *gin.Context) {
	filter := alert.ListFilter{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
	}

	alerts, err := s.manager.ListAlerts(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}

	updated, err := s.manager.Acknowledge(uint(id), c.GetString("username"))
	if err != nil {
		s.alertError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) resolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}

	var req struct {
		ResolutionNote string `json:"resolution_note"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	updated, err := s.manager.Resolve(uint(id), c.GetString("username"), req.ResolutionNote)
	if err != nil {
		s.alertError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) alertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, alert.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) triggerEvaluation(c *gin.Context) {
	result, err := s.evaluator.Evaluate(context.Background())
	if err != nil {
		if errors.Is(err, settings.ErrConfigurationMissing) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"findings":    result.Findings,
		"created":     result.Created,
		"updated":     result.Updated,
		"unchanged":   result.Unchanged,
		"rule_errors": len(result.RuleErrors),
	})
}

func (s *Server) getSettings(c *gin.Context) {
	cfg, err := s.settings.Load()
	if err != nil {
		if errors.Is(err, settings.ErrConfigurationMissing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (s *Server) updateSettings(c *gin.Context) {
	var cfg settings.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.settings.Update(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, cfg)
}
