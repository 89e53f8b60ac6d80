package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
)

// ReadyFunc reports whether backing services are reachable.
type ReadyFunc func(ctx context.Context) error

// ReadinessCheck is one named dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check ReadyFunc
}

// DependencyError names the dependency that failed readiness.
type DependencyError struct {
	Name string
	Err  error
}

func (e *DependencyError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

func (e *DependencyError) Unwrap() error { return e.Err }

// AllReady runs checks in order and stops at the first failure. With no
// checks it returns nil, which /ready treats as always ready.
func AllReady(checks ...ReadinessCheck) ReadyFunc {
	if len(checks) == 0 {
		return nil
	}
	return func(ctx context.Context) error {
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				return &DependencyError{Name: c.Name, Err: err}
			}
		}
		return nil
	}
}

// RegisterRoutes mounts health checks and the /api routes on router.
func RegisterRoutes(router *gin.Engine, h *Handler, jwtManager *auth.JWTManager, ready ReadyFunc) {
	router.Use(RequestLogger(h.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				h.logger.Warn("readiness check failed", zap.Error(err))
				msg := "dependency unavailable"
				var depErr *DependencyError
				if errors.As(err, &depErr) {
					msg = depErr.Name + " unavailable"
				}
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  msg,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := router.Group("/api")
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager, h.logger))

	protected.GET("/wizards", h.ListWizards)
	protected.GET("/wizards/:kind", h.GetWizard)
	protected.POST("/wizards/:kind/commands", h.Command)
	protected.POST("/wizards/:kind/exports/:index", h.Export)

	protected.GET("/ws/wizards/:kind", h.StreamWizard)
}
