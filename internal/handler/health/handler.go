package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the service needs to be ready.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHandler builds readiness checks from named dependencies, e.g. "database".
func NewHandler(checks map[string]Pinger) *Handler {
	return &Handler{checks: checks, timeout: 2 * time.Second}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("", h.LivenessCheck)
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
