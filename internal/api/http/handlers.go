package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/stubterm/backend/internal/domain/registry"
	"github.com/GriffinCanCode/stubterm/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stubterm/backend/internal/logging"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/monitor"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *registry.Manager
	monitor  *monitor.Provider
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Manager, mon *monitor.Provider, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		registry: reg,
		monitor:  mon,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	shells := router.Group("/shells")
	shells.GET("", h.ListShells)
	shells.POST("", h.AddShell)
	shells.POST("/probe", h.ProbeAll)
	shells.GET("/:id", h.GetShell)
	shells.PATCH("/:id", h.UpdateShell)
	shells.DELETE("/:id", h.DeleteShell)
	shells.POST("/:id/init", h.InitShell)
	shells.POST("/:id/test", h.TestConnect)
	shells.POST("/:id/exec", h.Exec)

	terminals := router.Group("/terminals")
	terminals.GET("", h.ListTerminals)
	terminals.POST("/:id", h.CreateTerminal)
	terminals.GET("/:id", h.GetTerminalInfo)
	terminals.DELETE("/:id", h.CloseTerminal)
	terminals.POST("/:id/exec", h.ExecuteCommand)
	terminals.GET("/:id/env", h.GetEnvironment)
	terminals.PUT("/:id/env", h.SetEnvironment)
	terminals.GET("/:id/env/:name", h.GetVariable)
	terminals.GET("/:id/history", h.GetHistory)
	terminals.GET("/:id/history/next", h.NextCommand)
	terminals.GET("/:id/history/previous", h.PreviousCommand)
	terminals.GET("/:id/prompt", h.GetPrompt)
	terminals.PUT("/:id/prompt", h.SetPrompt)
	terminals.GET("/:id/welcome", h.Welcome)

	local := router.Group("/local")
	local.GET("/metrics", h.LocalMetrics)
	local.GET("/interfaces", h.NetworkInterfaces)
	local.GET("/ports", h.ListeningPorts)
	local.GET("/connections", h.ActiveConnections)

	if h.metrics != nil {
		router.GET("/metrics", monitoring.Handler(h.metrics))
		router.GET("/stats", h.Stats)
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "stubterm",
		"version": Version,
	})
}

// Health reports the live terminal count.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"terminals": len(h.registry.ListTerminals()),
	})
}

// Stats returns the JSON metrics summary.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// shellID parses the :id parameter, answering 400 when it is not a
// positive integer.
func shellID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		badRequest(c, fmt.Errorf("invalid shell id %q", raw))
		return 0, false
	}
	return uint(id), true
}
