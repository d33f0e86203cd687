package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LocalMetrics reports CPU and memory use of the operator's machine.
func (h *Handlers) LocalMetrics(c *gin.Context) {
	metrics, err := h.monitor.SystemMetrics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (h *Handlers) NetworkInterfaces(c *gin.Context) {
	ifaces, err := h.monitor.NetworkInterfaces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interfaces": ifaces})
}

func (h *Handlers) ListeningPorts(c *gin.Context) {
	ports, err := h.monitor.ListeningPorts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

func (h *Handlers) ActiveConnections(c *gin.Context) {
	conns, err := h.monitor.ActiveConnections(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}
