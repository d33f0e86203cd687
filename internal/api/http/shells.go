package http

import (
	"net/http"

	"github.com/GriffinCanCode/stubterm/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AddShellRequest registers a shell.
type AddShellRequest struct {
	Location   string `json:"location" binding:"required"`
	Type       string `json:"type"`
	SourceIP   string `json:"source_ip"`
	Credential string `json:"credential"`
	Encoding   string `json:"encoding"`
	Label      string `json:"label"`
	Note       string `json:"note"`
}

// ExecRequest runs one command without a terminal.
type ExecRequest struct {
	Path    string `json:"path"`
	Command string `json:"command" binding:"required"`
}

// ListShells returns the stored shells matching the query filter.
func (h *Handlers) ListShells(c *gin.Context) {
	var filter types.ShellFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}

	shells, err := h.registry.GetShellList(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shells": shells, "count": len(shells)})
}

// AddShell registers a new shell.
func (h *Handlers) AddShell(c *gin.Context) {
	var req AddShellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.registry.AddNewShell(c.Request.Context(), types.Shell{
		Location:   req.Location,
		Type:       types.ShellType(req.Type),
		SourceIP:   req.SourceIP,
		Credential: req.Credential,
		Encoding:   req.Encoding,
		Label:      req.Label,
		Note:       req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("shell registered", zap.Uint("shell_id", id), zap.String("url", req.Location))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GetShell returns one shell.
func (h *Handlers) GetShell(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	shell, err := h.registry.GetShell(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shell)
}

// UpdateShell applies a partial update. Changing the connection fields
// closes the shell's terminal.
func (h *Handlers) UpdateShell(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	var patch types.ShellPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	shell, err := h.registry.UpdateShell(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shell)
}

// DeleteShell removes a shell and its terminal.
func (h *Handlers) DeleteShell(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteShell(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// InitShell gathers a system snapshot of the remote host.
func (h *Handlers) InitShell(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	info, err := h.registry.InitShell(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// TestConnect probes one shell.
func (h *Handlers) TestConnect(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	alive, err := h.registry.TestConnect(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "alive": alive})
}

// ProbeAll probes every shell.
func (h *Handlers) ProbeAll(c *gin.Context) {
	results, err := h.registry.ProbeAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Exec runs a single command in the given directory without a terminal.
func (h *Handlers) Exec(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	var req ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	out, err := h.registry.Exec(c.Request.Context(), id, req.Path, req.Command)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}
