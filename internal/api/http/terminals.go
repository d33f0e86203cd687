package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CommandRequest runs a command in a terminal.
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// EnvRequest assigns one environment variable.
type EnvRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// PromptRequest replaces the prompt template.
type PromptRequest struct {
	Template string `json:"template" binding:"required"`
}

// ListTerminals returns every live terminal.
func (h *Handlers) ListTerminals(c *gin.Context) {
	terminals := h.registry.ListTerminals()
	c.JSON(http.StatusOK, gin.H{"terminals": terminals, "count": len(terminals)})
}

// CreateTerminal opens a terminal, replacing any live one.
func (h *Handlers) CreateTerminal(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	info, err := h.registry.CreateTerminal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *Handlers) GetTerminalInfo(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	info, err := h.registry.GetTerminalInfo(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handlers) CloseTerminal(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	if err := h.registry.CloseTerminal(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExecuteCommand runs a command in the shell's terminal.
func (h *Handlers) ExecuteCommand(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.registry.ExecuteCommand(c.Request.Context(), id, req.Command)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetEnvironment(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	env, err := h.registry.GetTerminalEnvironment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"env": env})
}

func (h *Handlers) GetVariable(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	name := c.Param("name")
	value, err := h.registry.GetTerminalVariable(c.Request.Context(), id, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "value": value})
}

func (h *Handlers) SetEnvironment(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	var req EnvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.registry.SetTerminalEnvironment(c.Request.Context(), id, req.Name, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "value": req.Value})
}

func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	history, err := h.registry.GetTerminalHistory(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// NextCommand moves the history cursor forward.
func (h *Handlers) NextCommand(c *gin.Context) {
	h.historyStep(c, h.registry.GetNextCommand)
}

// PreviousCommand moves the history cursor back.
func (h *Handlers) PreviousCommand(c *gin.Context) {
	h.historyStep(c, h.registry.GetPreviousCommand)
}

func (h *Handlers) historyStep(c *gin.Context, step func(uint) (string, error)) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	command, err := step(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": command})
}

func (h *Handlers) GetPrompt(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	prompt, err := h.registry.GetTerminalPrompt(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

func (h *Handlers) SetPrompt(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	prompt, err := h.registry.SetTerminalPrompt(id, req.Template)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

func (h *Handlers) Welcome(c *gin.Context) {
	id, ok := shellID(c)
	if !ok {
		return
	}
	message, err := h.registry.GetTerminalWelcomeMessage(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}
