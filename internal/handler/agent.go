package handler

import (
	"errors"
	"net/http"

	"property-agent/internal/model"
	"property-agent/internal/service"
	"property-agent/internal/session"

	"github.com/gin-gonic/gin"
)

// AgentHandler handles the conversational search endpoints
type AgentHandler struct {
	dialog *service.DialogController
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(dialog *service.DialogController) *AgentHandler {
	return &AgentHandler{
		dialog: dialog,
	}
}

// RegisterRoutes mounts the agent endpoints on group
func (h *AgentHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/message", h.Message)
	group.GET("/properties/:session_id", h.Properties)
	group.POST("/session", h.CreateSession)
	group.POST("/session/:session_id/reset", h.ResetSession)
}

// Message handles POST /api/v1/agent/message
func (h *AgentHandler) Message(c *gin.Context) {
	var req model.AgentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sessionID := ""
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}

	turn, err := h.dialog.Advance(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.AgentMessageResponse{
		SessionID: turn.SessionID,
		Reply:     turn.Reply,
		Data:      turn.Properties,
	})
}

// Properties handles GET /api/v1/agent/properties/:session_id
func (h *AgentHandler) Properties(c *gin.Context) {
	sessionID := c.Param("session_id")

	result, err := h.dialog.LastSearch(c.Request.Context(), sessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	case errors.Is(err, service.ErrNoSearchYet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No search has been executed for this session yet"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load properties: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.PropertiesResponse{
		SessionID:  sessionID,
		Count:      len(result.Results),
		Properties: result.Results,
		SQLQuery:   result.SQL,
	})
}

// CreateSession handles POST /api/v1/agent/session
func (h *AgentHandler) CreateSession(c *gin.Context) {
	id, err := h.dialog.CreateSession(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, model.SessionResponse{SessionID: id, Status: "created"})
}

// ResetSession handles POST /api/v1/agent/session/:session_id/reset
func (h *AgentHandler) ResetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	err := h.dialog.ResetSession(c.Request.Context(), sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset session: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.SessionResponse{SessionID: sessionID, Status: "reset"})
}
