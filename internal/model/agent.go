package model

// AgentMessageRequest is the body of POST /message
type AgentMessageRequest struct {
	SessionID *string `json:"session_id"`
	Message   string  `json:"message" binding:"required"`
}

// AgentMessageResponse is the agent's reply to one message
type AgentMessageResponse struct {
	SessionID string     `json:"session_id"`
	Reply     string     `json:"reply"`
	Data      []Property `json:"data,omitempty"`
}

// PropertiesResponse is the body of GET /properties/:session_id
type PropertiesResponse struct {
	SessionID  string     `json:"session_id"`
	Count      int        `json:"count"`
	Properties []Property `json:"properties"`
	SQLQuery   string     `json:"sql_query"`
}

// SessionResponse is returned by the session management endpoints
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
}
