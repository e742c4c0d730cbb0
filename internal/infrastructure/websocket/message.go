package websocket

import (
	"time"
)

// Event types (server -> client), one per domain.TraceStatus transition.
const (
	EventNodeRunning = "node.running"
	EventNodeSuccess = "node.success"
	EventNodeFailed  = "node.failed"
)

// Command types (client -> server)
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
)

// WSEvent represents one trace event streamed to a subscribed client. It
// mirrors domain.TraceEntry rather than embedding it directly so the wire
// format stays stable even if the domain type grows internal-only fields.
type WSEvent struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	NodeID     string    `json:"node_id"`
	Executor   string    `json:"executor"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Output     any       `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// WSCommand represents a command sent from client to server.
type WSCommand struct {
	Action string `json:"action"`
	RunID  string `json:"run_id,omitempty"`
}

// WSResponse represents a response to a client command.
type WSResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewWSEvent creates a new WSEvent with the given type and ids, timestamped now.
func NewWSEvent(eventType, runID, nodeID string) *WSEvent {
	return &WSEvent{Type: eventType, Timestamp: time.Now(), RunID: runID, NodeID: nodeID}
}

// NewSuccessResponse creates a success response.
func NewSuccessResponse(responseType, message string) *WSResponse {
	return &WSResponse{Type: responseType, Success: true, Message: message}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(responseType, errorMsg string) *WSResponse {
	return &WSResponse{Type: responseType, Success: false, Error: errorMsg}
}
