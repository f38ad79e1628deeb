package sinks

import (
	"encoding/json"
	"time"
)

// Event represents a completed agent run published downstream.
type Event struct {
	RunID       string          `json:"run_id"`
	AgentName   string          `json:"agent_name"`
	Task        string          `json:"task"`
	SessionID   string          `json:"session_id,omitempty"`
	Response    json.RawMessage `json:"response"`
	CompletedAt time.Time       `json:"completed_at"`
}

// NewEvent constructs an Event for the given run.
func NewEvent(runID, agentName, task, sessionID string, response json.RawMessage) Event {
	return Event{
		RunID:       runID,
		AgentName:   agentName,
		Task:        task,
		SessionID:   sessionID,
		Response:    response,
		CompletedAt: time.Now().UTC(),
	}
}

const attrAgentName = "agent_name"
