package aios

import "encoding/json"

// AgentRunParams is the payload of an agent run request.
type AgentRunParams struct {
	AgentName string
	Task      string
	// SessionID is omitted from the request body when nil.
	SessionID *string
}

// Session returns a pointer suitable for AgentRunParams.SessionID.
func Session(id string) *string { return &id }

// MarshalJSON writes the wire form of the params. Field names are mapped
// explicitly so the request contract does not depend on struct tags.
func (p AgentRunParams) MarshalJSON() ([]byte, error) {
	body := map[string]string{
		"agentName": p.AgentName,
		"task":      p.Task,
	}
	if p.SessionID != nil {
		body["sessionId"] = *p.SessionID
	}
	return json.Marshal(body)
}
