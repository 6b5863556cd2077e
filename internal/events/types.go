package events

import "time"

// Topics published by the coordinator and resolver.
const (
	TopicTask   = "task"
	TopicAgent  = "agent"
	TopicChat   = "chat"
	TopicOutput = "output"
)

// Event is a single notification published on the bus. Delivery is
// best-effort: publishers never block and never observe subscriber errors.
type Event struct {
	Topic     string         `json:"topic"`
	Type      string         `json:"type"`
	ProjectID string         `json:"projectId,omitempty"`
	AgentID   string         `json:"agentId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
