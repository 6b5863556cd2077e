package store

import "time"

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
)

// AgentStatus represents the state of an agent.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentWorking AgentStatus = "working"
	AgentPaused  AgentStatus = "paused"
	AgentOffline AgentStatus = "offline"
)

// Project groups agents, tasks, and chat history around one workspace.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WorkDir   string    `json:"workDir"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a unit of work with a status, optional assignee, optional
// dependency list, and before/after revision markers for audit diffing.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Priority    int        `json:"priority"`
	BlockedBy   []string   `json:"blockedBy,omitempty"`
	StartCommit string     `json:"startCommit,omitempty"`
	EndCommit   string     `json:"endCommit,omitempty"`
	RetryCount  int        `json:"retryCount"`
	LastError   string     `json:"lastError,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Agent is a logical worker bound to one persona/role within a project.
type Agent struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	Name      string      `json:"name"`
	Role      string      `json:"role,omitempty"`
	Status    AgentStatus `json:"status"`
	SessionID string      `json:"sessionId,omitempty"`
	Model     string      `json:"model,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Activity types recorded by the coordinator.
const (
	ActivityAgentStarted  = "agent_started"
	ActivityAgentStopped  = "agent_stopped"
	ActivityTaskStarted   = "task_started"
	ActivityTaskCompleted = "task_completed"
	ActivityTaskFailed    = "task_failed"
	ActivityChatRequest   = "chat_request"
)

// ActivityEntry is one append-only activity log record. The core never
// mutates or deletes entries.
type ActivityEntry struct {
	ID           int64          `json:"id"`
	AgentID      string         `json:"agentId"`
	ActivityType string         `json:"activityType"`
	Description  string         `json:"description"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// ChatMessage is one message in a project channel.
type ChatMessage struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"projectId"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskFilter narrows ListTasks results. Zero values mean "no filter".
// Unassigned, when true, matches only tasks with no assignee.
type TaskFilter struct {
	ProjectID  string
	Status     TaskStatus
	AssignedTo string
	Unassigned bool
}
