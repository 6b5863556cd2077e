package httpserver

// ErrorResponse is the error payload for all failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// CreateProjectRequest is the POST /projects body.
type CreateProjectRequest struct {
	Name    string `json:"name"`
	WorkDir string `json:"workDir,omitempty"`
}

// CreateTaskRequest is the POST /tasks body.
type CreateTaskRequest struct {
	ProjectID   string   `json:"projectId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssignedTo  string   `json:"assignedTo,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	BlockedBy   []string `json:"blockedBy,omitempty"`
}

// UpdateTaskRequest is the PATCH /tasks/{id} body. Nil fields are left
// unchanged.
type UpdateTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	AssignedTo  *string   `json:"assignedTo,omitempty"`
	Priority    *int      `json:"priority,omitempty"`
	BlockedBy   *[]string `json:"blockedBy,omitempty"`
}

// CreateAgentRequest is the POST /agents body.
type CreateAgentRequest struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Model     string `json:"model,omitempty"`
}

// ExecuteRequest is the POST /agents/{id}/execute body.
type ExecuteRequest struct {
	TaskID string `json:"taskId"`
}

// ChatPostRequest is the POST /chat body.
type ChatPostRequest struct {
	ProjectID string `json:"projectId"`
	Channel   string `json:"channel,omitempty"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
}

// ChatExecuteRequest is the POST /chat/execute body.
type ChatExecuteRequest struct {
	AgentID string `json:"agentId"`
	Request string `json:"request"`
	Channel string `json:"channel,omitempty"`
}

// OKResponse is a minimal success acknowledgment.
type OKResponse struct {
	OK bool `json:"ok"`
}
