package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"crewhub/internal/coordinator"
	"crewhub/internal/depgraph"
	"crewhub/internal/liveout"
	"crewhub/internal/store"
)

// -- task_create --

type taskCreateInput struct {
	ProjectID   string   `json:"projectId" jsonschema:"Project id"`
	Title       string   `json:"title" jsonschema:"Task title"`
	Description string   `json:"description,omitempty" jsonschema:"Task description"`
	AssignedTo  string   `json:"assignedTo,omitempty" jsonschema:"Agent id to assign"`
	Priority    int      `json:"priority,omitempty" jsonschema:"Higher runs first"`
	BlockedBy   []string `json:"blockedBy,omitempty" jsonschema:"Task ids that must complete first"`
}

type taskCreateOutput struct {
	Task *store.Task `json:"task"`
}

func (s *Server) taskCreateHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input taskCreateInput) (*mcpsdk.CallToolResult, taskCreateOutput, error) {
	if input.Title == "" || input.ProjectID == "" {
		return nil, taskCreateOutput{}, fmt.Errorf("projectId and title are required")
	}

	task := &store.Task{
		ProjectID:   input.ProjectID,
		Title:       input.Title,
		Description: input.Description,
		AssignedTo:  input.AssignedTo,
		Priority:    input.Priority,
		BlockedBy:   input.BlockedBy,
	}
	task.Status = depgraph.InitialStatus(ctx, s.store, task)

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, taskCreateOutput{}, err
	}
	return nil, taskCreateOutput{Task: task}, nil
}

// -- task_list --

type taskListInput struct {
	ProjectID  string `json:"projectId" jsonschema:"Project id"`
	Status     string `json:"status,omitempty" jsonschema:"Filter by status"`
	AssignedTo string `json:"assignedTo,omitempty" jsonschema:"Filter by assignee"`
}

type taskListOutput struct {
	Tasks []*store.Task `json:"tasks"`
}

func (s *Server) taskListHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input taskListInput) (*mcpsdk.CallToolResult, taskListOutput, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		ProjectID:  input.ProjectID,
		Status:     store.TaskStatus(input.Status),
		AssignedTo: input.AssignedTo,
	})
	if err != nil {
		return nil, taskListOutput{}, err
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	return nil, taskListOutput{Tasks: tasks}, nil
}

// -- task_get --

type taskGetInput struct {
	TaskID string `json:"taskId" jsonschema:"Task id"`
}

type taskGetOutput struct {
	Task *store.Task `json:"task"`
}

func (s *Server) taskGetHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input taskGetInput) (*mcpsdk.CallToolResult, taskGetOutput, error) {
	task, err := s.store.GetTask(ctx, input.TaskID)
	if err != nil {
		return nil, taskGetOutput{}, err
	}
	return nil, taskGetOutput{Task: task}, nil
}

// -- task_update --

type taskUpdateInput struct {
	TaskID     string    `json:"taskId" jsonschema:"Task id"`
	Status     string    `json:"status,omitempty" jsonschema:"New status (pending, in_progress, blocked, review, completed)"`
	AssignedTo *string   `json:"assignedTo,omitempty" jsonschema:"New assignee; empty string unassigns"`
	Priority   *int      `json:"priority,omitempty" jsonschema:"New priority"`
	BlockedBy  *[]string `json:"blockedBy,omitempty" jsonschema:"New dependency list"`
}

type taskUpdateOutput struct {
	Task      *store.Task `json:"task"`
	Unblocked []string    `json:"unblocked,omitempty"`
}

func (s *Server) taskUpdateHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input taskUpdateInput) (*mcpsdk.CallToolResult, taskUpdateOutput, error) {
	task, err := s.store.UpdateTask(ctx, input.TaskID, func(t *store.Task) error {
		if input.Status != "" {
			t.Status = store.TaskStatus(input.Status)
		}
		if input.AssignedTo != nil {
			t.AssignedTo = *input.AssignedTo
		}
		if input.Priority != nil {
			t.Priority = *input.Priority
		}
		if input.BlockedBy != nil {
			t.BlockedBy = *input.BlockedBy
		}
		return nil
	})
	if err != nil {
		return nil, taskUpdateOutput{}, err
	}

	out := taskUpdateOutput{Task: task}
	if store.TaskStatus(input.Status) == store.TaskCompleted {
		out.Unblocked = depgraph.UnblockDependents(ctx, s.store, nil, task.ID, task.ProjectID)
	}
	return nil, out, nil
}

// -- agent_start --

type agentStartInput struct {
	AgentID string `json:"agentId" jsonschema:"Agent id"`
}

type agentStartOutput struct {
	Started bool `json:"started"`
}

func (s *Server) agentStartHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input agentStartInput) (*mcpsdk.CallToolResult, agentStartOutput, error) {
	agent, err := s.store.GetAgent(ctx, input.AgentID)
	if err != nil {
		return nil, agentStartOutput{}, err
	}
	ok := s.coord.StartAgent(ctx, input.AgentID, agent.ProjectID)
	return nil, agentStartOutput{Started: ok}, nil
}

// -- agent_stop --

type agentStopInput struct {
	AgentID string `json:"agentId" jsonschema:"Agent id"`
}

type agentStopOutput struct {
	Stopped bool `json:"stopped"`
}

func (s *Server) agentStopHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input agentStopInput) (*mcpsdk.CallToolResult, agentStopOutput, error) {
	return nil, agentStopOutput{Stopped: s.coord.StopAgent(ctx, input.AgentID)}, nil
}

// -- agent_execute --

type agentExecuteInput struct {
	AgentID string `json:"agentId" jsonschema:"Agent id"`
	TaskID  string `json:"taskId" jsonschema:"Task id"`
}

type agentExecuteOutput struct {
	Result *coordinator.Result `json:"result"`
}

func (s *Server) agentExecuteHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input agentExecuteInput) (*mcpsdk.CallToolResult, agentExecuteOutput, error) {
	if input.AgentID == "" || input.TaskID == "" {
		return nil, agentExecuteOutput{}, fmt.Errorf("agentId and taskId are required")
	}
	return nil, agentExecuteOutput{Result: s.coord.ExecuteTask(ctx, input.AgentID, input.TaskID)}, nil
}

// -- agent_output --

type agentOutputInput struct {
	AgentID string `json:"agentId" jsonschema:"Agent id"`
}

type agentOutputOutput struct {
	Record *liveout.Record `json:"record,omitempty"`
}

func (s *Server) agentOutputHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input agentOutputInput) (*mcpsdk.CallToolResult, agentOutputOutput, error) {
	return nil, agentOutputOutput{Record: s.coord.LiveOutput(input.AgentID)}, nil
}

// -- chat_post --

type chatPostInput struct {
	ProjectID string `json:"projectId" jsonschema:"Project id"`
	Channel   string `json:"channel,omitempty" jsonschema:"Channel name, defaults to general"`
	Sender    string `json:"sender" jsonschema:"Sender name"`
	Content   string `json:"content" jsonschema:"Message content"`
}

type chatPostOutput struct {
	Message *store.ChatMessage `json:"message"`
}

func (s *Server) chatPostHandler(ctx context.Context, req *mcpsdk.CallToolRequest, input chatPostInput) (*mcpsdk.CallToolResult, chatPostOutput, error) {
	if input.ProjectID == "" || input.Sender == "" || input.Content == "" {
		return nil, chatPostOutput{}, fmt.Errorf("projectId, sender and content are required")
	}
	msg := &store.ChatMessage{
		ProjectID: input.ProjectID,
		Channel:   input.Channel,
		Sender:    input.Sender,
		Content:   input.Content,
	}
	if err := s.store.SaveChatMessage(ctx, msg); err != nil {
		return nil, chatPostOutput{}, err
	}
	return nil, chatPostOutput{Message: msg}, nil
}
