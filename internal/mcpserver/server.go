// Package mcpserver exposes crewhub over the Model Context Protocol so other
// MCP-aware tools can create tasks and drive agents.
package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"crewhub/internal/coordinator"
	"crewhub/internal/store"
)

// Server wires the MCP tool handlers to the store and coordinator.
type Server struct {
	store *store.Store
	coord *coordinator.Coordinator
}

// New creates an MCP server facade.
func New(s *store.Store, coord *coordinator.Coordinator) *Server {
	return &Server{store: s, coord: coord}
}

// Run serves MCP over stdio until the context is cancelled or the transport
// closes.
func (s *Server) Run(ctx context.Context, version string) error {
	server := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "crewhub",
			Version: version,
		},
		nil,
	)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "task_create",
		Description: "Create a task in a project, optionally blocked by other tasks",
	}, s.taskCreateHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "task_list",
		Description: "List tasks in a project, optionally filtered by status or assignee",
	}, s.taskListHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "task_get",
		Description: "Get a task by id",
	}, s.taskGetHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "task_update",
		Description: "Update a task's status, assignee, priority, or dependencies",
	}, s.taskUpdateHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_start",
		Description: "Start an agent so it can execute tasks",
	}, s.agentStartHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_stop",
		Description: "Stop an agent; does not interrupt an in-flight execution",
	}, s.agentStopHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_execute",
		Description: "Execute a task on a started agent and wait for the result",
	}, s.agentExecuteHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_output",
		Description: "Get an agent's live output record",
	}, s.agentOutputHandler)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "chat_post",
		Description: "Post a message to a project chat channel",
	}, s.chatPostHandler)

	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
