// Package coordinator drives task execution: it binds agents to external
// tool invocations, keeps agent/task status consistent across every success
// and failure path, and hands continuation work to the scheduler.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"crewhub/internal/cliexec"
	"crewhub/internal/config"
	"crewhub/internal/depgraph"
	"crewhub/internal/events"
	"crewhub/internal/gitrev"
	"crewhub/internal/liveout"
	"crewhub/internal/notify"
	"crewhub/internal/role"
	"crewhub/internal/store"
)

// Result is the outcome of one execution request.
type Result struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	NextTask string `json:"nextTask,omitempty"`
}

// Continuation is a unit of follow-up work pushed onto the work queue after
// a successful execution. The scheduler drains the queue; the coordinator
// never recurses into itself.
type Continuation struct {
	AgentID string
	TaskID  string
}

// AgentProcess is the in-memory binding for a started agent. Its presence in
// the process map is what makes an agent eligible for execution.
type AgentProcess struct {
	AgentID   string
	ProjectID string
	WorkDir   string
	SessionID string
	StartedAt time.Time
}

// Coordinator owns the agent process map and the execution lifecycle. It is
// constructed once at startup and passed explicitly to every consumer; there
// is no package-level instance.
type Coordinator struct {
	store *store.Store
	bus   *events.Bus
	live  *liveout.Buffer
	cfg   *config.Config

	mu    sync.RWMutex
	procs map[string]*AgentProcess

	breaker   *gobreaker.CircuitBreaker
	queue     chan Continuation
	notifiers []*notify.WebhookNotifier
}

// New builds a coordinator over the given store, event bus, and config.
func New(s *store.Store, bus *events.Bus, cfg *config.Config) *Coordinator {
	c := &Coordinator{
		store: s,
		bus:   bus,
		live:  liveout.NewBuffer(),
		cfg:   cfg,
		procs: make(map[string]*AgentProcess),
		queue: make(chan Continuation, 64),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cliexec",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, w := range cfg.Webhooks {
		c.notifiers = append(c.notifiers, notify.NewWebhookNotifier(w.URL, w.Events))
	}
	return c
}

// Live returns the live output buffer for monitoring surfaces.
func (c *Coordinator) Live() *liveout.Buffer { return c.live }

// Continuations returns the work queue the scheduler drains.
func (c *Coordinator) Continuations() <-chan Continuation { return c.queue }

// LiveOutput returns a snapshot of an agent's live output, or nil.
// Read-only; never mutates state.
func (c *Coordinator) LiveOutput(agentID string) *liveout.Record {
	return c.live.Get(agentID)
}

// StartAgent prepares an agent for execution: it ensures the project
// workspace exists, restores the last session id, and marks the agent idle.
// Idempotent: starting an already-running agent returns true immediately.
func (c *Coordinator) StartAgent(ctx context.Context, agentID, projectID string) bool {
	if c.proc(agentID) != nil {
		return true
	}

	agent, err := c.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("[coordinator] start agent %s: %v", agentID, err)
		return false
	}

	workDir := filepath.Join(c.cfg.WorkspaceRoot, projectID)
	if project, err := c.store.GetProject(ctx, projectID); err == nil && project.WorkDir != "" {
		workDir = project.WorkDir
	}
	if err := gitrev.EnsureRepo(ctx, workDir); err != nil {
		log.Printf("[coordinator] prepare workspace %s: %v", workDir, err)
	}

	c.mu.Lock()
	c.procs[agentID] = &AgentProcess{
		AgentID:   agentID,
		ProjectID: projectID,
		WorkDir:   workDir,
		SessionID: agent.SessionID,
		StartedAt: time.Now(),
	}
	c.mu.Unlock()

	c.setAgentStatus(ctx, agentID, store.AgentIdle)
	c.logActivity(ctx, agentID, store.ActivityAgentStarted, fmt.Sprintf("agent %s started", agent.Name), nil)
	return true
}

// StopAgent removes the agent's process binding so no further invocations
// are accepted, persisting offline status and the last known session id.
// It never kills an in-flight external process; that process is bounded by
// the adapter's own timeout.
func (c *Coordinator) StopAgent(ctx context.Context, agentID string) bool {
	c.mu.Lock()
	proc, ok := c.procs[agentID]
	if ok {
		delete(c.procs, agentID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	if _, err := c.store.UpdateAgent(ctx, agentID, func(a *store.Agent) error {
		a.Status = store.AgentOffline
		if proc.SessionID != "" {
			a.SessionID = proc.SessionID
		}
		return nil
	}); err != nil {
		log.Printf("[coordinator] stop agent %s: %v", agentID, err)
	}

	c.publishAgent(agentID, proc.ProjectID, store.AgentOffline)
	c.logActivity(ctx, agentID, store.ActivityAgentStopped, "agent stopped", nil)
	return true
}

// ExecuteTask runs one task on one agent through the external tool. Whatever
// happens inside — tool missing, subprocess failure, timeout, or a panic in
// any step — the agent comes back idle and a failed task goes back to
// pending. Callers serialize invocations per agent via the agent's status
// flag; this method makes that advisory lock self-healing.
func (c *Coordinator) ExecuteTask(ctx context.Context, agentID, taskID string) (res *Result) {
	proc := c.proc(agentID)
	if proc == nil {
		return &Result{Success: false, Error: "Agent not running; start the agent first"}
	}

	agent, aerr := c.store.GetAgent(ctx, agentID)
	task, terr := c.store.GetTask(ctx, taskID)
	if aerr != nil || terr != nil {
		return &Result{Success: false, Error: "Agent or task not found"}
	}

	// Last-resort safety net: any panic below still resets the agent to
	// idle and the task to pending before the call returns.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[coordinator] panic executing task %s on agent %s: %v", taskID, agentID, r)
			res = c.failTask(ctx, proc, agentID, taskID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	profile := selectProfile(task, c.cfg.ModelTiers)
	model := profile.Model
	if agent.Model != "" {
		model = agent.Model
	}

	c.live.BeginRun(agentID, liveout.StatusPreparing)

	c.setAgentStatus(ctx, agentID, store.AgentWorking)
	startCommit := gitrev.CurrentRevision(ctx, proc.WorkDir)
	if _, err := c.store.UpdateTask(ctx, taskID, func(t *store.Task) error {
		t.Status = store.TaskInProgress
		t.AssignedTo = agentID
		t.StartCommit = startCommit
		return nil
	}); err != nil {
		return c.failTask(ctx, proc, agentID, taskID, fmt.Sprintf("update task: %v", err))
	}
	c.publishTask(taskID, proc.ProjectID, store.TaskInProgress)
	c.logActivity(ctx, agentID, store.ActivityTaskStarted, fmt.Sprintf("started task: %s", task.Title),
		map[string]any{"taskId": taskID, "tier": profile.Tier})

	history, _ := c.store.RecentMessages(ctx, proc.ProjectID, c.cfg.ChatHistoryLimit)
	prompt := buildTaskPrompt(task, role.Parse(agent.Role), history)

	adapter, err := cliexec.Get(c.cfg.Adapter)
	if err != nil {
		return c.failTask(ctx, proc, agentID, taskID, err.Error())
	}
	if !adapter.Available() {
		return c.failTask(ctx, proc, agentID, taskID,
			fmt.Sprintf("tool %q is not installed on this host", adapter.Name()))
	}

	c.live.SetStatus(agentID, liveout.StatusInvoking)
	result, err := c.invoke(ctx, adapter, cliexec.RunConfig{
		Prompt:       prompt,
		WorkDir:      proc.WorkDir,
		Model:        model,
		SessionID:    proc.SessionID,
		AllowedTools: defaultAllowedTools,
		PermMode:     "dangerously-skip-permissions",
		Timeout:      c.cfg.ExecTimeout(),
		OnChunk: func(chunk string) {
			c.live.Append(agentID, chunk)
			c.bus.Publish(events.Event{
				Topic:   events.TopicOutput,
				AgentID: agentID,
				Type:    "output_chunk",
				Data:    map[string]any{"chunk": chunk},
			})
		},
	})
	if err != nil {
		if errors.Is(err, cliexec.ErrTimeout) {
			c.live.SetStatus(agentID, liveout.StatusTimeout)
		}
		return c.failTask(ctx, proc, agentID, taskID, err.Error())
	}
	if result.IsError {
		msg := result.ErrorText
		if msg == "" {
			msg = "tool reported an error"
		}
		return c.failTask(ctx, proc, agentID, taskID, msg)
	}

	if result.SessionID != "" {
		proc.SessionID = result.SessionID
		if _, err := c.store.UpdateAgent(ctx, agentID, func(a *store.Agent) error {
			a.SessionID = result.SessionID
			return nil
		}); err != nil {
			log.Printf("[coordinator] persist session for %s: %v", agentID, err)
		}
	}

	endCommit := gitrev.CurrentRevision(ctx, proc.WorkDir)
	if _, err := c.store.UpdateTask(ctx, taskID, func(t *store.Task) error {
		t.Status = store.TaskCompleted
		t.EndCommit = endCommit
		return nil
	}); err != nil {
		return c.failTask(ctx, proc, agentID, taskID, fmt.Sprintf("complete task: %v", err))
	}
	c.live.SetStatus(agentID, liveout.StatusCompleted)
	c.publishTask(taskID, proc.ProjectID, store.TaskCompleted)

	var liveLog string
	if rec := c.live.Get(agentID); rec != nil {
		liveLog = rec.Output
	}
	c.logActivity(ctx, agentID, store.ActivityTaskCompleted, fmt.Sprintf("completed task: %s", task.Title),
		map[string]any{"taskId": taskID, "response": result.Output, "liveOutput": liveLog})

	c.postChat(ctx, proc.ProjectID, "general", agent.Name,
		fmt.Sprintf("Completed task %q (%s)", task.Title, taskID))
	c.notifyWebhooks(notify.TaskEvent{
		Event: "task_completed", ProjectID: proc.ProjectID,
		TaskID: taskID, Title: task.Title, AgentID: agentID, Result: result.Output,
	})

	depgraph.UnblockDependents(ctx, c.store, c.bus, taskID, proc.ProjectID)

	c.setAgentStatus(ctx, agentID, store.AgentIdle)

	out := &Result{Success: true, Response: result.Output}
	if next := depgraph.SelectNextTask(ctx, c.store, agent); next != nil {
		out.NextTask = next.ID
		c.enqueue(Continuation{AgentID: agentID, TaskID: next.ID})
	}
	return out
}

// ExecuteFromChat runs an ad-hoc request through the same invocation path as
// ExecuteTask but with no task record and no dependency-graph interaction.
// The agent is auto-started when needed.
func (c *Coordinator) ExecuteFromChat(ctx context.Context, agentID, request, channel string) (res *Result) {
	agent, err := c.store.GetAgent(ctx, agentID)
	if err != nil {
		return &Result{Success: false, Error: "Agent not found"}
	}
	if c.proc(agentID) == nil && !c.StartAgent(ctx, agentID, agent.ProjectID) {
		return &Result{Success: false, Error: "Agent could not be started"}
	}
	proc := c.proc(agentID)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[coordinator] panic in chat execution for agent %s: %v", agentID, r)
			c.setAgentStatus(ctx, agentID, store.AgentIdle)
			c.live.SetError(agentID, fmt.Sprintf("internal error: %v", r))
			res = &Result{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	adapter, err := cliexec.Get(c.cfg.Adapter)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}
	}
	if !adapter.Available() {
		return &Result{Success: false, Error: fmt.Sprintf("tool %q is not installed on this host", adapter.Name())}
	}

	c.live.BeginRun(agentID, liveout.StatusPreparing)
	c.setAgentStatus(ctx, agentID, store.AgentWorking)
	c.logActivity(ctx, agentID, store.ActivityChatRequest, "chat request", map[string]any{"channel": channel})

	history, _ := c.store.RecentMessages(ctx, proc.ProjectID, c.cfg.ChatHistoryLimit)
	prompt := buildChatPrompt(agent.Name, role.Parse(agent.Role), request, history)

	c.live.SetStatus(agentID, liveout.StatusInvoking)
	result, err := c.invoke(ctx, adapter, cliexec.RunConfig{
		Prompt:       prompt,
		WorkDir:      proc.WorkDir,
		Model:        c.cfg.ModelTiers.Standard,
		SessionID:    proc.SessionID,
		AllowedTools: defaultAllowedTools,
		PermMode:     "dangerously-skip-permissions",
		Timeout:      c.cfg.ExecTimeout(),
		OnChunk:      func(chunk string) { c.live.Append(agentID, chunk) },
	})
	if err != nil {
		if errors.Is(err, cliexec.ErrTimeout) {
			c.live.SetStatus(agentID, liveout.StatusTimeout)
		}
		c.live.SetError(agentID, err.Error())
		c.setAgentStatus(ctx, agentID, store.AgentIdle)
		return &Result{Success: false, Error: err.Error()}
	}
	if result.IsError {
		c.live.SetError(agentID, result.ErrorText)
		c.setAgentStatus(ctx, agentID, store.AgentIdle)
		return &Result{Success: false, Error: result.ErrorText}
	}

	if result.SessionID != "" {
		proc.SessionID = result.SessionID
	}
	c.live.SetStatus(agentID, liveout.StatusCompleted)
	c.postChat(ctx, proc.ProjectID, channel, agent.Name, result.Output)
	c.setAgentStatus(ctx, agentID, store.AgentIdle)
	return &Result{Success: true, Response: result.Output}
}

// invoke runs the adapter behind the circuit breaker so a flapping external
// tool stops being hammered after repeated consecutive failures.
func (c *Coordinator) invoke(ctx context.Context, adapter cliexec.Adapter, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return adapter.Run(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return out.(*cliexec.RunResult), nil
}

// failTask is the single recovery path for every execution failure: task back
// to pending with the error recorded, agent back to idle, error surfaced in
// the live buffer.
func (c *Coordinator) failTask(ctx context.Context, proc *AgentProcess, agentID, taskID, msg string) *Result {
	log.Printf("[coordinator] task %s on agent %s failed: %s", taskID, agentID, msg)

	if _, err := c.store.UpdateTask(ctx, taskID, func(t *store.Task) error {
		t.Status = store.TaskPending
		t.RetryCount++
		t.LastError = msg
		return nil
	}); err != nil {
		log.Printf("[coordinator] reset task %s: %v", taskID, err)
	}
	c.setAgentStatus(ctx, agentID, store.AgentIdle)
	c.live.SetError(agentID, msg)

	c.publishTask(taskID, proc.ProjectID, store.TaskPending)
	c.logActivity(ctx, agentID, store.ActivityTaskFailed, msg, map[string]any{"taskId": taskID})
	c.notifyWebhooks(notify.TaskEvent{
		Event: "task_failed", ProjectID: proc.ProjectID,
		TaskID: taskID, AgentID: agentID, Error: msg,
	})
	return &Result{Success: false, Error: msg}
}

func (c *Coordinator) proc(agentID string) *AgentProcess {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.procs[agentID]
}

// Running reports whether the agent has an active process binding.
func (c *Coordinator) Running(agentID string) bool { return c.proc(agentID) != nil }

func (c *Coordinator) enqueue(cont Continuation) {
	select {
	case c.queue <- cont:
	default:
		log.Printf("[coordinator] continuation queue full, dropping %s/%s", cont.AgentID, cont.TaskID)
	}
}

func (c *Coordinator) setAgentStatus(ctx context.Context, agentID string, status store.AgentStatus) {
	updated, err := c.store.UpdateAgent(ctx, agentID, func(a *store.Agent) error {
		a.Status = status
		return nil
	})
	if err != nil {
		log.Printf("[coordinator] set agent %s status %s: %v", agentID, status, err)
		return
	}
	c.publishAgent(agentID, updated.ProjectID, status)
}

func (c *Coordinator) publishAgent(agentID, projectID string, status store.AgentStatus) {
	c.bus.Publish(events.Event{
		Topic:     events.TopicAgent,
		Type:      "agent_status",
		ProjectID: projectID,
		AgentID:   agentID,
		Data:      map[string]any{"status": string(status)},
	})
}

func (c *Coordinator) publishTask(taskID, projectID string, status store.TaskStatus) {
	c.bus.Publish(events.Event{
		Topic:     events.TopicTask,
		Type:      "task_status",
		ProjectID: projectID,
		TaskID:    taskID,
		Data:      map[string]any{"status": string(status)},
	})
}

func (c *Coordinator) postChat(ctx context.Context, projectID, channel, sender, content string) {
	msg := &store.ChatMessage{ProjectID: projectID, Channel: channel, Sender: sender, Content: content}
	if err := c.store.SaveChatMessage(ctx, msg); err != nil {
		log.Printf("[coordinator] save chat message: %v", err)
		return
	}
	c.bus.Publish(events.Event{
		Topic:     events.TopicChat,
		Type:      "chat_message",
		ProjectID: projectID,
		Data:      map[string]any{"channel": channel, "sender": sender, "content": content},
	})
}

func (c *Coordinator) logActivity(ctx context.Context, agentID, activityType, description string, data map[string]any) {
	err := c.store.AppendActivity(ctx, &store.ActivityEntry{
		AgentID:      agentID,
		ActivityType: activityType,
		Description:  description,
		Data:         data,
	})
	if err != nil {
		log.Printf("[coordinator] append activity: %v", err)
	}
}

func (c *Coordinator) notifyWebhooks(ev notify.TaskEvent) {
	for _, n := range c.notifiers {
		go func(n *notify.WebhookNotifier) {
			if err := n.Send(ev); err != nil {
				log.Printf("[coordinator] webhook %s: %v", n.URL, err)
			}
		}(n)
	}
}
