package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crewhub/internal/cliexec"
	"crewhub/internal/config"
	"crewhub/internal/liveout"
	"crewhub/internal/store"

	"crewhub/internal/events"
)

// fakeAdapter scripts adapter behavior for coordinator tests.
type fakeAdapter struct {
	name      string
	available bool
	run       func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error)
}

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Available() bool { return f.available }
func (f *fakeAdapter) Run(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
	return f.run(ctx, cfg)
}

type fixture struct {
	store *store.Store
	bus   *events.Bus
	coord *Coordinator
	agent *store.Agent
	task  *store.Task
}

func newFixture(t *testing.T, adapterName string, run func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error)) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	cliexec.Register(adapterName, &fakeAdapter{name: adapterName, available: true, run: run})

	cfg := config.Default()
	cfg.Adapter = adapterName
	cfg.WorkspaceRoot = t.TempDir()
	cfg.ExecTimeoutSeconds = 5

	coord := New(s, bus, cfg)

	agent := &store.Agent{ProjectID: "p1", Name: "alice", Role: "developer"}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	task := &store.Task{ProjectID: "p1", Title: "build the widget", AssignedTo: agent.ID}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	return &fixture{store: s, bus: bus, coord: coord, agent: agent, task: task}
}

func (f *fixture) agentStatus(t *testing.T) store.AgentStatus {
	t.Helper()
	a, err := f.store.GetAgent(context.Background(), f.agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	return a.Status
}

func (f *fixture) taskStatus(t *testing.T) store.TaskStatus {
	t.Helper()
	task, err := f.store.GetTask(context.Background(), f.task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	return task.Status
}

func TestExecuteTaskRequiresRunningAgent(t *testing.T) {
	f := newFixture(t, "fake-not-running", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		t.Error("adapter should not be invoked")
		return nil, nil
	})

	res := f.coord.ExecuteTask(context.Background(), f.agent.ID, f.task.ID)
	if res.Success {
		t.Fatal("execution without a started agent must fail")
	}
	if !strings.Contains(res.Error, "not running") {
		t.Errorf("error = %q, want mention of agent not running", res.Error)
	}
	if got := f.taskStatus(t); got != store.TaskPending {
		t.Errorf("task status = %s, want unchanged pending", got)
	}
}

func TestExecuteTaskSuccess(t *testing.T) {
	f := newFixture(t, "fake-success", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		cfg.OnChunk("working on it\n")
		return &cliexec.RunResult{Output: "done", SessionID: "sess-42"}, nil
	})
	ctx := context.Background()

	if !f.coord.StartAgent(ctx, f.agent.ID, "p1") {
		t.Fatal("StartAgent failed")
	}

	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if !res.Success {
		t.Fatalf("ExecuteTask failed: %s", res.Error)
	}
	if res.Response != "done" {
		t.Errorf("response = %q", res.Response)
	}

	if got := f.taskStatus(t); got != store.TaskCompleted {
		t.Errorf("task status = %s, want completed", got)
	}
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle", got)
	}

	a, _ := f.store.GetAgent(ctx, f.agent.ID)
	if a.SessionID != "sess-42" {
		t.Errorf("session id = %q, want persisted sess-42", a.SessionID)
	}

	rec := f.coord.LiveOutput(f.agent.ID)
	if rec == nil || rec.Status != liveout.StatusCompleted {
		t.Errorf("live record = %+v, want completed status", rec)
	}
	if !strings.Contains(rec.Output, "working on it") {
		t.Errorf("live output missing streamed chunk: %q", rec.Output)
	}

	entries, _ := f.store.ListActivity(ctx, f.agent.ID, 0)
	var found bool
	for _, e := range entries {
		if e.ActivityType == store.ActivityTaskCompleted {
			found = true
		}
	}
	if !found {
		t.Error("expected a task_completed activity entry")
	}
}

func TestExecuteTaskFailureResetsState(t *testing.T) {
	f := newFixture(t, "fake-failure", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		cfg.OnChunk("partial output\n")
		return nil, errors.New("tool crashed mid-stream")
	})
	ctx := context.Background()
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if res.Success {
		t.Fatal("expected failure")
	}

	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle after failure", got)
	}
	if got := f.taskStatus(t); got != store.TaskPending {
		t.Errorf("task status = %s, want pending after failure", got)
	}

	task, _ := f.store.GetTask(ctx, f.task.ID)
	if task.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", task.RetryCount)
	}
	if task.LastError == "" {
		t.Error("last error should be recorded")
	}

	rec := f.coord.LiveOutput(f.agent.ID)
	if rec == nil || rec.Error == "" {
		t.Errorf("live record = %+v, want error recorded", rec)
	}
}

func TestExecuteTaskPanicRecovered(t *testing.T) {
	f := newFixture(t, "fake-panic", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		panic("unexpected explosion")
	})
	ctx := context.Background()
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want recovered failure", res)
	}
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle after panic", got)
	}
	if got := f.taskStatus(t); got != store.TaskPending {
		t.Errorf("task status = %s, want pending after panic", got)
	}
}

func TestExecuteTaskTimeoutStatus(t *testing.T) {
	f := newFixture(t, "fake-timeout", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return nil, cliexec.ErrTimeout
	})
	ctx := context.Background()
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if res.Success {
		t.Fatal("expected timeout failure")
	}

	rec := f.coord.LiveOutput(f.agent.ID)
	if rec == nil || rec.Status != liveout.StatusTimeout {
		t.Errorf("live status = %+v, want timeout (distinct from generic error)", rec)
	}
	if got := f.taskStatus(t); got != store.TaskPending {
		t.Errorf("task status = %s, want pending", got)
	}
}

func TestExecuteTaskEnqueuesContinuation(t *testing.T) {
	f := newFixture(t, "fake-continuation", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return &cliexec.RunResult{Output: "ok"}, nil
	})
	ctx := context.Background()

	second := &store.Task{ProjectID: "p1", Title: "follow-up", AssignedTo: f.agent.ID}
	if err := f.store.CreateTask(ctx, second); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	f.coord.StartAgent(ctx, f.agent.ID, "p1")
	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if !res.Success {
		t.Fatalf("ExecuteTask failed: %s", res.Error)
	}
	if res.NextTask != second.ID {
		t.Errorf("NextTask = %q, want %q", res.NextTask, second.ID)
	}

	select {
	case cont := <-f.coord.Continuations():
		if cont.AgentID != f.agent.ID || cont.TaskID != second.ID {
			t.Errorf("continuation = %+v", cont)
		}
	default:
		t.Error("expected a continuation on the work queue")
	}

	// Agent still ends idle; the scheduler marks it working when it picks
	// the continuation up.
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle", got)
	}
}

func TestExecuteTaskToolUnavailable(t *testing.T) {
	name := "fake-unavailable"
	cliexec.Register(name, &fakeAdapter{name: name, available: false, run: nil})

	f := newFixture(t, name, nil)
	// newFixture re-registered an available fake; put the unavailable one back.
	cliexec.Register(name, &fakeAdapter{name: name, available: false, run: nil})

	ctx := context.Background()
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	res := f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)
	if res.Success {
		t.Fatal("expected failure when tool is unavailable")
	}
	if !strings.Contains(res.Error, "not installed") {
		t.Errorf("error = %q", res.Error)
	}
	if got := f.taskStatus(t); got != store.TaskPending {
		t.Errorf("task status = %s, want pending for later retry", got)
	}
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle", got)
	}
}

func TestStartAgentIdempotent(t *testing.T) {
	f := newFixture(t, "fake-idempotent", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return &cliexec.RunResult{Output: "ok"}, nil
	})
	ctx := context.Background()

	if !f.coord.StartAgent(ctx, f.agent.ID, "p1") {
		t.Fatal("first start failed")
	}
	if !f.coord.StartAgent(ctx, f.agent.ID, "p1") {
		t.Fatal("second start should return true immediately")
	}
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle", got)
	}
}

func TestStartAgentUnknownAgent(t *testing.T) {
	f := newFixture(t, "fake-unknown-agent", nil)
	if f.coord.StartAgent(context.Background(), "no-such-agent", "p1") {
		t.Error("starting an unknown agent should return false")
	}
}

func TestStopAgentPersistsSession(t *testing.T) {
	f := newFixture(t, "fake-stop", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return &cliexec.RunResult{Output: "ok", SessionID: "sess-99"}, nil
	})
	ctx := context.Background()

	f.coord.StartAgent(ctx, f.agent.ID, "p1")
	f.coord.ExecuteTask(ctx, f.agent.ID, f.task.ID)

	if !f.coord.StopAgent(ctx, f.agent.ID) {
		t.Fatal("StopAgent failed")
	}
	if f.coord.Running(f.agent.ID) {
		t.Error("agent should no longer be running")
	}

	a, _ := f.store.GetAgent(ctx, f.agent.ID)
	if a.Status != store.AgentOffline {
		t.Errorf("agent status = %s, want offline", a.Status)
	}
	if a.SessionID != "sess-99" {
		t.Errorf("session id = %q, want sess-99 persisted", a.SessionID)
	}

	if f.coord.StopAgent(ctx, f.agent.ID) {
		t.Error("stopping a stopped agent should return false")
	}
}

func TestExecuteFromChatAutoStarts(t *testing.T) {
	f := newFixture(t, "fake-chat", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		if !strings.Contains(cfg.Prompt, "what is the plan") {
			t.Errorf("prompt missing request: %q", cfg.Prompt)
		}
		return &cliexec.RunResult{Output: "here is the plan"}, nil
	})
	ctx := context.Background()

	res := f.coord.ExecuteFromChat(ctx, f.agent.ID, "what is the plan", "general")
	if !res.Success {
		t.Fatalf("ExecuteFromChat failed: %s", res.Error)
	}
	if res.Response != "here is the plan" {
		t.Errorf("response = %q", res.Response)
	}
	if !f.coord.Running(f.agent.ID) {
		t.Error("agent should have been auto-started")
	}
	if got := f.agentStatus(t); got != store.AgentIdle {
		t.Errorf("agent status = %s, want idle", got)
	}

	msgs, _ := f.store.RecentMessages(ctx, "p1", 10)
	var posted bool
	for _, m := range msgs {
		if m.Content == "here is the plan" && m.Sender == "alice" {
			posted = true
		}
	}
	if !posted {
		t.Error("response should be posted back to the channel")
	}

	// No task record is created for chat execution.
	tasks, _ := f.store.ListTasks(ctx, store.TaskFilter{ProjectID: "p1"})
	if len(tasks) != 1 {
		t.Errorf("task count = %d, want only the fixture task", len(tasks))
	}
}

func TestLiveOutputAccessorDoesNotMutate(t *testing.T) {
	f := newFixture(t, "fake-accessor", nil)
	if rec := f.coord.LiveOutput("never-ran"); rec != nil {
		t.Errorf("LiveOutput for unknown agent = %+v, want nil", rec)
	}
	if rec := f.coord.LiveOutput("never-ran"); rec != nil {
		t.Error("accessor must not create records")
	}
}
