package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewhub/internal/cliexec"
	"crewhub/internal/config"
	"crewhub/internal/coordinator"
	"crewhub/internal/events"
	"crewhub/internal/store"
)

type fakeAdapter struct {
	name string
	run  func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error)
}

func (f *fakeAdapter) Name() string    { return f.name }
func (f *fakeAdapter) Available() bool { return true }
func (f *fakeAdapter) Run(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
	return f.run(ctx, cfg)
}

type fixture struct {
	store *store.Store
	coord *coordinator.Coordinator
	sched *Scheduler
	agent *store.Agent
	cfg   *config.Config
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

	cliexec.Register(adapterName, &fakeAdapter{name: adapterName, run: run})

	cfg := config.Default()
	cfg.Adapter = adapterName
	cfg.WorkspaceRoot = t.TempDir()
	cfg.SchedulerInterval = 1
	cfg.MaxRetries = 3

	coord := coordinator.New(s, bus, cfg)
	sched := New(s, coord, bus, cfg)

	if err := s.CreateProject(ctx, &store.Project{ID: "p1", Name: "demo"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	agent := &store.Agent{ProjectID: "p1", Name: "alice", Role: "developer"}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	return &fixture{store: s, coord: coord, sched: sched, agent: agent, cfg: cfg}
}

func waitForTaskStatus(t *testing.T, s *store.Store, taskID string, want store.TaskStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := s.GetTask(context.Background(), taskID)
		if err == nil && task.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, _ := s.GetTask(context.Background(), taskID)
	t.Fatalf("task %s never reached %s (now %s)", taskID, want, task.Status)
}

func TestTickDispatchesPendingTaskToIdleAgent(t *testing.T) {
	f := newFixture(t, "sched-dispatch", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return &cliexec.RunResult{Output: "done"}, nil
	})
	ctx := context.Background()

	task := &store.Task{ProjectID: "p1", Title: "work", AssignedTo: f.agent.ID}
	if err := f.store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	f.sched.tick(ctx)
	waitForTaskStatus(t, f.store, task.ID, store.TaskCompleted)
	f.sched.wg.Wait()
}

func TestTickSkipsStoppedAgents(t *testing.T) {
	f := newFixture(t, "sched-stopped", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		t.Error("adapter should not run for a stopped agent")
		return nil, nil
	})
	ctx := context.Background()

	task := &store.Task{ProjectID: "p1", Title: "work", AssignedTo: f.agent.ID}
	if err := f.store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	// Agent was never started: no process binding, status offline.

	f.sched.tick(ctx)
	f.sched.wg.Wait()

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.Status != store.TaskPending {
		t.Errorf("task status = %s, want untouched pending", got.Status)
	}
}

func TestTickRespectsRetryBudget(t *testing.T) {
	f := newFixture(t, "sched-retries", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		t.Error("exhausted task should not be dispatched")
		return nil, nil
	})
	ctx := context.Background()

	task := &store.Task{ProjectID: "p1", Title: "flaky", AssignedTo: f.agent.ID, RetryCount: 3}
	if err := f.store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	f.sched.tick(ctx)
	f.sched.wg.Wait()

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.Status != store.TaskPending {
		t.Errorf("task status = %s, want pending (out of retries)", got.Status)
	}
}

func TestSweepBlockedUnblocksOrphanedTask(t *testing.T) {
	f := newFixture(t, "sched-sweep", nil)
	ctx := context.Background()

	task := &store.Task{
		ProjectID: "p1", Title: "orphaned",
		Status: store.TaskBlocked, BlockedBy: []string{"deleted-task"},
	}
	if err := f.store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	f.sched.sweepBlocked(ctx, "p1")

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.Status != store.TaskPending {
		t.Errorf("task status = %s, want pending after sweep", got.Status)
	}
}

func TestRunDrainsContinuations(t *testing.T) {
	f := newFixture(t, "sched-continuation", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return &cliexec.RunResult{Output: "ok"}, nil
	})
	// Keep the ticker out of the way; this test exercises only the
	// continuation path.
	f.cfg.SchedulerInterval = 3600
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &store.Task{ProjectID: "p1", Title: "first", AssignedTo: f.agent.ID, Priority: 2}
	second := &store.Task{ProjectID: "p1", Title: "second", AssignedTo: f.agent.ID, Priority: 1}
	for _, task := range []*store.Task{first, second} {
		if err := f.store.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	f.coord.StartAgent(ctx, f.agent.ID, "p1")

	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()

	// Executing the first task enqueues the second as a continuation, which
	// the running scheduler picks up.
	res := f.coord.ExecuteTask(ctx, f.agent.ID, first.ID)
	if !res.Success {
		t.Fatalf("ExecuteTask: %s", res.Error)
	}
	if res.NextTask != second.ID {
		t.Fatalf("NextTask = %q, want %q", res.NextTask, second.ID)
	}

	waitForTaskStatus(t, f.store, second.ID, store.TaskCompleted)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, "sched-cancel", func(ctx context.Context, cfg cliexec.RunConfig) (*cliexec.RunResult, error) {
		return nil, errors.New("unused")
	})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
