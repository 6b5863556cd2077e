package depgraph

import (
	"context"
	"testing"
	"time"

	"crewhub/internal/events"
	"crewhub/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *store.Store, task *store.Task) *store.Task {
	t.Helper()
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func TestIsBlocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dep := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "blocker"})
	dependent := mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "dependent",
		Status: store.TaskBlocked, BlockedBy: []string{dep.ID},
	})

	if !IsBlocked(ctx, s, dependent) {
		t.Error("task with a pending blocker should be blocked")
	}

	if _, err := s.UpdateTask(ctx, dep.ID, func(x *store.Task) error {
		x.Status = store.TaskCompleted
		return nil
	}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	if IsBlocked(ctx, s, dependent) {
		t.Error("task whose blockers are all completed should not be blocked")
	}
}

func TestMissingBlockerDoesNotBlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "orphan dep",
		BlockedBy: []string{"no-such-task"},
	})

	if IsBlocked(ctx, s, task) {
		t.Error("a non-existent blocker id must never block a task")
	}
}

func TestInitialStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dep := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "blocker"})

	blocked := &store.Task{ProjectID: "p1", Title: "t1", BlockedBy: []string{dep.ID}}
	if got := InitialStatus(ctx, s, blocked); got != store.TaskBlocked {
		t.Errorf("InitialStatus = %s, want blocked", got)
	}

	free := &store.Task{ProjectID: "p1", Title: "t2"}
	if got := InitialStatus(ctx, s, free); got != store.TaskPending {
		t.Errorf("InitialStatus = %s, want pending", got)
	}
}

func TestUnblockDependents(t *testing.T) {
	s := newTestStore(t)
	bus := events.NewBus()
	defer bus.Close()
	taskCh := bus.Subscribe(events.TopicTask, 8)
	ctx := context.Background()

	dep := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "T0"})
	dependent := mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "T1",
		Status: store.TaskBlocked, BlockedBy: []string{dep.ID},
	})
	// Dependent on two blockers; stays blocked after only one completes.
	second := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "other blocker"})
	twoDeps := mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "T2",
		Status: store.TaskBlocked, BlockedBy: []string{dep.ID, second.ID},
	})

	if _, err := s.UpdateTask(ctx, dep.ID, func(x *store.Task) error {
		x.Status = store.TaskCompleted
		return nil
	}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	unblocked := UnblockDependents(ctx, s, bus, dep.ID, "p1")
	if len(unblocked) != 1 || unblocked[0] != dependent.ID {
		t.Fatalf("unblocked = %v, want [%s]", unblocked, dependent.ID)
	}

	got, _ := s.GetTask(ctx, dependent.ID)
	if got.Status != store.TaskPending {
		t.Errorf("T1 status = %s, want pending", got.Status)
	}
	still, _ := s.GetTask(ctx, twoDeps.ID)
	if still.Status != store.TaskBlocked {
		t.Errorf("T2 status = %s, want blocked (second blocker incomplete)", still.Status)
	}

	select {
	case ev := <-taskCh:
		if ev.Type != "task_unblocked" || ev.TaskID != dependent.ID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("expected a task_unblocked event")
	}
}

func TestUnblockDependentsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dep := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "T0", Status: store.TaskCompleted})
	mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "T1",
		Status: store.TaskBlocked, BlockedBy: []string{dep.ID},
	})

	first := UnblockDependents(ctx, s, nil, dep.ID, "p1")
	if len(first) != 1 {
		t.Fatalf("first pass unblocked %d, want 1", len(first))
	}

	second := UnblockDependents(ctx, s, nil, dep.ID, "p1")
	if len(second) != 0 {
		t.Errorf("second pass unblocked %v, want none", second)
	}

	pending, _ := s.ListTasks(ctx, store.TaskFilter{ProjectID: "p1", Status: store.TaskPending})
	if len(pending) != 1 {
		t.Errorf("pending tasks = %d, want 1", len(pending))
	}
}

func TestSelectNextTaskPriorityOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &store.Agent{ProjectID: "p1", Name: "alice", Role: "developer"}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "low", Priority: 1, AssignedTo: agent.ID,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	high := mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "high", Priority: 5, AssignedTo: agent.ID,
		CreatedAt: time.Now().Add(-time.Hour),
	})

	next := SelectNextTask(ctx, s, agent)
	if next == nil || next.ID != high.ID {
		t.Fatalf("SelectNextTask = %+v, want the priority-5 task", next)
	}
}

func TestSelectNextTaskUnassignedForDeveloperOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dev := &store.Agent{ProjectID: "p1", Name: "dev", Role: "developer"}
	pm := &store.Agent{ProjectID: "p1", Name: "pm", Role: "pm"}
	for _, a := range []*store.Agent{dev, pm} {
		if err := s.CreateAgent(ctx, a); err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}
	}

	unassigned := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "T2", Priority: 5})

	if next := SelectNextTask(ctx, s, dev); next == nil || next.ID != unassigned.ID {
		t.Errorf("developer should pick up unassigned work, got %+v", next)
	}
	if next := SelectNextTask(ctx, s, pm); next != nil {
		t.Errorf("pm should not auto-claim unassigned work, got %+v", next)
	}
}

func TestSelectNextTaskSkipsBlocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &store.Agent{ProjectID: "p1", Name: "alice", Role: "developer"}
	if err := s.CreateAgent(ctx, agent); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	blocker := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "blocker"})
	// Pending status but with an incomplete blocker: not eligible.
	mustCreate(t, s, &store.Task{
		ProjectID: "p1", Title: "stuck", Priority: 9, AssignedTo: agent.ID,
		BlockedBy: []string{blocker.ID},
	})
	free := mustCreate(t, s, &store.Task{ProjectID: "p1", Title: "free", Priority: 1, AssignedTo: agent.ID})

	next := SelectNextTask(ctx, s, agent)
	if next == nil || next.ID != free.ID {
		t.Errorf("SelectNextTask = %+v, want the unblocked task", next)
	}
}
