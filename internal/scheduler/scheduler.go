// Package scheduler runs the background loop that feeds eligible pending
// tasks to idle agents and drains the coordinator's continuation queue.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"crewhub/internal/config"
	"crewhub/internal/coordinator"
	"crewhub/internal/depgraph"
	"crewhub/internal/events"
	"crewhub/internal/store"
)

// Scheduler owns the polling loop. It is constructed with an explicit
// context at Run time and stops when that context is cancelled; there is no
// package-level stop flag.
type Scheduler struct {
	store *store.Store
	coord *coordinator.Coordinator
	bus   *events.Bus
	cfg   *config.Config

	mu       sync.Mutex
	inFlight map[string]bool // agent ids with a dispatched execution
	wg       sync.WaitGroup
}

// New builds a scheduler over the coordinator and store.
func New(s *store.Store, coord *coordinator.Coordinator, bus *events.Bus, cfg *config.Config) *Scheduler {
	return &Scheduler{
		store:    s,
		coord:    coord,
		bus:      bus,
		cfg:      cfg,
		inFlight: make(map[string]bool),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight executions to
// finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	log.Printf("[scheduler] started, interval %s", s.cfg.PollInterval())
	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] stopping")
			s.wg.Wait()
			return nil
		case cont := <-s.coord.Continuations():
			s.dispatch(ctx, cont.AgentID, cont.TaskID)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is one scheduling pass: unblock tasks whose blockers vanished, then
// hand each idle running agent its next eligible task.
func (s *Scheduler) tick(ctx context.Context) {
	projects, err := s.listProjects(ctx)
	if err != nil {
		log.Printf("[scheduler] list projects: %v", err)
		return
	}

	for _, project := range projects {
		s.sweepBlocked(ctx, project.ID)

		agents, err := s.store.ListAgents(ctx, project.ID)
		if err != nil {
			log.Printf("[scheduler] list agents for %s: %v", project.ID, err)
			continue
		}
		for _, agent := range agents {
			if agent.Status != store.AgentIdle || !s.coord.Running(agent.ID) {
				continue
			}
			task := s.nextEligible(ctx, agent)
			if task == nil {
				continue
			}
			s.dispatch(ctx, agent.ID, task.ID)
		}
	}
}

// nextEligible picks the agent's next task, skipping tasks that have
// exhausted their retry budget.
func (s *Scheduler) nextEligible(ctx context.Context, agent *store.Agent) *store.Task {
	task := depgraph.SelectNextTask(ctx, s.store, agent)
	if task == nil {
		return nil
	}
	if task.RetryCount >= s.cfg.MaxRetries {
		return nil
	}
	return task
}

// dispatch runs one execution asynchronously, at most one per agent at a
// time. The coordinator's own recovery guarantees the agent comes back idle.
func (s *Scheduler) dispatch(ctx context.Context, agentID, taskID string) {
	s.mu.Lock()
	if s.inFlight[agentID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[agentID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, agentID)
			s.mu.Unlock()
		}()

		res := s.coord.ExecuteTask(ctx, agentID, taskID)
		if res.Success {
			log.Printf("[scheduler] agent %s completed task %s", agentID, taskID)
		} else {
			log.Printf("[scheduler] agent %s failed task %s: %s", agentID, taskID, res.Error)
		}
	}()
}

// sweepBlocked re-evaluates blocked tasks so a task whose blockers were
// deleted (or completed outside the coordinator) does not stay blocked
// forever.
func (s *Scheduler) sweepBlocked(ctx context.Context, projectID string) {
	blocked, err := s.store.ListTasks(ctx, store.TaskFilter{ProjectID: projectID, Status: store.TaskBlocked})
	if err != nil {
		log.Printf("[scheduler] list blocked tasks: %v", err)
		return
	}

	for _, task := range blocked {
		if depgraph.IsBlocked(ctx, s.store, task) {
			continue
		}
		updated, err := s.store.UpdateTask(ctx, task.ID, func(t *store.Task) error {
			if t.Status != store.TaskBlocked {
				return errSkip
			}
			t.Status = store.TaskPending
			return nil
		})
		if err != nil {
			continue
		}
		s.bus.Publish(events.Event{
			Topic:     events.TopicTask,
			Type:      "task_unblocked",
			ProjectID: projectID,
			TaskID:    updated.ID,
		})
	}
}

// listProjects retries transient store failures with exponential backoff.
func (s *Scheduler) listProjects(ctx context.Context) ([]*store.Project, error) {
	var projects []*store.Project
	op := func() error {
		var err error
		projects, err = s.store.ListProjects(ctx)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return projects, nil
}

var errSkip = errSkipType{}

type errSkipType struct{}

func (errSkipType) Error() string { return "skipped" }
