// Package depgraph resolves the blocked-by relation among tasks: whether a
// task's blockers are satisfied, which dependents a completion unblocks, and
// which task an agent should pick up next.
package depgraph

import (
	"context"
	"log"

	"crewhub/internal/events"
	"crewhub/internal/role"
	"crewhub/internal/store"
)

// IsBlocked reports whether any of the task's blockers is incomplete.
// Blocker ids that do not resolve to a task are treated as satisfied so a
// deleted or mistyped reference cannot deadlock a dependent forever; each
// occurrence is logged as a warning because it may indicate a data
// integrity problem.
func IsBlocked(ctx context.Context, s *store.Store, task *store.Task) bool {
	for _, depID := range task.BlockedBy {
		dep, err := s.GetTask(ctx, depID)
		if err != nil {
			log.Printf("[depgraph] warning: task %s references missing blocker %s, treating as satisfied", task.ID, depID)
			continue
		}
		if dep.Status != store.TaskCompleted {
			return true
		}
	}
	return false
}

// InitialStatus computes the status a new task should be created with,
// given its dependency list.
func InitialStatus(ctx context.Context, s *store.Store, task *store.Task) store.TaskStatus {
	if IsBlocked(ctx, s, task) {
		return store.TaskBlocked
	}
	return store.TaskPending
}

// UnblockDependents scans blocked tasks in the project after completedTaskID
// finished and transitions any whose blockers are now all satisfied to
// pending, publishing a notification per transition. Idempotent: a second
// pass after the same completion finds no remaining blocked dependents and
// produces no further transitions.
func UnblockDependents(ctx context.Context, s *store.Store, bus *events.Bus, completedTaskID, projectID string) []string {
	blocked, err := s.ListTasks(ctx, store.TaskFilter{ProjectID: projectID, Status: store.TaskBlocked})
	if err != nil {
		log.Printf("[depgraph] list blocked tasks: %v", err)
		return nil
	}

	var unblocked []string
	for _, task := range blocked {
		if !contains(task.BlockedBy, completedTaskID) {
			continue
		}
		if IsBlocked(ctx, s, task) {
			continue
		}

		updated, err := s.UpdateTask(ctx, task.ID, func(t *store.Task) error {
			// Re-check under the update transaction; a concurrent pass may
			// have already transitioned it.
			if t.Status != store.TaskBlocked {
				return errAlreadyTransitioned
			}
			t.Status = store.TaskPending
			return nil
		})
		if err != nil {
			continue
		}

		unblocked = append(unblocked, updated.ID)
		if bus != nil {
			bus.Publish(events.Event{
				Topic:     events.TopicTask,
				Type:      "task_unblocked",
				ProjectID: projectID,
				TaskID:    updated.ID,
			})
		}
	}
	return unblocked
}

// SelectNextTask picks the next eligible task for an agent: first any pending
// task already assigned to it, ordered by priority then age; otherwise, for
// developer-like roles only, an unassigned pending task in the project.
// Returns nil when nothing is eligible.
func SelectNextTask(ctx context.Context, s *store.Store, agent *store.Agent) *store.Task {
	assigned, err := s.ListTasks(ctx, store.TaskFilter{
		ProjectID:  agent.ProjectID,
		Status:     store.TaskPending,
		AssignedTo: agent.ID,
	})
	if err != nil {
		log.Printf("[depgraph] list assigned tasks: %v", err)
		return nil
	}
	for _, task := range assigned {
		if !IsBlocked(ctx, s, task) {
			return task
		}
	}

	if !role.Parse(agent.Role).IsDeveloperLike() {
		return nil
	}

	unassigned, err := s.ListTasks(ctx, store.TaskFilter{
		ProjectID:  agent.ProjectID,
		Status:     store.TaskPending,
		Unassigned: true,
	})
	if err != nil {
		log.Printf("[depgraph] list unassigned tasks: %v", err)
		return nil
	}
	for _, task := range unassigned {
		if !IsBlocked(ctx, s, task) {
			return task
		}
	}
	return nil
}

var errAlreadyTransitioned = errTransition{}

type errTransition struct{}

func (errTransition) Error() string { return "task already transitioned" }

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
