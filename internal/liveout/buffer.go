// Package liveout holds the transient, capped live-output log of each agent's
// most recent external-process invocations, consulted by monitoring interfaces.
package liveout

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status describes where an agent's current execution is in its lifecycle.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusPreparing    Status = "preparing"
	StatusInvoking     Status = "invoking"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusTimeout      Status = "timeout"
	StatusError        Status = "error"
	StatusStaleReset   Status = "stale_reset"
)

// MaxBytes caps the accumulated text per agent. When exceeded, the oldest
// content is elided behind a truncation marker; the newest is always kept.
const MaxBytes = 50_000

const truncationMarker = "[...output truncated...]\n"

// Record is a snapshot of one agent's live output state.
type Record struct {
	AgentID    string    `json:"agentId"`
	Status     Status    `json:"status"`
	Output     string    `json:"output"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Buffer maps agent ids to their live output records.
type Buffer struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{records: make(map[string]*Record)}
}

// BeginRun marks the start of a new execution for an agent. Prior output is
// retained behind a visual separator so monitors see a short trailing history
// of past runs, not just the current one.
func (b *Buffer) BeginRun(agentID string, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	rec, ok := b.records[agentID]
	if !ok {
		b.records[agentID] = &Record{
			AgentID:   agentID,
			Status:    status,
			StartedAt: now,
			UpdatedAt: now,
		}
		return
	}

	separator := fmt.Sprintf("\n\n========== new run %s ==========\n", now.Format(time.RFC3339))
	rec.Output = capTail(rec.Output + separator)
	rec.Status = status
	rec.Error = ""
	rec.StartedAt = now
	rec.UpdatedAt = now
}

// Append adds a chunk of streamed output for an agent. Within one execution
// the text is append-only.
func (b *Buffer) Append(agentID, chunk string) {
	if chunk == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.ensure(agentID)
	rec.Output = capTail(rec.Output + chunk)
	rec.UpdatedAt = time.Now()
}

// SetStatus updates the status of an agent's record.
func (b *Buffer) SetStatus(agentID string, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.ensure(agentID)
	rec.Status = status
	rec.UpdatedAt = time.Now()
}

// SetError records an error string and flips the status to StatusError,
// unless a more specific failure status was already set.
func (b *Buffer) SetError(agentID, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.ensure(agentID)
	rec.Error = errMsg
	if rec.Status != StatusTimeout {
		rec.Status = StatusError
	}
	rec.UpdatedAt = time.Now()
}

// Get returns a copy of the agent's record, or nil if none exists.
// It never mutates state.
func (b *Buffer) Get(agentID string) *Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.records[agentID]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

// Agents returns the ids of all agents with a record.
func (b *Buffer) Agents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.records))
	for id := range b.records {
		ids = append(ids, id)
	}
	return ids
}

// ensure returns the record for agentID, creating one if missing.
// Callers must hold b.mu.
func (b *Buffer) ensure(agentID string) *Record {
	rec, ok := b.records[agentID]
	if !ok {
		now := time.Now()
		rec = &Record{AgentID: agentID, Status: StatusInitializing, StartedAt: now, UpdatedAt: now}
		b.records[agentID] = rec
	}
	return rec
}

// capTail enforces MaxBytes by dropping the oldest content. The suffix of the
// full text is always preserved.
func capTail(s string) string {
	if len(s) <= MaxBytes {
		return s
	}
	keep := MaxBytes - len(truncationMarker)
	tail := s[len(s)-keep:]
	// Avoid splitting mid-line where possible.
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return truncationMarker + tail
}
