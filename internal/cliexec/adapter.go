// Package cliexec wraps invocation of external code-generation CLI tools.
// Each adapter spawns the tool as a subprocess with stdout and stderr merged
// into one stream, reads output incrementally, and enforces a hard wall-clock
// timeout.
package cliexec

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout is the hard wall-clock limit for a single invocation.
// It bounds one attempt, not the task's lifetime; retries are a scheduler
// concern.
const DefaultTimeout = 300 * time.Second

// ErrTimeout is returned when an invocation exceeds its wall-clock timeout
// and the process was forcibly terminated. It is distinct from generic
// invocation errors so monitoring can tell "the tool hung" from "the tool
// crashed".
var ErrTimeout = errors.New("execution timed out")

// Adapter is the interface for AI CLI tool adapters.
type Adapter interface {
	// Name returns the adapter identifier (e.g. "claude").
	Name() string

	// Available checks if the CLI tool is installed and executable.
	Available() bool

	// Run executes one invocation and returns the captured result.
	Run(ctx context.Context, cfg RunConfig) (*RunResult, error)
}

// RunConfig specifies the parameters for one invocation.
type RunConfig struct {
	Prompt       string
	WorkDir      string
	Model        string
	SessionID    string // resume this session when non-empty
	SystemPrompt string
	AllowedTools []string
	MaxTurns     int
	PermMode     string
	Timeout      time.Duration     // defaults to DefaultTimeout when zero
	Env          map[string]string

	// OnChunk receives each incremental output chunk as it is read, plus
	// periodic still-waiting placeholders when the process is silent. It is
	// called from the reader goroutine and must not block.
	OnChunk func(chunk string)
}

// RunResult holds the output of one invocation.
type RunResult struct {
	Output    string        // final response text
	SessionID string        // updated session id, when the tool reports one
	IsError   bool          // the tool itself reported an error
	ErrorText string        // the tool's error detail when IsError
	Duration  time.Duration
}
