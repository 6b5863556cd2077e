package cliexec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// stillWaitingInterval is how long the reader waits for output before
// publishing a placeholder chunk, so monitors can distinguish a
// silent-but-alive process from a hang.
const stillWaitingInterval = 15 * time.Second

// emptyOutputPlaceholder replaces empty output on successful exit. A tool
// returning nothing is suspicious but not necessarily a failure.
const emptyOutputPlaceholder = "(external tool exited successfully but produced no output)"

// ClaudeAdapter invokes the Claude CLI.
type ClaudeAdapter struct{}

func init() {
	Register("claude", &ClaudeAdapter{})
}

// Name returns the adapter identifier.
func (a *ClaudeAdapter) Name() string { return "claude" }

// Available checks if the claude CLI is installed and executable.
func (a *ClaudeAdapter) Available() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

// Run spawns the claude CLI, streams its merged stdout/stderr incrementally
// through cfg.OnChunk, and enforces the wall-clock timeout. On timeout the
// whole process group is killed and ErrTimeout is returned alongside the
// partial result.
func (a *ClaudeAdapter) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.PermMode != "" && cfg.PermMode != "dangerously-skip-permissions" {
		return nil, fmt.Errorf("invalid permission mode: %q", cfg.PermMode)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command("claude", a.buildArgs(cfg)...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	setSysProcAttr(cmd)

	// Merge stdout and stderr into a single stream via one pipe pair.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	started := time.Now()
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start claude: %w", err)
	}
	// The child holds its own copy of the write end; close ours so the read
	// side sees EOF when the process exits.
	pw.Close()

	lines := make(chan string, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	result := &RunResult{}
	var raw strings.Builder
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	waiting := time.NewTicker(stillWaitingInterval)
	defer waiting.Stop()

	timedOut := false
	cancelled := false

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			waiting.Reset(stillWaitingInterval)
			raw.WriteString(line)
			raw.WriteByte('\n')
			a.consumeEvent(line, result, cfg.OnChunk)

		case <-waiting.C:
			if cfg.OnChunk != nil {
				cfg.OnChunk(fmt.Sprintf("[still waiting for output, %s elapsed]\n",
					time.Since(started).Round(time.Second)))
			}

		case <-deadline.C:
			timedOut = true
			killProcessGroup(cmd)
			break loop

		case <-ctx.Done():
			cancelled = true
			killProcessGroup(cmd)
			break loop
		}
	}

	// Drain remaining lines after a kill so the reader goroutine exits.
	if timedOut || cancelled {
		for line := range lines {
			raw.WriteString(line)
			raw.WriteByte('\n')
		}
	}
	<-readErr
	pr.Close()

	waitErr := cmd.Wait()
	result.Duration = time.Since(started)

	if timedOut {
		result.IsError = true
		result.ErrorText = fmt.Sprintf("killed after exceeding %s timeout", timeout)
		return result, ErrTimeout
	}
	if cancelled {
		return result, ctx.Err()
	}

	if result.Output == "" {
		result.Output = strings.TrimSpace(raw.String())
	}

	if waitErr != nil && !result.IsError {
		result.IsError = true
		result.ErrorText = strings.TrimSpace(raw.String())
		if result.ErrorText == "" {
			result.ErrorText = waitErr.Error()
		}
	}

	if !result.IsError && result.Output == "" {
		result.Output = emptyOutputPlaceholder
	}

	return result, nil
}

// buildArgs constructs the claude command line.
func (a *ClaudeAdapter) buildArgs(cfg RunConfig) []string {
	args := []string{"-p", cfg.Prompt, "--output-format", "stream-json", "--verbose"}

	if cfg.SessionID != "" {
		args = append(args, "--resume", cfg.SessionID)
	}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.SystemPrompt != "" {
		args = append(args, "--system-prompt", cfg.SystemPrompt)
	}
	for _, tool := range cfg.AllowedTools {
		args = append(args, "--allowedTools", tool)
	}
	if cfg.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", cfg.MaxTurns))
	}
	if cfg.PermMode != "" {
		args = append(args, "--"+cfg.PermMode)
	}
	return args
}

// claudeEvent is one line of `claude --output-format stream-json` output.
type claudeEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Result    string `json:"result"`
	SessionID string `json:"session_id"`
	IsError   bool   `json:"is_error"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// consumeEvent parses one output line, updates result metadata, and forwards
// human-readable text to onChunk. Unparseable lines (plain stderr text) are
// forwarded as-is.
func (a *ClaudeAdapter) consumeEvent(line string, result *RunResult, onChunk func(string)) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var ev claudeEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		if onChunk != nil {
			onChunk(line + "\n")
		}
		return
	}

	if ev.SessionID != "" {
		result.SessionID = ev.SessionID
	}

	switch ev.Type {
	case "assistant":
		for _, block := range ev.Message.Content {
			if block.Type == "text" && block.Text != "" && onChunk != nil {
				onChunk(block.Text + "\n")
			}
		}
	case "result":
		result.Output = ev.Result
		if ev.IsError {
			result.IsError = true
			result.ErrorText = ev.Result
			if result.ErrorText == "" {
				result.ErrorText = "claude reported is_error with no details"
			}
		}
	}
}
