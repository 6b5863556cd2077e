package cliexec

import (
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	a := &ClaudeAdapter{}

	cfg := RunConfig{
		Prompt:       "fix the bug",
		SessionID:    "sess-123",
		Model:        "sonnet",
		SystemPrompt: "you are a developer",
		AllowedTools: []string{"Bash", "Edit"},
		MaxTurns:     10,
		PermMode:     "dangerously-skip-permissions",
	}
	args := a.buildArgs(cfg)
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-p fix the bug",
		"--output-format stream-json",
		"--resume sess-123",
		"--model sonnet",
		"--system-prompt you are a developer",
		"--allowedTools Bash",
		"--allowedTools Edit",
		"--max-turns 10",
		"--dangerously-skip-permissions",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}

func TestBuildArgsMinimal(t *testing.T) {
	a := &ClaudeAdapter{}
	args := a.buildArgs(RunConfig{Prompt: "hello"})
	joined := strings.Join(args, " ")

	for _, unwanted := range []string{"--resume", "--model", "--system-prompt", "--max-turns"} {
		if strings.Contains(joined, unwanted) {
			t.Errorf("minimal args should not contain %q: %v", unwanted, args)
		}
	}
}

func TestConsumeEventResultAndSession(t *testing.T) {
	a := &ClaudeAdapter{}
	result := &RunResult{}

	var chunks []string
	onChunk := func(s string) { chunks = append(chunks, s) }

	a.consumeEvent(`{"type":"system","session_id":"sess-9"}`, result, onChunk)
	a.consumeEvent(`{"type":"assistant","message":{"content":[{"type":"text","text":"working on it"}]}}`, result, onChunk)
	a.consumeEvent(`{"type":"result","result":"all done","session_id":"sess-9"}`, result, onChunk)

	if result.SessionID != "sess-9" {
		t.Errorf("SessionID = %q, want sess-9", result.SessionID)
	}
	if result.Output != "all done" {
		t.Errorf("Output = %q, want all done", result.Output)
	}
	if result.IsError {
		t.Error("IsError should be false")
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0], "working on it") {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestConsumeEventError(t *testing.T) {
	a := &ClaudeAdapter{}
	result := &RunResult{}

	a.consumeEvent(`{"type":"result","result":"","is_error":true}`, result, nil)

	if !result.IsError {
		t.Fatal("IsError should be true")
	}
	if result.ErrorText == "" {
		t.Error("ErrorText should be filled in when the tool gives no details")
	}
}

func TestConsumeEventNonJSONForwardedRaw(t *testing.T) {
	a := &ClaudeAdapter{}
	result := &RunResult{}

	var chunks []string
	a.consumeEvent("warning: something on stderr", result, func(s string) { chunks = append(chunks, s) })

	if len(chunks) != 1 || !strings.Contains(chunks[0], "warning: something on stderr") {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestRunRejectsInvalidPermMode(t *testing.T) {
	a := &ClaudeAdapter{}
	_, err := a.Run(t.Context(), RunConfig{Prompt: "x", PermMode: "yolo"})
	if err == nil {
		t.Fatal("expected error for invalid permission mode")
	}
}

func TestRegistry(t *testing.T) {
	if _, err := Get("claude"); err != nil {
		t.Fatalf("claude adapter should be registered: %v", err)
	}
	if _, err := Get("nope"); err == nil {
		t.Error("Get(nope) should fail")
	}

	found := false
	for _, name := range Names() {
		if name == "claude" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing claude", Names())
	}
}
