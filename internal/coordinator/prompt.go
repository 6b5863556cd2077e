package coordinator

import (
	"fmt"
	"strings"

	"crewhub/internal/role"
	"crewhub/internal/store"
)

// defaultAllowedTools is the bounded tool allowlist passed to every
// invocation.
var defaultAllowedTools = []string{"Bash", "Read", "Write", "Edit", "Grep", "Glob"}

var testingTitleKeywords = []string{"test", "qa", "verify", "coverage", "regression"}

const testingInstructions = `You are working as a QA engineer. Focus on verification:
- Write or extend automated tests covering the described behavior.
- Run the existing test suite and report failures with enough detail to reproduce.
- Do not change production code unless a test exposes a defect that blocks verification.`

const developmentInstructions = `Implement the task described above. Requirements:
- Keep changes focused on the task; do not refactor unrelated code.
- You MUST include tests for any behavior you add or change.
- Run the tests before finishing and fix any failures you introduced.`

// buildTaskPrompt composes the execution prompt for a task: title and
// description, a role-appropriate instruction block, and recent chat history
// as supplementary context.
func buildTaskPrompt(task *store.Task, r role.Role, history []*store.ChatMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}

	b.WriteString("\n")
	if r.IsQA() || titleMentionsTesting(task.Title) {
		b.WriteString(testingInstructions)
	} else {
		b.WriteString(developmentInstructions)
	}
	b.WriteString("\n")

	appendHistory(&b, history)
	return b.String()
}

// buildChatPrompt composes the prompt for an ad-hoc chat request.
func buildChatPrompt(agentName string, r role.Role, request string, history []*store.ChatMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s", agentName)
	if r != role.Other {
		fmt.Fprintf(&b, ", the team's %s", r)
	}
	b.WriteString(". Respond to the following request from the team chat.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", request)

	appendHistory(&b, history)
	return b.String()
}

func appendHistory(b *strings.Builder, history []*store.ChatMessage) {
	if len(history) == 0 {
		return
	}
	b.WriteString("\nRecent team chat for context:\n")
	for _, m := range history {
		fmt.Fprintf(b, "[%s] %s\n", m.Sender, m.Content)
	}
}

func titleMentionsTesting(title string) bool {
	t := strings.ToLower(title)
	for _, kw := range testingTitleKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
