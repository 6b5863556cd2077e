package coordinator

import (
	"strings"

	"crewhub/internal/config"
	"crewhub/internal/store"
)

// Profile is the execution tier selected for a task.
type Profile struct {
	Tier  string
	Model string
}

// Complexity keyword lists. The two passes are independent: the high list is
// evaluated second and overrides the low list, so a task mentioning both
// "typo" and "refactor" runs on the heavy tier.
var lowComplexityKeywords = []string{
	"typo", "rename", "comment", "readme", "docs", "documentation",
	"format", "lint", "cleanup", "whitespace", "simple", "minor", "trivial",
}

var highComplexityKeywords = []string{
	"refactor", "architecture", "redesign", "migration", "migrate",
	"security", "concurrency", "race", "performance", "optimize",
	"protocol", "schema", "complex", "integration",
}

// selectProfile picks a model tier from the task's title and description.
// Deterministic: same task text and config always produce the same profile.
func selectProfile(task *store.Task, tiers config.ModelTiers) Profile {
	text := strings.ToLower(task.Title + " " + task.Description)

	tier, model := "standard", tiers.Standard
	for _, kw := range lowComplexityKeywords {
		if strings.Contains(text, kw) {
			tier, model = "light", tiers.Light
			break
		}
	}
	// High-complexity pass runs last so it wins on conflict.
	for _, kw := range highComplexityKeywords {
		if strings.Contains(text, kw) {
			tier, model = "heavy", tiers.Heavy
			break
		}
	}
	return Profile{Tier: tier, Model: model}
}
