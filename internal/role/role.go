// Package role normalizes free-form agent role strings into a closed set.
// Behavioral branching elsewhere in the codebase switches on the normalized
// value instead of scattering substring checks.
package role

import "strings"

// Role is a normalized agent role.
type Role string

const (
	PM              Role = "pm"
	Developer       Role = "developer"
	QA              Role = "qa"
	Coach           Role = "coach"
	PersonalManager Role = "personal_manager"
	Other           Role = "other"
)

// Parse maps a free-form role string to a Role. Matching is case-insensitive
// and tolerant of common aliases ("engineer", "tester", "product manager").
// Unrecognized input maps to Other.
func Parse(s string) Role {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return Other
	case strings.Contains(v, "personal manager"), strings.Contains(v, "personal_manager"):
		return PersonalManager
	case v == "pm", strings.Contains(v, "product manager"), strings.Contains(v, "project manager"):
		return PM
	case strings.Contains(v, "developer"), strings.Contains(v, "engineer"), strings.Contains(v, "programmer"):
		return Developer
	case v == "qa", strings.Contains(v, "quality"), strings.Contains(v, "tester"), strings.Contains(v, "testing"):
		return QA
	case strings.Contains(v, "coach"):
		return Coach
	default:
		return Other
	}
}

// IsDeveloperLike reports whether agents with this role may auto-claim
// unassigned pending tasks. QA agents write and run tests, so they qualify.
func (r Role) IsDeveloperLike() bool {
	return r == Developer || r == QA
}

// IsQA reports whether the role gets the testing-instructions prompt variant.
func (r Role) IsQA() bool {
	return r == QA
}
