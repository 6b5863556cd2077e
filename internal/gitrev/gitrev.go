// Package gitrev is a best-effort version-control adapter. Revision lookups
// are used only for audit diffing, so failures are swallowed rather than
// propagated to the task lifecycle.
package gitrev

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const commandTimeout = 10 * time.Second

// CurrentRevision returns the HEAD commit hash of the repository at dir, or
// "" when dir is not a repository, git is unavailable, or the lookup fails.
func CurrentRevision(ctx context.Context, dir string) string {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// EnsureRepo makes sure dir exists and contains a git repository, initializing
// one if absent. Used when preparing an agent workspace.
func EnsureRepo(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "init")
	cmd.Dir = dir
	return cmd.Run()
}
