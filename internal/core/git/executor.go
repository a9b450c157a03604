// Package git extracts reviewable file snapshots from a repository or the
// local filesystem. All git interaction goes through the command-line tool
// via executil so tests can record and stub the calls.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/colonyops/holdpoint/pkg/executil"
)

// Executor runs git commands using the git command-line tool.
type Executor struct {
	gitPath string
	exec    executil.Executor
}

// NewExecutor creates a git executor with the specified git binary path.
func NewExecutor(gitPath string, exec executil.Executor) *Executor {
	return &Executor{gitPath: gitPath, exec: exec}
}

// IsRepo reports whether dir is inside a git work tree.
func (e *Executor) IsRepo(ctx context.Context, dir string) bool {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// Diff returns the unified diff output of `git diff` with the given args.
func (e *Executor) Diff(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, append([]string{"diff"}, args...)...)
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	return string(out), nil
}

// ShowPatch returns the patch introduced by a single commit, without the
// commit message header.
func (e *Executor) ShowPatch(ctx context.Context, dir, commit string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "show", "--format=", "--patch", commit)
	if err != nil {
		return "", fmt.Errorf("git show %s: %w", commit, err)
	}
	return string(out), nil
}

// ShowFile returns the content of path at the given revision.
func (e *Executor) ShowFile(ctx context.Context, dir, rev, path string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "show", rev+":"+path)
	if err != nil {
		return "", fmt.Errorf("git show %s:%s: %w", rev, path, err)
	}
	return string(out), nil
}

// MergeBase returns the best common ancestor of two revisions.
func (e *Executor) MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("git merge-base %s %s: %w", a, b, err)
	}
	return strings.TrimSpace(string(out)), nil
}
