// Package gitops wraps the local git working tree: change detection for
// the loop's fix-or-skip branch, and the stage/commit/push publish step.
package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ChangeKind categorizes a working-tree modification.
type ChangeKind int

const (
	// ChangeModified covers edits and renames.
	ChangeModified ChangeKind = iota
	// ChangeAdded covers new and untracked files.
	ChangeAdded
	// ChangeDeleted covers removed files.
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	default:
		return "modified"
	}
}

// PathChange is one changed path in the working tree.
type PathChange struct {
	Kind ChangeKind
	Path string
}

// Tree operates on one local clone. A single loop instance owns a given
// clone; callers must not run two orchestrations against it concurrently.
type Tree struct {
	dir string
}

// NewTree returns a Tree rooted at dir (empty means the process cwd).
func NewTree(dir string) *Tree {
	return &Tree{dir: dir}
}

// Status returns the working-tree changes from git status --porcelain.
// A failed status call is logged and reported as "no changes"; the loop
// proceeds down its no-changes branch rather than aborting.
func (t *Tree) Status(ctx context.Context) []PathChange {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = t.dir
	out, err := cmd.Output()
	if err != nil {
		slog.Error("git status failed, treating as no changes", "dir", t.dir, "error", err)
		return nil
	}
	return parsePorcelain(string(out))
}

// DeletedPaths filters a change set down to deleted paths.
func DeletedPaths(changes []PathChange) map[string]bool {
	deleted := make(map[string]bool)
	for _, c := range changes {
		if c.Kind == ChangeDeleted {
			deleted[c.Path] = true
		}
	}
	return deleted
}

// Publish stages all local modifications, commits with the given message,
// and pushes the branch. Any sub-step failure fails the whole operation;
// there is no partial publish. Returns the short commit hash.
func (t *Tree) Publish(ctx context.Context, branch, message string) (string, error) {
	addCmd := exec.CommandContext(ctx, "git", "add", "-A")
	addCmd.Dir = t.dir
	if out, err := addCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git add: %s: %w", string(out), err)
	}

	commitCmd := exec.CommandContext(ctx, "git", "commit", "-m", message)
	commitCmd.Dir = t.dir
	if out, err := commitCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", string(out), err)
	}

	hashCmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	hashCmd.Dir = t.dir
	hashOut, err := hashCmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	hash := strings.TrimSpace(string(hashOut))

	// Push with explicit refspec so it works regardless of HEAD state
	// (on-branch or detached). Strip refs/heads/ for the local side but
	// keep it for the remote destination.
	shortBranch := strings.TrimPrefix(branch, "refs/heads/")
	refspec := fmt.Sprintf("HEAD:refs/heads/%s", shortBranch)
	pushCmd := exec.CommandContext(ctx, "git", "push", "origin", refspec)
	pushCmd.Dir = t.dir
	if out, err := pushCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git push: %s: %w", string(out), err)
	}

	return ShortRef(hash), nil
}

// ShortRef abbreviates a commit hash to the 8-char form used in replies
// and commit messages.
func ShortRef(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// parsePorcelain parses git status --porcelain output. Each line is
// "XY path" where X is the index state and Y the worktree state; renames
// are "XY old -> new" and map to a modification of the new path.
func parsePorcelain(out string) []PathChange {
	var changes []PathChange
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		path = strings.Trim(path, `"`)

		// X is the index state, Y the worktree state. A deletion on either
		// side wins, then additions (untracked and intent-to-add included).
		index, worktree := code[0], code[1]
		var kind ChangeKind
		switch {
		case index == 'D' || worktree == 'D':
			kind = ChangeDeleted
		case index == 'A' || index == '?' || worktree == 'A':
			kind = ChangeAdded
		default:
			kind = ChangeModified
		}
		changes = append(changes, PathChange{Kind: kind, Path: path})
	}
	return changes
}
