package sync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitDestination writes the ledger export to a file in a git repo and pushes.
// The repo must be an existing local clone with push access; commits carry a
// timestamped snapshot message.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string // branch to commit and push to
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{
		repo:   repo,
		file:   file,
		branch: branch,
	}
}

// Name identifies the destination in logs.
func (d *GitDestination) Name() string {
	return fmt.Sprintf("git:%s@%s", d.repo, d.branch)
}

// Write writes data to the configured file, commits, and pushes. When the
// export matches what the repo already holds, nothing is committed.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}

	// Pull latest to minimize conflicts. Errors are ignored since the
	// remote might not have the branch yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	filePath := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	if !d.stagedChanges(ctx) {
		return nil
	}

	msg := "ledger snapshot " + time.Now().UTC().Format(time.RFC3339)
	if err := d.git(ctx, "commit", "-m", msg); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

// stagedChanges reports whether the index differs from HEAD.
func (d *GitDestination) stagedChanges(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = d.repo
	return cmd.Run() != nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
