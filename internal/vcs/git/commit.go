package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/c5t/c5t/internal/vcs"
)

// HasChanges returns true if there are uncommitted changes
// If paths are specified, only checks those paths
func (g *Git) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	statuses, err := g.Status(ctx, paths...)
	if err != nil {
		return false, err
	}
	return len(statuses) > 0, nil
}

// Add stages files for commit, including deletions
func (g *Git) Add(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--all", "--"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Status returns the status of files in the working directory
func (g *Git) Status(ctx context.Context, paths ...string) ([]vcs.FileStatus, error) {
	args := []string{"status", "--porcelain", "--untracked-files=all"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	output, err := g.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(string(output)), nil
}

// parseStatus parses `git status --porcelain` output.
// Format: XY path, where X is the staged and Y the unstaged status.
func parseStatus(output string) []vcs.FileStatus {
	var statuses []vcs.FileStatus
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}

		path := line[3:]
		// Renames are reported as "old -> new"
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}

		statuses = append(statuses, vcs.FileStatus{
			Path:       strings.Trim(path, `"`),
			Status:     vcs.ParseStatusCode(line[1:2]),
			StagedCode: vcs.ParseStatusCode(line[0:1]),
		})
	}
	return statuses
}

// Commit records the staged changes and returns the new commit id
func (g *Git) Commit(ctx context.Context, opts vcs.CommitOptions) (string, error) {
	if opts.Message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	// Exit status 0 means the index matches HEAD.
	_, err := g.run(ctx, "diff", "--cached", "--quiet")
	switch vcs.GetExitCode(err) {
	case 0:
		return "", vcs.ErrNothingToCommit
	case 1:
	default:
		return "", fmt.Errorf("git diff failed: %w", err)
	}

	args := []string{"commit", "--quiet", "-m", opts.Message}

	if opts.Author != "" {
		args = append(args, "--author", opts.Author)
	}

	if opts.NoGPGSign {
		args = append(args, "--no-gpg-sign")
	}

	if opts.NoVerify {
		args = append(args, "--no-verify")
	}

	if _, err := g.run(ctx, args...); err != nil {
		return "", fmt.Errorf("git commit failed: %w", err)
	}

	return g.HeadCommit(ctx)
}

// HeadCommit returns the id of HEAD, or "" on an unborn branch
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	output, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		if vcs.GetExitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return vcs.TrimOutput(output), nil
}
