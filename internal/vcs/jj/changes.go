package jj

import (
	"context"
	"fmt"
	"strings"

	"github.com/c5t/c5t/internal/vcs"
)

// ===================
// File Operations
// ===================

// Add is a no-op in jj (files are auto-tracked).
// This method exists for VCS interface compatibility.
func (j *JJ) Add(ctx context.Context, paths []string) error {
	return nil
}

// Status returns the changes recorded in the working-copy commit.
func (j *JJ) Status(ctx context.Context, paths ...string) ([]vcs.FileStatus, error) {
	args := []string{"diff", "--summary", "-r", "@"}
	args = append(args, paths...)

	output, err := j.execWithOutput(ctx, args...)
	if err != nil {
		return nil, err
	}

	return parseStatus(output), nil
}

// parseStatus parses the output of `jj diff --summary`.
// Format:
//
//	M file1.go
//	A file2.go
//	D file3.go
func parseStatus(output string) []vcs.FileStatus {
	var statuses []vcs.FileStatus

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		statuses = append(statuses, vcs.FileStatus{
			Path:       strings.Join(fields[1:], " "),
			Status:     vcs.ParseStatusCode(fields[0]),
			StagedCode: vcs.StatusUnmodified, // jj has no staging area
		})
	}

	return statuses
}

// HasChanges returns true if the working-copy commit has changes.
func (j *JJ) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	statuses, err := j.Status(ctx, paths...)
	if err != nil {
		return false, err
	}
	return len(statuses) > 0, nil
}

// ===================
// Commit Operations
// ===================

// Commit turns the working-copy change into a commit, starts a new empty
// change on top, and moves the bookmark to the new commit.
func (j *JJ) Commit(ctx context.Context, opts vcs.CommitOptions) (string, error) {
	if opts.Message == "" {
		return "", fmt.Errorf("commit message is required")
	}

	changed, err := j.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !changed {
		return "", vcs.ErrNothingToCommit
	}

	if _, err := j.Exec(ctx, "commit", "-m", opts.Message); err != nil {
		return "", fmt.Errorf("jj commit failed: %w", err)
	}

	bookmark := vcs.BranchOrDefault(opts.Branch)
	if _, err := j.Exec(ctx, "bookmark", "set", bookmark, "-r", "@-"); err != nil {
		return "", fmt.Errorf("failed to move bookmark %s: %w", bookmark, err)
	}

	return j.HeadCommit(ctx)
}

// HeadCommit returns the id of the parent of the working-copy change, or
// "" if nothing has been committed yet.
func (j *JJ) HeadCommit(ctx context.Context) (string, error) {
	id, err := j.commitID(ctx, "@-")
	if err != nil {
		return "", err
	}
	if id == rootCommitID {
		return "", nil
	}
	return id, nil
}

// hasConflicts returns true if the working-copy commit contains conflicts.
func (j *JJ) hasConflicts(ctx context.Context) (bool, error) {
	out, err := j.execWithOutput(ctx, "log", "-r", "@", "--no-graph", "-T", "conflict")
	if err != nil {
		return false, err
	}
	return out == "true", nil
}
