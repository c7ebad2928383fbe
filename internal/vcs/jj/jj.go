// Package jj implements the VCS interface for Jujutsu (jj).
//
// Jujutsu is a Git-compatible version control system with automatic change
// tracking, an operation log with undo, and first-class conflicts. Only
// colocated repositories (.jj next to .git) are supported, so the sync
// directory stays readable by plain git tooling.
package jj

import (
	"context"
	"fmt"
	"strings"

	"github.com/c5t/c5t/internal/vcs"
)

// rootCommitID is the id jj gives the virtual root commit
const rootCommitID = "0000000000000000000000000000000000000000"

// JJ implements the VCS interface for Jujutsu.
//
// This struct wraps the jj command-line tool and provides
// a unified interface for version control operations.
type JJ struct {
	// repoRoot is the repository root directory
	repoRoot string
}

// New creates a new JJ instance for the given repository root.
//
// The repository must already be a colocated jj repository (have both a
// .jj and a .git directory). Use Init() to create one.
func New(repoRoot string) (*JJ, error) {
	res, err := vcs.Detect(repoRoot)
	if err != nil {
		return nil, err
	}
	if !res.HasJJ {
		return nil, vcs.ErrNotInVCS
	}
	return &JJ{repoRoot: res.RepoRoot}, nil
}

// ===================
// Identity
// ===================

// Name returns the VCS type.
func (j *JJ) Name() vcs.Type {
	return vcs.TypeJJ
}

// Version returns the jj binary version string.
func (j *JJ) Version() (string, error) {
	output, err := vcs.ExecContext(context.Background(), 0, j.repoRoot, "jj", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get jj version: %w", err)
	}

	version := vcs.TrimOutput(output)
	// Parse "jj 0.32.0" to "0.32.0"
	parts := strings.Fields(version)
	if len(parts) >= 2 {
		return parts[1], nil
	}

	return version, nil
}

// RepoRoot returns the repository root directory path.
func (j *JJ) RepoRoot() string {
	return j.repoRoot
}

// ===================
// Raw Command Execution
// ===================

// Exec executes a raw jj command.
// This is the internal command runner used by all other methods.
func (j *JJ) Exec(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--no-pager", "--color=never"}, args...)
	return vcs.ExecContext(ctx, 0, j.repoRoot, "jj", full...)
}

// execWithOutput is a helper that runs a command and returns stdout as string.
func (j *JJ) execWithOutput(ctx context.Context, args ...string) (string, error) {
	output, err := j.Exec(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// commitID resolves a revset to a single commit id. Returns "" if the
// revset is empty.
func (j *JJ) commitID(ctx context.Context, revset string) (string, error) {
	out, err := j.execWithOutput(ctx, "log", "-r", revset, "--no-graph", "-T", `commit_id ++ "\n"`)
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(first), nil
}

// ===================
// Undo/Recovery
// ===================

// currentOperation returns the id of the latest entry in the operation log.
func (j *JJ) currentOperation(ctx context.Context) (string, error) {
	return j.execWithOutput(ctx, "op", "log", "-n", "1", "--no-graph", "-T", "id")
}

// restoreOperation rewinds the repository to the given operation.
func (j *JJ) restoreOperation(ctx context.Context, op string) error {
	_, err := j.Exec(ctx, "op", "restore", op)
	return err
}
