// Package git provides a Git implementation of the VCS interface.
//
// This package wraps git commands to provide the operations needed by the
// sync engine: staging and committing the interchange files, and moving
// them to and from a single remote branch.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c5t/c5t/internal/vcs"
)

// Git implements the VCS interface for git repositories.
type Git struct {
	// repoRoot is the repository root directory path
	repoRoot string
}

// New creates a new Git VCS instance for the repository rooted at path.
// Returns vcs.ErrNotInVCS if path is not itself a repository root.
func New(path string) (*Git, error) {
	res, err := vcs.Detect(path)
	if err != nil {
		return nil, err
	}
	if !res.HasGit {
		return nil, vcs.ErrNotInVCS
	}
	return &Git{repoRoot: normalizeRepoRoot(res.RepoRoot)}, nil
}

// Name returns the VCS type (git)
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// Version returns the git version string
func (g *Git) Version() (string, error) {
	output, err := vcs.ExecContext(context.Background(), 0, g.repoRoot, "git", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0"
	return strings.TrimPrefix(vcs.TrimOutput(output), "git version "), nil
}

// RepoRoot returns the repository root directory path
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// Exec executes a raw git command
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	return g.run(ctx, args...)
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	return vcs.ExecContext(ctx, 0, g.repoRoot, "git", args...)
}

// normalizeRepoRoot normalizes the repository root path
// Resolves symlinks so paths compare equal on macOS (/var -> /private/var)
func normalizeRepoRoot(path string) string {
	path = filepath.FromSlash(path)
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path
}
