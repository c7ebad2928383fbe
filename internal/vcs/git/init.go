package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c5t/c5t/internal/vcs"
)

// init registers the git VCS implementation with the registry.
// This is called automatically when the package is imported.
func init() {
	vcs.Register(vcs.TypeGit, vcs.Backend{
		Open: func(path string) (vcs.VCS, error) {
			return New(path)
		},
		Init: func(ctx context.Context, path, branch string) (vcs.VCS, error) {
			return Init(ctx, path, branch)
		},
	})
}

// Init creates a git repository rooted at path whose first branch is
// branch. The directory is created if needed.
func Init(ctx context.Context, path, branch string) (*Git, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", absPath, err)
	}

	if _, err := vcs.ExecContext(ctx, 0, absPath, "git", "init", "--quiet"); err != nil {
		return nil, fmt.Errorf("failed to initialize git repository: %w", err)
	}

	// Name the unborn branch explicitly so init.defaultBranch does not matter.
	ref := "refs/heads/" + vcs.BranchOrDefault(branch)
	if _, err := vcs.ExecContext(ctx, 0, absPath, "git", "symbolic-ref", "HEAD", ref); err != nil {
		return nil, fmt.Errorf("failed to set initial branch: %w", err)
	}

	return New(absPath)
}
