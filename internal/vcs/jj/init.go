package jj

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c5t/c5t/internal/vcs"
)

// init registers the jj VCS implementation with the registry.
// This is called automatically when the package is imported.
func init() {
	vcs.Register(vcs.TypeJJ, vcs.Backend{
		Open: func(path string) (vcs.VCS, error) {
			return New(path)
		},
		Init: func(ctx context.Context, path, branch string) (vcs.VCS, error) {
			return Init(ctx, path)
		},
	})
}

// Init initializes a new colocated jj repository in the given path.
// jj has no current branch, so the bookmark is created by the first commit.
func Init(ctx context.Context, path string) (*JJ, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", absPath, err)
	}

	if _, err := vcs.ExecContext(ctx, 0, absPath, "jj", "git", "init", "--colocate"); err != nil {
		return nil, fmt.Errorf("failed to initialize jj repository: %w", err)
	}

	return New(absPath)
}
