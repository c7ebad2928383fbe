package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// conflict is one unmerged path and its porcelain status pair
type conflict struct {
	path   string
	status string
}

// unmergedCodes are the porcelain XY pairs git uses for unmerged paths
var unmergedCodes = map[string]bool{
	"DD": true, "AU": true, "UD": true, "UA": true, "DU": true, "AA": true, "UU": true,
}

// isMerging returns true if a merge is in progress
func (g *Git) isMerging() bool {
	_, err := os.Stat(filepath.Join(g.repoRoot, ".git", "MERGE_HEAD"))
	return err == nil
}

// conflictedFiles returns the unmerged paths in the working tree
func (g *Git) conflictedFiles(ctx context.Context) ([]conflict, error) {
	output, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	var conflicts []conflict
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}
		if status := line[:2]; unmergedCodes[status] {
			conflicts = append(conflicts, conflict{path: line[3:], status: status})
		}
	}
	return conflicts, nil
}

// resolveTheirs settles every conflict in favour of the incoming side and
// concludes the merge.
func (g *Git) resolveTheirs(ctx context.Context, conflicts []conflict) error {
	for _, c := range conflicts {
		switch c.status {
		case "UD", "DD":
			// Deleted on their side: follow the remote.
			if _, err := g.run(ctx, "rm", "--quiet", "--", c.path); err != nil {
				return fmt.Errorf("failed to resolve %s: %w", c.path, err)
			}
		default:
			if _, err := g.run(ctx, "checkout", "--theirs", "--", c.path); err != nil {
				return fmt.Errorf("failed to resolve %s: %w", c.path, err)
			}
			if _, err := g.run(ctx, "add", "--", c.path); err != nil {
				return fmt.Errorf("failed to resolve %s: %w", c.path, err)
			}
		}
	}

	if _, err := g.run(ctx, "commit", "--no-edit", "--quiet"); err != nil {
		return fmt.Errorf("failed to conclude merge: %w", err)
	}
	return nil
}
