package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/c5t/c5t/internal/vcs"
)

// remotes returns the names of the configured remotes
func (g *Git) remotes(ctx context.Context) ([]string, error) {
	output, err := g.run(ctx, "remote")
	if err != nil {
		return nil, fmt.Errorf("git remote failed: %w", err)
	}
	return vcs.ParseLines(output), nil
}

// RemoteURL returns the URL of the named remote
func (g *Git) RemoteURL(ctx context.Context, name string) (string, error) {
	name = vcs.RemoteOrDefault(name)
	names, err := g.remotes(ctx)
	if err != nil {
		return "", err
	}
	if !slices.Contains(names, name) {
		return "", fmt.Errorf("%w: %s", vcs.ErrNoRemote, name)
	}

	output, err := g.run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", fmt.Errorf("git remote get-url failed: %w", err)
	}
	return vcs.TrimOutput(output), nil
}

// SetRemote adds the named remote, or repoints it if it exists
func (g *Git) SetRemote(ctx context.Context, name, url string) error {
	name = vcs.RemoteOrDefault(name)
	names, err := g.remotes(ctx)
	if err != nil {
		return err
	}

	verb := "add"
	if slices.Contains(names, name) {
		verb = "set-url"
	}
	if _, err := g.run(ctx, "remote", verb, name, url); err != nil {
		return fmt.Errorf("git remote %s failed: %w", verb, err)
	}
	return nil
}

// Pull fetches the remote branch and merges it into the current branch.
//
// The fetch honours ctx. The merge does not: once the fetched history is
// local, the merge (and any conflict resolution) runs to completion so the
// working tree is never left mid-merge by a cancelled caller.
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) error {
	remote := vcs.RemoteOrDefault(opts.Remote)
	ref := vcs.BranchOrDefault(opts.Ref)

	if _, err := g.RemoteURL(ctx, remote); err != nil {
		return err
	}

	if _, err := g.run(ctx, "fetch", "--quiet", remote, ref); err != nil {
		return fmt.Errorf("git fetch failed: %w", err)
	}

	mctx := context.WithoutCancel(ctx)

	args := []string{"merge", "--no-edit", "--allow-unrelated-histories"}
	if opts.PreferRemote {
		args = append(args, "-X", "theirs")
	}
	args = append(args, "FETCH_HEAD")

	_, mergeErr := g.run(mctx, args...)
	if mergeErr == nil {
		return nil
	}

	conflicts, err := g.conflictedFiles(mctx)
	if err != nil || len(conflicts) == 0 {
		if g.isMerging() {
			g.abortMerge(mctx)
		}
		return fmt.Errorf("git merge failed: %w", mergeErr)
	}

	if !opts.PreferRemote {
		g.abortMerge(mctx)
		return fmt.Errorf("%w: %d file(s) conflict with %s/%s", vcs.ErrConflicts, len(conflicts), remote, ref)
	}

	// -X theirs leaves modify/delete and add/add-of-binary conflicts behind.
	if err := g.resolveTheirs(mctx, conflicts); err != nil {
		g.abortMerge(mctx)
		return errors.Join(vcs.ErrConflicts, err)
	}
	return nil
}

// Push pushes the local branch to the remote
func (g *Git) Push(ctx context.Context, opts vcs.PushOptions) error {
	remote := vcs.RemoteOrDefault(opts.Remote)
	ref := vcs.BranchOrDefault(opts.Ref)

	if _, err := g.RemoteURL(ctx, remote); err != nil {
		return err
	}

	args := []string{"push", "--quiet"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, ref)

	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// abortMerge restores the pre-merge state. Failures are logged since the
// caller is already returning the merge error.
func (g *Git) abortMerge(ctx context.Context) {
	if _, err := g.run(ctx, "merge", "--abort"); err != nil {
		slog.Warn("git merge --abort failed", "repo", g.repoRoot, "error", err)
	}
}
