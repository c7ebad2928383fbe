package jj

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c5t/c5t/internal/vcs"
)

// ===================
// Remote Operations
// ===================

// remotes returns the configured remotes keyed by name.
func (j *JJ) remotes(ctx context.Context) (map[string]string, error) {
	output, err := j.execWithOutput(ctx, "git", "remote", "list")
	if err != nil {
		return nil, err
	}
	return parseRemotes(output), nil
}

// parseRemotes parses the output of `jj git remote list`.
// Format: "origin https://github.com/user/repo.git"
func parseRemotes(output string) map[string]string {
	remotes := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		remotes[fields[0]] = fields[1]
	}
	return remotes
}

// RemoteURL returns the URL of the named remote.
func (j *JJ) RemoteURL(ctx context.Context, name string) (string, error) {
	name = vcs.RemoteOrDefault(name)
	remotes, err := j.remotes(ctx)
	if err != nil {
		return "", err
	}
	url, ok := remotes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", vcs.ErrNoRemote, name)
	}
	return url, nil
}

// SetRemote adds the named remote, or repoints it if it exists.
func (j *JJ) SetRemote(ctx context.Context, name, url string) error {
	name = vcs.RemoteOrDefault(name)
	remotes, err := j.remotes(ctx)
	if err != nil {
		return err
	}

	verb := "add"
	if _, ok := remotes[name]; ok {
		verb = "set-url"
	}
	if _, err := j.Exec(ctx, "git", "remote", verb, name, url); err != nil {
		return fmt.Errorf("jj git remote %s failed: %w", verb, err)
	}
	return nil
}

// Pull fetches the remote bookmark and integrates it with the local one.
//
// The fetch honours ctx. Integration runs to completion regardless, and
// is rolled back through the operation log if it cannot finish cleanly.
func (j *JJ) Pull(ctx context.Context, opts vcs.PullOptions) error {
	remote := vcs.RemoteOrDefault(opts.Remote)
	bookmark := vcs.BranchOrDefault(opts.Ref)

	if _, err := j.RemoteURL(ctx, remote); err != nil {
		return err
	}

	if _, err := j.Exec(ctx, "git", "fetch", "--remote", remote, "-b", bookmark); err != nil {
		return fmt.Errorf("jj git fetch failed: %w", err)
	}

	mctx := context.WithoutCancel(ctx)
	tracked := bookmark + "@" + remote

	theirs, err := j.commitID(mctx, "present("+tracked+")")
	if err != nil {
		return err
	}
	if theirs == "" {
		return fmt.Errorf("%w: %s", vcs.ErrRemoteRefNotFound, tracked)
	}

	ours, err := j.commitID(mctx, "present("+bookmark+")")
	if err != nil {
		return err
	}

	op, err := j.currentOperation(mctx)
	if err != nil {
		return err
	}

	if err := j.integrate(mctx, bookmark, tracked, ours, theirs, opts.PreferRemote); err != nil {
		if rerr := j.restoreOperation(mctx, op); rerr != nil {
			slog.Warn("jj op restore failed", "repo", j.repoRoot, "operation", op, "error", rerr)
		}
		return err
	}
	return nil
}

// integrate moves the local bookmark to include theirs, fast-forwarding
// when possible and merging otherwise.
func (j *JJ) integrate(ctx context.Context, bookmark, tracked, ours, theirs string, preferRemote bool) error {
	if ours == theirs {
		return nil
	}
	if ours != "" {
		// Remote already contained in local history.
		contained, err := j.commitID(ctx, tracked+" & ::"+bookmark)
		if err != nil {
			return err
		}
		if contained != "" {
			return nil
		}
	}

	fastForward := ours == ""
	if !fastForward {
		id, err := j.commitID(ctx, bookmark+" & ::"+tracked)
		if err != nil {
			return err
		}
		fastForward = id != ""
	}

	if fastForward {
		if _, err := j.Exec(ctx, "bookmark", "set", bookmark, "-r", tracked); err != nil {
			return fmt.Errorf("failed to move bookmark %s: %w", bookmark, err)
		}
		if _, err := j.Exec(ctx, "new", bookmark); err != nil {
			return fmt.Errorf("jj new failed: %w", err)
		}
		return nil
	}

	if _, err := j.Exec(ctx, "new", bookmark, tracked); err != nil {
		return fmt.Errorf("jj new failed: %w", err)
	}

	conflicted, err := j.hasConflicts(ctx)
	if err != nil {
		return err
	}
	if conflicted {
		if !preferRemote {
			return fmt.Errorf("%w: merging %s", vcs.ErrConflicts, tracked)
		}
		if _, err := j.Exec(ctx, "resolve", "--tool", ":theirs"); err != nil {
			return errors.Join(vcs.ErrConflicts, err)
		}
	}

	if _, err := j.Exec(ctx, "commit", "-m", "sync: merge "+tracked); err != nil {
		return fmt.Errorf("jj commit failed: %w", err)
	}
	if _, err := j.Exec(ctx, "bookmark", "set", bookmark, "-r", "@-"); err != nil {
		return fmt.Errorf("failed to move bookmark %s: %w", bookmark, err)
	}
	return nil
}

// Push pushes the bookmark to the remote.
func (j *JJ) Push(ctx context.Context, opts vcs.PushOptions) error {
	remote := vcs.RemoteOrDefault(opts.Remote)
	bookmark := vcs.BranchOrDefault(opts.Ref)

	if _, err := j.RemoteURL(ctx, remote); err != nil {
		return err
	}

	args := []string{"git", "push", "--remote", remote, "-b", bookmark}
	_, err := j.Exec(ctx, args...)

	// Older jj releases want an explicit opt-in for bookmarks the remote
	// has never seen.
	var cmdErr *vcs.CommandError
	if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Output, "--allow-new") {
		_, err = j.Exec(ctx, append(args, "--allow-new")...)
	}
	if err != nil {
		return fmt.Errorf("jj git push failed: %w", err)
	}
	return nil
}
