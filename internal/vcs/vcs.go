// Package vcs provides a unified interface for the version control
// operations the sync engine needs.
//
// The interface abstracts the differences between git and jj (Jujutsu) so
// the sync coordinator can drive either backend. Backends register
// themselves with the registry on import.
//
// # Usage
//
//	import _ "github.com/c5t/c5t/internal/vcs/git" // Auto-registers via init()
//
//	v, err := vcs.Open(vcs.TypeGit, dir)
//	if err != nil {
//	    return err
//	}
//	changed, err := v.HasChanges(ctx, "task.jsonl")
//
// # Implementations
//
//   - internal/vcs/git: plain git repositories
//   - internal/vcs/jj: colocated jj repositories
//
// The working area is always the repository root. A directory nested inside
// another repository is not treated as initialized.
package vcs

import "context"

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git repository
	TypeGit Type = "git"

	// TypeJJ indicates a colocated jj repository (.jj and .git together)
	TypeJJ Type = "jj"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// ParseType converts a configuration value into a Type.
func ParseType(s string) (Type, bool) {
	switch s {
	case "", "git":
		return TypeGit, true
	case "jj", "jujutsu":
		return TypeJJ, true
	}
	return "", false
}

// VCS defines the version control operations used by the sync engine.
// Implementations exist for git (internal/vcs/git) and jj (internal/vcs/jj).
//
// Methods that talk to a remote honour ctx. Methods that mutate local
// history (Commit, and the merge half of Pull) must not be left half done,
// so implementations run their local steps to completion once started.
type VCS interface {
	// Name returns the VCS type
	Name() Type

	// Version returns the VCS binary version string
	Version() (string, error)

	// RepoRoot returns the repository root directory path
	RepoRoot() string

	// HasChanges returns true if there are uncommitted changes.
	// If paths are specified, only checks those paths.
	HasChanges(ctx context.Context, paths ...string) (bool, error)

	// Status returns the status of files in the working directory.
	// If paths are specified, only checks those paths.
	Status(ctx context.Context, paths ...string) ([]FileStatus, error)

	// Add stages files for commit.
	// In jj, this is a no-op as files are auto-tracked.
	Add(ctx context.Context, paths []string) error

	// Commit records the staged changes and returns the new commit id.
	// Returns ErrNothingToCommit if there is nothing to record.
	Commit(ctx context.Context, opts CommitOptions) (string, error)

	// HeadCommit returns the id of the current commit, or "" on an unborn
	// branch.
	HeadCommit(ctx context.Context) (string, error)

	// RemoteURL returns the URL of the named remote, or ErrNoRemote.
	RemoteURL(ctx context.Context, name string) (string, error)

	// SetRemote adds the named remote, or repoints it if it exists.
	SetRemote(ctx context.Context, name, url string) error

	// Pull integrates the remote branch into the local one.
	// Returns ErrRemoteRefNotFound when the remote has no such branch yet.
	Pull(ctx context.Context, opts PullOptions) error

	// Push pushes the local branch to the remote.
	Push(ctx context.Context, opts PushOptions) error

	// Exec executes a raw VCS command (escape hatch).
	// Use sparingly; prefer interface methods.
	Exec(ctx context.Context, args ...string) ([]byte, error)
}

// FileStatus represents the status of a file in the working directory
type FileStatus struct {
	// Path is the file path relative to repository root
	Path string

	// Status is the working directory status
	Status StatusCode

	// StagedCode is the staging area status (git only)
	// In jj, this is always StatusUnmodified as there's no staging area.
	StagedCode StatusCode
}

// String renders the status the way `git status --porcelain` does.
func (s FileStatus) String() string {
	return string(s.StagedCode) + string(s.Status) + " " + s.Path
}

// StatusCode represents file status codes
type StatusCode string

const (
	StatusUnmodified StatusCode = " " // No changes
	StatusModified   StatusCode = "M" // Modified
	StatusAdded      StatusCode = "A" // Added/new file
	StatusDeleted    StatusCode = "D" // Deleted
	StatusRenamed    StatusCode = "R" // Renamed
	StatusCopied     StatusCode = "C" // Copied
	StatusUntracked  StatusCode = "?" // Untracked
	StatusIgnored    StatusCode = "!" // Ignored
	StatusConflict   StatusCode = "U" // Unmerged/conflict
)

// ParseStatusCode converts a single porcelain status letter to a StatusCode.
func ParseStatusCode(code string) StatusCode {
	switch code {
	case "M":
		return StatusModified
	case "A":
		return StatusAdded
	case "D":
		return StatusDeleted
	case "R":
		return StatusRenamed
	case "C":
		return StatusCopied
	case "?":
		return StatusUntracked
	case "!":
		return StatusIgnored
	case "U":
		return StatusConflict
	default:
		return StatusUnmodified
	}
}

// CommitOptions configures a commit operation
type CommitOptions struct {
	// Message is the commit message (required)
	Message string

	// Branch is the bookmark to advance (jj only). Empty uses DefaultBranch.
	// Git always commits on the checked-out branch.
	Branch string

	// Author overrides the commit author (git only, format: "Name <email>").
	// jj takes identity from its own config.
	Author string

	// NoGPGSign disables GPG signing (git only)
	NoGPGSign bool

	// NoVerify skips pre-commit hooks
	NoVerify bool
}

// PullOptions configures a pull operation
type PullOptions struct {
	// Remote is the remote name. Empty uses DefaultRemote.
	Remote string

	// Ref is the branch to pull. Empty uses DefaultBranch.
	Ref string

	// PreferRemote resolves content conflicts in favour of the remote side.
	// Record-level reconciliation happens later, on import.
	PreferRemote bool
}

// PushOptions configures a push operation
type PushOptions struct {
	// Remote is the remote name. Empty uses DefaultRemote.
	Remote string

	// Ref is the branch to push. Empty uses DefaultBranch.
	Ref string

	// SetUpstream configures the upstream tracking reference
	SetUpstream bool
}

const (
	// DefaultBranch is the branch sync commits are recorded on
	DefaultBranch = "main"

	// DefaultRemote is the remote name used when none is configured
	DefaultRemote = "origin"
)

// RemoteOrDefault returns name, or DefaultRemote if name is empty.
func RemoteOrDefault(name string) string {
	if name == "" {
		return DefaultRemote
	}
	return name
}

// BranchOrDefault returns ref, or DefaultBranch if ref is empty.
func BranchOrDefault(ref string) string {
	if ref == "" {
		return DefaultBranch
	}
	return ref
}
