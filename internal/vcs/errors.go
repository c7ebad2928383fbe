package vcs

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // Handle case where the directory is not a repository root
//	}
var (
	// ErrNotInVCS is returned when the directory is not a repository root.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the required VCS binary
	// (git or jj) is not installed or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrUnknownType is returned when no backend is registered for a type.
	ErrUnknownType = errors.New("unknown VCS type")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrRemoteRefNotFound is returned when the remote exists but does not
	// have the requested branch yet.
	ErrRemoteRefNotFound = errors.New("remote branch not found")

	// ErrNothingToCommit is returned when a commit has no changes to record.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrDirtyWorkspace is returned when an operation requires
	// a clean workspace but there are uncommitted changes.
	ErrDirtyWorkspace = errors.New("workspace has uncommitted changes")

	// ErrPushRejected is returned when a push is rejected by the remote,
	// typically due to non-fast-forward updates.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrNetwork is returned when the remote could not be reached or
	// refused our credentials.
	ErrNetwork = errors.New("remote unreachable")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// outputPatterns maps fragments of VCS command output to sentinel errors.
// Order matters: the first match wins.
var outputPatterns = []struct {
	fragment string
	err      error
}{
	{"couldn't find remote ref", ErrRemoteRefNotFound},
	{"No such bookmark", ErrRemoteRefNotFound},
	{"non-fast-forward", ErrPushRejected},
	{"[rejected]", ErrPushRejected},
	{"failed to push some refs", ErrPushRejected},
	{"unexpectedly moved on the remote", ErrPushRejected},
	{"Failed to push some bookmarks", ErrPushRejected},
	{"would be overwritten", ErrDirtyWorkspace},
	{"CONFLICT", ErrConflicts},
	{"Could not resolve host", ErrNetwork},
	{"Connection refused", ErrNetwork},
	{"Connection timed out", ErrNetwork},
	{"Network is unreachable", ErrNetwork},
	{"Authentication failed", ErrNetwork},
	{"Permission denied", ErrNetwork},
	{"could not read Username", ErrNetwork},
	{"unable to access", ErrNetwork},
	{"does not appear to be a git repository", ErrNetwork},
	{"Could not read from remote repository", ErrNetwork},
}

// Classify inspects command output and returns the matching sentinel, or
// nil if the output is not recognized.
func Classify(output string) error {
	for _, p := range outputPatterns {
		if strings.Contains(output, p.fragment) {
			return p.err
		}
	}
	return nil
}

// CommandError describes a failed VCS command.
type CommandError struct {
	// Name is the binary that was run (git or jj)
	Name string

	// Args are the command arguments
	Args []string

	// Output is the combined stdout and stderr
	Output string

	// Kind is the classified sentinel, if any
	Kind error

	// Err is the underlying exec error
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

// Unwrap exposes both the classified sentinel and the exec error.
func (e *CommandError) Unwrap() []error {
	if e.Kind != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Err}
}

// IsRetryable returns true if the error is likely to succeed on retry.
// This is useful for transient network errors or push races.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Timeouts are often transient
	if errors.Is(err, ErrTimeout) {
		return true
	}

	// Push rejections succeed after a pull
	if errors.Is(err, ErrPushRejected) {
		return true
	}

	return errors.Is(err, ErrNetwork)
}

// IsUserActionRequired returns true if the error requires user intervention
// to resolve.
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}

	// Conflicts need manual resolution
	if errors.Is(err, ErrConflicts) {
		return true
	}

	// Local edits block the merge
	return errors.Is(err, ErrDirtyWorkspace)
}

// IsFatal returns true if the error indicates a non-recoverable state
// that requires manual intervention or re-initialization.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Not in VCS means we can't do anything
	if errors.Is(err, ErrNotInVCS) {
		return true
	}

	// Binary not available means we can't execute commands
	return errors.Is(err, ErrVCSNotAvailable)
}
