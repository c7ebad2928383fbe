package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
)

// DetectionResult contains information about the detected VCS
type DetectionResult struct {
	// Type is the detected VCS type
	Type Type

	// RepoRoot is the repository root directory path
	RepoRoot string

	// HasGit indicates a .git directory was found
	HasGit bool

	// HasJJ indicates a .jj directory was found
	HasJJ bool
}

// Detect identifies the VCS type of the repository rooted at dir.
//
// Only dir itself is inspected. Parent directories are never searched, so a
// sync directory that happens to live inside some other checkout is
// reported as not initialized instead of silently committing into the
// enclosing repository.
//
// A directory with both .jj and .git is reported as TypeJJ (colocated).
//
// Returns ErrNotInVCS if dir is not a repository root.
func Detect(dir string) (*DetectionResult, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	result := &DetectionResult{RepoRoot: absPath}

	if info, err := os.Stat(filepath.Join(absPath, ".jj")); err == nil && info.IsDir() {
		result.HasJJ = true
	}
	// A .git file marks a worktree, which we do not sync into.
	if info, err := os.Stat(filepath.Join(absPath, ".git")); err == nil && info.IsDir() {
		result.HasGit = true
	}

	switch {
	case result.HasJJ && result.HasGit:
		result.Type = TypeJJ
	case result.HasGit:
		result.Type = TypeGit
	default:
		return nil, ErrNotInVCS
	}
	return result, nil
}

// IsInitialized returns true if dir is the root of a repository of type t.
func IsInitialized(dir string, t Type) bool {
	res, err := Detect(dir)
	if err != nil {
		return false
	}
	if t == TypeJJ {
		return res.HasJJ
	}
	return res.HasGit
}

// IsJJAvailable checks if the jj command is available on the system
func IsJJAvailable() bool {
	_, err := exec.LookPath("jj")
	return err == nil
}

// IsGitAvailable checks if the git command is available on the system
func IsGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// CheckAvailable returns ErrVCSNotAvailable if the binaries backend t
// needs are missing. Colocated jj needs git as well.
func CheckAvailable(t Type) error {
	if !IsGitAvailable() {
		return ErrVCSNotAvailable
	}
	if t == TypeJJ && !IsJJAvailable() {
		return ErrVCSNotAvailable
	}
	return nil
}
