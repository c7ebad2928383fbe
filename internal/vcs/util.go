package vcs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ===================
// Command Execution Utilities
// ===================

// commandEnv keeps VCS commands non-interactive and their messages in a
// stable language so output can be classified.
var commandEnv = []string{
	"GIT_TERMINAL_PROMPT=0",
	"GIT_MERGE_AUTOEDIT=no",
	"LC_ALL=C",
}

// ExecContext executes a VCS command with timeout and context support.
// This is a common utility for git and jj implementations.
//
// On success the command's stdout is returned. On failure the error is a
// *CommandError carrying the combined output and, when recognized, one of
// the package sentinels (see Classify).
//
// Example:
//
//	output, err := ExecContext(ctx, 30*time.Second, repoRoot, "git", "status", "--porcelain")
func ExecContext(ctx context.Context, timeout time.Duration, workDir string, name string, args ...string) ([]byte, error) {
	// Create context with timeout if specified
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), commandEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return nil, ErrVCSNotAvailable
	}

	output := strings.TrimSpace(stdout.String() + "\n" + stderr.String())
	cmdErr := &CommandError{Name: name, Args: args, Output: output, Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cmdErr.Kind = ErrTimeout
	} else {
		cmdErr.Kind = Classify(output)
	}
	return stdout.Bytes(), cmdErr
}

// ===================
// Output Parsing Utilities
// ===================

// ParseLines splits command output into non-empty lines.
// This is a common pattern for parsing VCS command output.
func ParseLines(output []byte) []string {
	if len(output) == 0 {
		return nil
	}

	lines := strings.Split(string(output), "\n")
	result := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// TrimOutput trims whitespace and trailing newlines from command output.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// ===================
// Error Utilities
// ===================

// GetExitCode returns the exit code from an error, or -1 if not an exit error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
