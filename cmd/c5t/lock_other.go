//go:build !unix

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileLock falls back to an exclusive-create lock file. A crashed process
// leaves the file behind; remove it by hand.
type fileLock struct {
	path string
}

func acquireLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w (remove %s if it is stale)", errLocked, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	_ = f.Close()
	return &fileLock{path: path}, nil
}

func (l *fileLock) Release() error {
	return os.Remove(l.path)
}
