package main

import (
	"errors"
	"path/filepath"
)

const lockName = "sync.lock"

var errLocked = errors.New("another c5t sync is running")

func lockPath(dataDir string) string {
	return filepath.Join(dataDir, lockName)
}
