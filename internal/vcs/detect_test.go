package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		dirs    []string
		want    Type
		wantErr error
	}{
		{"empty directory", nil, "", ErrNotInVCS},
		{"git", []string{".git"}, TypeGit, nil},
		{"colocated jj", []string{".git", ".jj"}, TypeJJ, nil},
		{"jj without git", []string{".jj"}, "", ErrNotInVCS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, d := range tt.dirs {
				if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
					t.Fatalf("failed to create %s: %v", d, err)
				}
			}

			res, err := Detect(dir)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Detect() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() failed: %v", err)
			}
			if res.Type != tt.want {
				t.Errorf("Detect() type = %s, want %s", res.Type, tt.want)
			}
		})
	}
}

func TestDetectDoesNotWalkUp(t *testing.T) {
	parent := t.TempDir()
	if err := os.Mkdir(filepath.Join(parent, ".git"), 0755); err != nil {
		t.Fatalf("failed to create .git: %v", err)
	}
	child := filepath.Join(parent, "sync")
	if err := os.Mkdir(child, 0755); err != nil {
		t.Fatalf("failed to create child: %v", err)
	}

	if _, err := Detect(child); !errors.Is(err, ErrNotInVCS) {
		t.Errorf("Detect(child) error = %v, want ErrNotInVCS", err)
	}
	if IsInitialized(child, TypeGit) {
		t.Error("IsInitialized(child) = true, want false")
	}
	if !IsInitialized(parent, TypeGit) {
		t.Error("IsInitialized(parent) = false, want true")
	}
}

func TestDetectIgnoresWorktreeFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: /elsewhere\n"), 0644); err != nil {
		t.Fatalf("failed to write .git file: %v", err)
	}
	if _, err := Detect(dir); !errors.Is(err, ErrNotInVCS) {
		t.Errorf("Detect() error = %v, want ErrNotInVCS", err)
	}
}
