package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempFilePrefix is the prefix of staging files created next to their
// destination.
const TempFilePrefix = ".c5t-tmp-"

// Line is one non-blank line of an interchange file.
type Line struct {
	// Number is the 1-based line number in the file
	Number int

	// Data is the line content without the trailing newline
	Data []byte
}

// ReadFile returns the non-blank lines of path. A missing file yields no
// lines and no error.
func ReadFile(path string) ([]Line, error) {
	// #nosec G304 - path is built from the working area and a fixed file name
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ReadLines(f)
}

// ReadLines splits r into non-blank lines. Lines may be arbitrarily long.
func ReadLines(r io.Reader) ([]Line, error) {
	br := bufio.NewReader(r)
	var lines []Line
	for n := 1; ; n++ {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			data := bytes.TrimRight(raw, "\r\n")
			if len(bytes.TrimSpace(data)) > 0 {
				lines = append(lines, Line{Number: n, Data: data})
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, fmt.Errorf("failed to read line %d: %w", n, err)
		}
	}
}

// WriteAll writes a set of files into dir. Every file is staged first; if
// any staging step fails nothing is renamed and the destinations keep their
// previous content.
func WriteAll(dir string, files map[string][]byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	staged := make(map[string]string, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for name, data := range files {
		tmp, err := stage(filepath.Join(dir, name), data, perm)
		if err != nil {
			cleanup()
			return err
		}
		staged[name] = tmp
	}

	for name, tmp := range staged {
		if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
			cleanup()
			return fmt.Errorf("failed to rename temp file to %s: %w", name, err)
		}
		delete(staged, name)
	}

	return nil
}

// stage writes data to a synced temp file next to filename and returns its
// path.
func stage(filename string, data []byte, perm os.FileMode) (string, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), TempFilePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(name, perm); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to chmod temp file: %w", err)
	}

	return name, nil
}
