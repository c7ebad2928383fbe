package sync

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"

	"github.com/c5t/c5t/internal/types"
)

const (
	// ManifestFile describes the interchange files in the working area
	ManifestFile = "c5t-sync.toml"

	// FormatVersion is the interchange format written by this build.
	// Readers accept any version with the same major component.
	FormatVersion = "v1.0.0"
)

// Manifest records the interchange format version and the files it
// covers.
type Manifest struct {
	FormatVersion string   `toml:"format_version"`
	Kinds         []string `toml:"kinds"`
	Relations     []string `toml:"relations"`
}

// NewManifest describes the files written by this build.
func NewManifest() Manifest {
	m := Manifest{FormatVersion: FormatVersion}
	for _, k := range types.Kinds {
		m.Kinds = append(m.Kinds, string(k))
	}
	for _, r := range types.Relations {
		m.Relations = append(m.Relations, string(r))
	}
	return m
}

// Encode renders the manifest as TOML.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadManifest loads the manifest from dir. A missing manifest yields the
// current one with found set to false.
func ReadManifest(dir string) (m Manifest, found bool, err error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewManifest(), false, nil
		}
		return Manifest{}, false, &Error{Code: EncodingFailure, File: ManifestFile, Err: err}
	}
	return m, true, nil
}

// CheckCompatible returns an EncodingFailure if files described by m
// cannot be read by this build.
func (m Manifest) CheckCompatible() error {
	if !semver.IsValid(m.FormatVersion) {
		return &Error{
			Code: EncodingFailure,
			File: ManifestFile,
			Err:  fmt.Errorf("invalid format_version %q", m.FormatVersion),
		}
	}
	if semver.Major(m.FormatVersion) != semver.Major(FormatVersion) {
		return &Error{
			Code: EncodingFailure,
			File: ManifestFile,
			Err:  fmt.Errorf("format %s is not readable by this version (supports %s)", m.FormatVersion, semver.Major(FormatVersion)),
		}
	}
	return nil
}
