package sync

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c5t/c5t/internal/jsonl"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
	"github.com/c5t/c5t/internal/vcs"
)

// Count compares the store with the interchange file for one kind or
// relation.
type Count struct {
	Store     int `json:"store" yaml:"store"`
	File      int `json:"file" yaml:"file"`
	Malformed int `json:"malformed,omitempty" yaml:"malformed,omitempty"`
}

// Drift returns true if the store and the file disagree.
func (c Count) Drift() bool {
	return c.Store != c.File || c.Malformed > 0
}

// Status describes the working area. It is a sanity signal only and plays
// no part in reconciliation.
type Status struct {
	Dir       string   `json:"dir" yaml:"dir"`
	VCS       vcs.Type `json:"vcs" yaml:"vcs"`

	// ToolVersion is the version reported by the git or jj binary
	ToolVersion string `json:"tool_version,omitempty" yaml:"tool_version,omitempty"`

	Remote    string   `json:"remote" yaml:"remote"`
	RemoteURL string   `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`
	Head      string   `json:"head,omitempty" yaml:"head,omitempty"`

	// Clean is true when no file differs from the last commit
	Clean   bool     `json:"clean" yaml:"clean"`
	Changes []string `json:"changes,omitempty" yaml:"changes,omitempty"`

	// FormatVersion is empty until the first export writes a manifest
	FormatVersion string `json:"format_version,omitempty" yaml:"format_version,omitempty"`

	Kinds map[types.Kind]Count     `json:"kinds" yaml:"kinds"`
	Links map[types.Relation]Count `json:"links" yaml:"links"`
	Drift bool                     `json:"drift" yaml:"drift"`

	// Stray lists *.jsonl files that no kind or relation owns
	Stray []string `json:"stray,omitempty" yaml:"stray,omitempty"`
}

// Status reports cleanliness, the bound remote and per-kind counts of the
// store against the files.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	repo, err := c.open("status")
	if err != nil {
		return nil, err
	}

	st := &Status{
		Dir:    c.opts.Dir,
		VCS:    c.opts.VCS,
		Remote: c.opts.Remote,
		Kinds:  make(map[types.Kind]Count, len(types.Kinds)),
		Links:  make(map[types.Relation]Count, len(types.Relations)),
	}

	if v, err := repo.Version(); err == nil {
		st.ToolVersion = v
	}
	if url, err := repo.RemoteURL(ctx, c.opts.Remote); err == nil {
		st.RemoteURL = url
	}
	if st.Head, err = repo.HeadCommit(ctx); err != nil {
		return nil, vcsError("status", err)
	}

	changes, err := repo.Status(ctx)
	if err != nil {
		return nil, vcsError("status", err)
	}
	st.Clean = len(changes) == 0
	for _, fs := range changes {
		st.Changes = append(st.Changes, fs.String())
	}

	if m, found, err := ReadManifest(c.opts.Dir); err == nil && found {
		st.FormatVersion = m.FormatVersion
	}

	for _, kind := range types.Kinds {
		n, err := store.Count(ctx, c.store, kind)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "status", Kind: kind, Err: err}
		}
		cnt, err := c.countFile(kind.FileName(), func(data []byte) error {
			_, err := jsonl.DecodeEntity(kind, data)
			return err
		})
		if err != nil {
			return nil, err
		}
		cnt.Store = n
		st.Kinds[kind] = cnt
		st.Drift = st.Drift || cnt.Drift()
	}

	for _, rel := range types.Relations {
		links, err := c.store.ListLinks(ctx, rel)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "status", File: rel.FileName(), Err: err}
		}
		cnt, err := c.countFile(rel.FileName(), func(data []byte) error {
			_, err := types.DecodeLink(rel, data)
			return err
		})
		if err != nil {
			return nil, err
		}
		cnt.Store = len(links)
		st.Links[rel] = cnt
		st.Drift = st.Drift || cnt.Drift()
	}

	if st.Stray, err = strayFiles(c.opts.Dir); err != nil {
		return nil, &Error{Code: IOFailure, Op: "status", File: c.opts.Dir, Err: err}
	}

	return st, nil
}

// countFile counts the valid and malformed lines of one file.
func (c *Coordinator) countFile(name string, decode func([]byte) error) (Count, error) {
	lines, err := jsonl.ReadFile(filepath.Join(c.opts.Dir, name))
	if err != nil {
		return Count{}, &Error{Code: IOFailure, Op: "status", File: name, Err: err}
	}
	var cnt Count
	for _, line := range lines {
		if decode(line.Data) != nil {
			cnt.Malformed++
			continue
		}
		cnt.File++
	}
	return cnt, nil
}

// strayFiles lists *.jsonl files under dir that are not interchange files.
// Repository metadata is ignored.
func strayFiles(dir string) ([]string, error) {
	known := make(map[string]bool, len(types.Kinds)+len(types.Relations))
	for _, k := range types.Kinds {
		known[k.FileName()] = true
	}
	for _, r := range types.Relations {
		known[r.FileName()] = true
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.jsonl")
	if err != nil {
		return nil, err
	}

	var stray []string
	for _, m := range matches {
		if known[m] || strings.HasPrefix(m, ".git/") || strings.HasPrefix(m, ".jj/") {
			continue
		}
		stray = append(stray, m)
	}
	sort.Strings(stray)
	return stray, nil
}
