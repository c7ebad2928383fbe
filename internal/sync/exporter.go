package sync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"

	"github.com/c5t/c5t/internal/graph"
	"github.com/c5t/c5t/internal/jsonl"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
)

// filePerm is the mode of interchange files.
const filePerm = 0o644

// Snapshot is the canonical file set produced from one read of the store.
type Snapshot struct {
	// Files maps file name to content
	Files map[string][]byte

	// Counts holds the number of records per kind
	Counts map[types.Kind]int

	// LinkCounts holds the number of join records per relation
	LinkCounts map[types.Relation]int
}

// Paths returns the file names in the snapshot, sorted.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for name := range s.Files {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// Records returns the total number of entity records.
func (s *Snapshot) Records() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Exporter renders the entity store as interchange files.
type Exporter struct {
	store  store.Store
	logger *slog.Logger
}

// NewExporter creates an Exporter reading from st.
func NewExporter(st store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: st, logger: logger}
}

// Snapshot reads every kind and relation from the store and renders the
// canonical files in memory. Nothing is written.
//
// Records are loaded into a graph first: a cross-kind identifier collision
// or a parent cycle aborts with a StructuralViolation, and derived activity
// timestamps are computed before encoding.
func (x *Exporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	g := graph.New()
	for _, kind := range types.Kinds {
		records, err := x.store.ListAll(ctx, kind)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "export", Kind: kind, Err: err}
		}
		for _, e := range records {
			if err := g.Add(e); err != nil {
				return nil, recordError(StructuralViolation, "export", e, err)
			}
		}
	}

	for _, err := range g.Validate() {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			return nil, &Error{Code: StructuralViolation, Op: "export", Kind: cycle.Kind, ID: cycle.IDs[0], Err: err}
		}
		// The store enforces references itself; a dangling one is exported
		// as is and left for the importer to reject.
		x.logger.Warn("dangling reference in store", "error", err)
	}

	g.ApplyActivity(g.Activity())

	snap := &Snapshot{
		Files:      make(map[string][]byte, len(types.Kinds)+len(types.Relations)+1),
		Counts:     make(map[types.Kind]int, len(types.Kinds)),
		LinkCounts: make(map[types.Relation]int, len(types.Relations)),
	}

	for _, kind := range types.Kinds {
		records := g.OfKind(kind)
		data, err := x.encodeRecords(records)
		if err != nil {
			return nil, err
		}
		snap.Files[kind.FileName()] = data
		snap.Counts[kind] = len(records)
	}

	for _, rel := range types.Relations {
		links, err := x.store.ListLinks(ctx, rel)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "export", Kind: types.Kind(rel), Err: err}
		}
		slices.SortFunc(links, types.CompareLinks)
		links = slices.Compact(links)
		for _, l := range links {
			if err := g.ValidateLink(l); err != nil {
				x.logger.Warn("dangling join record in store", "error", err)
			}
		}

		data, err := jsonl.Encode(links)
		if err != nil {
			return nil, &Error{Code: EncodingFailure, Op: "export", File: rel.FileName(), Err: err}
		}
		snap.Files[rel.FileName()] = data
		snap.LinkCounts[rel] = len(links)
	}

	manifest, err := NewManifest().Encode()
	if err != nil {
		return nil, &Error{Code: EncodingFailure, Op: "export", File: ManifestFile, Err: err}
	}
	snap.Files[ManifestFile] = manifest

	return snap, nil
}

// Export renders a snapshot and writes it to dir. Either every file is
// replaced or, on failure, none is.
func (x *Exporter) Export(ctx context.Context, dir string) (*Snapshot, error) {
	snap, err := x.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := jsonl.WriteAll(dir, snap.Files, filePerm); err != nil {
		return nil, &Error{Code: IOFailure, Op: "export", File: dir, Err: err}
	}

	x.logger.Debug("exported snapshot", "dir", dir, "records", snap.Records(), "files", len(snap.Files))
	return snap, nil
}

// encodeRecords renders records one by one so a failure names the record.
// Text that is not valid UTF-8 aborts the export before anything is written.
func (x *Exporter) encodeRecords(records []types.Entity) ([]byte, error) {
	var out []byte
	for _, e := range records {
		fields, err := jsonl.CheckText(e)
		if err != nil {
			return nil, recordError(EncodingFailure, "export", e, err)
		}
		if len(fields) > 0 {
			x.logger.Debug("text not in NFC, exported unchanged", "kind", e.EntityKind(), "id", e.EntityID(), "fields", fields)
		}
		line, err := jsonl.Marshal(e)
		if err != nil {
			return nil, recordError(EncodingFailure, "export", e, err)
		}
		out = append(out, line...)
	}
	return out, nil
}
