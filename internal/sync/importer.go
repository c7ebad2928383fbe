package sync

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/c5t/c5t/internal/graph"
	"github.com/c5t/c5t/internal/jsonl"
	"github.com/c5t/c5t/internal/reconcile"
	"github.com/c5t/c5t/internal/store"
	"github.com/c5t/c5t/internal/types"
)

// KindSummary counts what happened to the records of one kind. Every line
// read ends up in exactly one of Inserted, Replaced, Skipped, Malformed,
// Orphaned or Violations. Ambiguities overlaps with Skipped.
type KindSummary struct {
	Read        int `json:"read" yaml:"read"`
	Inserted    int `json:"inserted" yaml:"inserted"`
	Replaced    int `json:"replaced" yaml:"replaced"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Malformed   int `json:"malformed" yaml:"malformed"`
	Orphaned    int `json:"orphaned" yaml:"orphaned"`
	Violations  int `json:"violations" yaml:"violations"`
	Ambiguities int `json:"ambiguities" yaml:"ambiguities"`
}

// Applied returns the number of records written to the store.
func (s KindSummary) Applied() int {
	return s.Inserted + s.Replaced
}

func (s *KindSummary) add(o KindSummary) {
	s.Read += o.Read
	s.Inserted += o.Inserted
	s.Replaced += o.Replaced
	s.Skipped += o.Skipped
	s.Malformed += o.Malformed
	s.Orphaned += o.Orphaned
	s.Violations += o.Violations
	s.Ambiguities += o.Ambiguities
}

// LinkSummary counts what happened to the join records of one relation.
type LinkSummary struct {
	Read      int `json:"read" yaml:"read"`
	Added     int `json:"added" yaml:"added"`
	Existing  int `json:"existing" yaml:"existing"`
	Malformed int `json:"malformed" yaml:"malformed"`
	Orphaned  int `json:"orphaned" yaml:"orphaned"`
}

// ImportSummary is the outcome of one import run.
type ImportSummary struct {
	Kinds map[types.Kind]*KindSummary     `json:"kinds" yaml:"kinds"`
	Links map[types.Relation]*LinkSummary `json:"links" yaml:"links"`

	// Problems lists every record that was not applied, plus informational
	// reconciliation ambiguities
	Problems []*Error `json:"-" yaml:"-"`
}

func newImportSummary() *ImportSummary {
	s := &ImportSummary{
		Kinds: make(map[types.Kind]*KindSummary, len(types.Kinds)),
		Links: make(map[types.Relation]*LinkSummary, len(types.Relations)),
	}
	for _, k := range types.Kinds {
		s.Kinds[k] = &KindSummary{}
	}
	for _, r := range types.Relations {
		s.Links[r] = &LinkSummary{}
	}
	return s
}

// Totals sums the per-kind counters.
func (s *ImportSummary) Totals() KindSummary {
	var t KindSummary
	for _, ks := range s.Kinds {
		t.add(*ks)
	}
	return t
}

// LinkTotals sums the per-relation counters.
func (s *ImportSummary) LinkTotals() LinkSummary {
	var t LinkSummary
	for _, ls := range s.Links {
		t.Read += ls.Read
		t.Added += ls.Added
		t.Existing += ls.Existing
		t.Malformed += ls.Malformed
		t.Orphaned += ls.Orphaned
	}
	return t
}

// Rejected returns the number of records and join records that were not
// applied because they were malformed, orphaned or structurally invalid.
// Records skipped by last-write-wins are not rejected.
func (s *ImportSummary) Rejected() int {
	t := s.Totals()
	lt := s.LinkTotals()
	return t.Malformed + t.Orphaned + t.Violations + lt.Malformed + lt.Orphaned
}

// Messages renders Problems as strings.
func (s *ImportSummary) Messages() []string {
	out := make([]string, len(s.Problems))
	for i, p := range s.Problems {
		out[i] = p.Error()
	}
	return out
}

// Importer applies interchange files to the entity store.
type Importer struct {
	store      store.Store
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

// NewImporter creates an Importer writing to st. A nil reconciler uses the
// default timestamp comparator.
func NewImporter(st store.Store, r *reconcile.Reconciler, logger *slog.Logger) *Importer {
	if r == nil {
		r = reconcile.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, reconciler: r, logger: logger}
}

// pending is a decoded record waiting to be applied.
type pending struct {
	entity types.Entity
	line   int
}

// Import reads the interchange files in dir and applies them.
//
// Kinds are applied in dependency order and records within a kind are
// ordered parents first, so every reference is resolvable by the time a
// record is written. A record whose reference resolves neither in the store
// nor in the part of the batch already applied is rejected as an orphan;
// no placeholder is created for it. Join records come last, once every
// endpoint kind is complete.
//
// Bad records are counted, reported in the summary and skipped. Only a
// failure to read a file or to write the store aborts the run; records
// applied before that point stay applied, and repeating the import is safe.
func (im *Importer) Import(ctx context.Context, dir string) (*ImportSummary, error) {
	manifest, _, err := ReadManifest(dir)
	if err == nil {
		err = manifest.CheckCompatible()
	}
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Op = "import"
		}
		return nil, err
	}

	local, err := im.loadLocal(ctx)
	if err != nil {
		return nil, err
	}

	summary := newImportSummary()
	batches, err := im.parse(dir, local, summary)
	if err != nil {
		return summary, err
	}

	for _, kind := range types.Kinds {
		if err := im.applyKind(ctx, kind, batches[kind], local, summary); err != nil {
			return summary, err
		}
	}

	for _, rel := range types.Relations {
		if err := im.applyLinks(ctx, dir, rel, local, summary); err != nil {
			return summary, err
		}
	}

	t := summary.Totals()
	im.logger.Info("import complete",
		"read", t.Read,
		"inserted", t.Inserted,
		"replaced", t.Replaced,
		"skipped", t.Skipped,
		"rejected", t.Malformed+t.Orphaned+t.Violations,
		"links_added", summary.LinkTotals().Added,
	)
	return summary, nil
}

// loadLocal indexes every stored record by identifier.
func (im *Importer) loadLocal(ctx context.Context) (map[string]types.Entity, error) {
	local := make(map[string]types.Entity)
	for _, kind := range types.Kinds {
		records, err := im.store.ListAll(ctx, kind)
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "import", Kind: kind, Err: err}
		}
		for _, e := range records {
			local[e.EntityID()] = e
		}
	}
	return local, nil
}

// parse decodes every entity file. Malformed lines and identifier
// collisions are counted here; duplicate identifiers within a file keep the
// newest line.
func (im *Importer) parse(dir string, local map[string]types.Entity, s *ImportSummary) (map[types.Kind][]pending, error) {
	batches := make(map[types.Kind][]pending, len(types.Kinds))
	owner := make(map[string]types.Kind)

	for _, kind := range types.Kinds {
		name := kind.FileName()
		lines, err := jsonl.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, &Error{Code: IOFailure, Op: "import", Kind: kind, File: name, Err: err}
		}

		ks := s.Kinds[kind]
		index := make(map[string]int)
		var batch []pending

		for _, line := range lines {
			ks.Read++

			e, err := jsonl.DecodeEntity(kind, line.Data)
			if err != nil {
				ks.Malformed++
				id, ts := jsonl.Peek(line.Data)
				im.report(s, &Error{
					Code: EncodingFailure, Op: "import",
					Kind: kind, ID: id, Timestamp: ts,
					File: name, Line: line.Number, Err: err,
				})
				continue
			}

			id := e.EntityID()
			other, taken := owner[id]
			if !taken {
				if le, ok := local[id]; ok {
					other, taken = le.EntityKind(), true
				}
			}
			if taken && other != kind {
				ks.Violations++
				im.report(s, atLine(recordError(StructuralViolation, "import", e,
					&graph.CollisionError{ID: id, Existing: other, Incoming: kind}), name, line.Number))
				continue
			}

			if i, dup := index[id]; dup {
				ks.Skipped++
				prev := batch[i]
				if im.reconciler.Reconcile(prev.entity, e).Action == reconcile.Replace {
					batch[i] = pending{entity: e, line: line.Number}
				}
				im.logger.Debug("duplicate record in file", "kind", kind, "id", id, "file", name, "line", line.Number)
				continue
			}

			owner[id] = kind
			index[id] = len(batch)
			batch = append(batch, pending{entity: e, line: line.Number})
		}

		batches[kind] = batch
	}
	return batches, nil
}

// applyKind reconciles and writes one kind's batch.
func (im *Importer) applyKind(ctx context.Context, kind types.Kind, batch []pending, local map[string]types.Entity, s *ImportSummary) error {
	name := kind.FileName()
	ks := s.Kinds[kind]

	records := make([]types.Entity, len(batch))
	lineOf := make(map[string]int, len(batch))
	for i, p := range batch {
		records[i] = p.entity
		lineOf[p.entity.EntityID()] = p.line
	}

	ordered, cyclic := graph.Order(records)
	if len(cyclic) > 0 {
		cycle := &graph.CycleError{Kind: kind}
		for _, e := range cyclic {
			cycle.IDs = append(cycle.IDs, e.EntityID())
		}
		for _, e := range cyclic {
			ks.Violations++
			im.report(s, atLine(recordError(StructuralViolation, "import", e, cycle), name, lineOf[e.EntityID()]))
		}
	}

	for _, e := range ordered {
		id := e.EntityID()
		line := lineOf[id]

		d := im.reconciler.Reconcile(local[id], e)
		if d.Ambiguity != reconcile.AmbiguityNone {
			ks.Ambiguities++
			im.report(s, atLine(recordError(ReconciliationAmbiguity, "import", e, errors.New(d.Reason)), name, line))
		}
		if d.Action == reconcile.Skip {
			ks.Skipped++
			continue
		}

		// References matter only for records that will be written.
		if ref, ok := unresolved(e, local); ok {
			ks.Orphaned++
			im.report(s, atLine(recordError(StructuralViolation, "import", e, &graph.DanglingRefError{
				Kind: kind, ID: id, Field: ref.Field, Target: ref.ID,
			}), name, line))
			continue
		}

		if createsCycle(e, local) {
			ks.Violations++
			im.report(s, atLine(recordError(StructuralViolation, "import", e, &graph.CycleError{
				Kind: kind, IDs: []string{id},
			}), name, line))
			continue
		}

		if err := im.store.Upsert(ctx, e); err != nil {
			return atLine(recordError(IOFailure, "import", e, err), name, line)
		}
		local[id] = e

		if d.Action == reconcile.Insert {
			ks.Inserted++
		} else {
			ks.Replaced++
		}
		im.logger.Debug("applied record", "kind", kind, "id", id, "action", d.Action.String())
	}
	return nil
}

// applyLinks adds the join records of one relation whose endpoints both
// exist.
func (im *Importer) applyLinks(ctx context.Context, dir string, rel types.Relation, local map[string]types.Entity, s *ImportSummary) error {
	name := rel.FileName()
	lines, err := jsonl.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return &Error{Code: IOFailure, Op: "import", File: name, Err: err}
	}

	ls := s.Links[rel]
	for _, line := range lines {
		ls.Read++

		l, err := types.DecodeLink(rel, line.Data)
		if err != nil {
			ls.Malformed++
			im.report(s, &Error{Code: EncodingFailure, Op: "import", File: name, Line: line.Number, Err: err})
			continue
		}

		if ref, ok := unresolvedRefs(l.Refs(), local); ok {
			ls.Orphaned++
			im.report(s, &Error{
				Code: StructuralViolation, Op: "import", Kind: ref.Kind, ID: ref.ID,
				File: name, Line: line.Number,
				Err: &graph.DanglingLinkError{Link: l, Field: ref.Field, Target: ref.ID},
			})
			continue
		}

		added, err := im.store.AddLink(ctx, l)
		if err != nil {
			return &Error{Code: IOFailure, Op: "import", File: name, Line: line.Number, Err: err}
		}
		if added {
			ls.Added++
		} else {
			ls.Existing++
		}
	}
	return nil
}

// report records a problem and logs it.
func (im *Importer) report(s *ImportSummary, e *Error) {
	s.Problems = append(s.Problems, e)

	level := slog.LevelWarn
	msg := "record not applied"
	if e.Code == ReconciliationAmbiguity {
		level = slog.LevelInfo
		msg = "kept local record"
	}
	im.logger.Log(context.Background(), level, msg,
		"code", e.Code.String(),
		"kind", e.Kind,
		"id", e.ID,
		"file", e.File,
		"line", e.Line,
		"error", e.Err,
	)
}

func atLine(e *Error, file string, line int) *Error {
	e.File = file
	e.Line = line
	return e
}

// unresolved returns the first reference of e that does not resolve to a
// local record of the right kind.
func unresolved(e types.Entity, local map[string]types.Entity) (types.Ref, bool) {
	return unresolvedRefs(e.Refs(), local)
}

func unresolvedRefs(refs []types.Ref, local map[string]types.Entity) (types.Ref, bool) {
	for _, ref := range refs {
		target, ok := local[ref.ID]
		if !ok || target.EntityKind() != ref.Kind {
			return ref, true
		}
	}
	return types.Ref{}, false
}

// createsCycle reports whether writing e would close a parent loop with
// records already in the store.
func createsCycle(e types.Entity, local map[string]types.Entity) bool {
	id := e.EntityID()
	cur := parentOf(e)
	for steps := 0; cur != "" && steps <= len(local); steps++ {
		if cur == id {
			return true
		}
		p, ok := local[cur]
		if !ok || p.EntityKind() != e.EntityKind() {
			return false
		}
		cur = parentOf(p)
	}
	return false
}

func parentOf(e types.Entity) string {
	for _, ref := range e.Refs() {
		if ref.IsParent(e.EntityKind()) {
			return ref.ID
		}
	}
	return ""
}
