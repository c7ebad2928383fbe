// Package sync keeps copies of the entity store consistent across machines
// through a version-controlled directory of interchange files.
//
// Overview
//
// The sync package implements the engine behind `c5t sync`. It exports the
// store as one newline-delimited JSON file per entity kind and per join
// table, commits those files to a git (or colocated jj) repository, and
// imports files written elsewhere, deciding record by record which side
// wins. There is no server: the remote is just another repository.
//
// Architecture
//
//	export:  Store → Exporter → *.jsonl → commit → push (optional)
//	import:  pull (optional) → *.jsonl → Importer → Reconciler → Store
//
//	Working area
//	     ├── c5t-sync.toml          → Manifest (format version)
//	     ├── project.jsonl ...      → one file per kind
//	     └── project_repo.jsonl ... → one file per join table
//
// The Coordinator ties the pieces together and exposes the four
// operations: Init, Export, Import and Status.
//
// Usage
//
//	c, err := sync.New(st, sync.Options{Dir: dir})
//	if err != nil {
//	    return err
//	}
//	if _, err := c.Init(ctx, remoteURL); err != nil {
//	    return err
//	}
//	res, err := c.Export(ctx, sync.ExportOptions{Push: true})
//
// Reconciliation
//
// Records are compared by mutation timestamp only (package reconcile). An
// unknown identifier is inserted, a strictly newer record replaces the
// local one, and anything else keeps the local record. File-level merge
// conflicts during a pull are settled in favour of the remote; the
// record-level pass on import is what decides the final state.
//
// Idempotency
//
// Export writes a full, identifier-ordered snapshot and commits only when a
// file changed, so repeating it is a no-op. Import only writes records that
// win reconciliation, and join records are a set union.
//
// Concurrency
//
// One operation at a time per working area and store. The package does not
// lock; callers serialize invocations (the CLI holds a lock file).
// Commits run to completion even if the context is cancelled; push and pull
// honour the context plus Options.NetworkTimeout.
//
// Error Handling
//
// Failures are *Error values classified by Code:
//
//   - Malformed lines, orphans, cycles and collisions on import are
//     counted, logged and skipped; the batch continues
//   - Store and file errors abort the operation
//   - Network errors abort only the push or pull; the local commit stays
//     and IsRetryable reports true
package sync
