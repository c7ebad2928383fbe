// Package reconcile decides, record by record, whether an incoming
// interchange record supersedes the local one.
//
// The policy is last-write-wins on the mutation timestamp alone: an absent
// local record is inserted, a strictly newer incoming record replaces the
// local one, and anything else keeps the local record. A tie therefore
// always favours the local side. Two edits made on different machines
// within one timestamp tick can lose one side; that is a known limitation
// of whole-record reconciliation, surfaced through Decision.Ambiguity.
package reconcile

import (
	"reflect"

	"github.com/c5t/c5t/internal/types"
)

// Action is what the importer must do with an incoming record.
type Action int

const (
	// Insert stores an incoming record that has no local counterpart.
	Insert Action = iota

	// Replace overwrites the local record in place.
	Replace

	// Skip keeps the local record.
	Skip
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Ambiguity flags decisions that were made by policy rather than by a
// clear ordering.
type Ambiguity int

const (
	// AmbiguityNone means the timestamps ordered the records cleanly, or
	// the records were identical.
	AmbiguityNone Ambiguity = iota

	// AmbiguityTie means two different records carry equal timestamps;
	// the local one was kept.
	AmbiguityTie

	// AmbiguityUnparseable means a timestamp could not be interpreted; the
	// local one was kept.
	AmbiguityUnparseable
)

func (a Ambiguity) String() string {
	switch a {
	case AmbiguityNone:
		return "none"
	case AmbiguityTie:
		return "timestamp tie"
	case AmbiguityUnparseable:
		return "unparseable timestamp"
	default:
		return "unknown"
	}
}

// Decision is the outcome of reconciling one record.
type Decision struct {
	Action    Action
	Ambiguity Ambiguity

	// Reason is a short human-readable explanation for logs
	Reason string
}

// Reconciler applies the last-write-wins policy using an injected
// Comparator.
type Reconciler struct {
	cmp Comparator
}

// New creates a Reconciler. A nil comparator selects TimestampComparator
// with one-second granularity.
func New(cmp Comparator) *Reconciler {
	if cmp == nil {
		cmp = TimestampComparator{}
	}
	return &Reconciler{cmp: cmp}
}

// Reconcile decides what to do with incoming given the local record, which
// is nil when the identifier is unseen. Both records must be normalized
// and free of derived fields.
func (r *Reconciler) Reconcile(existing, incoming types.Entity) Decision {
	if existing == nil || reflect.ValueOf(existing).IsNil() {
		return Decision{Action: Insert, Reason: "new record"}
	}

	c, err := r.cmp.Compare(existing.Modified(), incoming.Modified())
	if err != nil {
		return Decision{Action: Skip, Ambiguity: AmbiguityUnparseable, Reason: err.Error()}
	}

	switch {
	case c > 0:
		return Decision{Action: Replace, Reason: "incoming is newer"}
	case c < 0:
		return Decision{Action: Skip, Reason: "local is newer"}
	case reflect.DeepEqual(existing, incoming):
		return Decision{Action: Skip, Reason: "identical"}
	default:
		return Decision{Action: Skip, Ambiguity: AmbiguityTie, Reason: "timestamps tie, keeping local"}
	}
}
