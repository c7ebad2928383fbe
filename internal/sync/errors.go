package sync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/c5t/c5t/internal/types"
	"github.com/c5t/c5t/internal/vcs"
)

// Code classifies sync failures.
type Code int

const (
	// CodeUnknown is reported for errors that did not originate here
	CodeUnknown Code = iota

	// NotInitialized: the working area has not been bound to a history
	NotInitialized

	// IOFailure: a file or the entity store could not be read or written
	IOFailure

	// EncodingFailure: a record is malformed or cannot be represented
	EncodingFailure

	// StructuralViolation: identifier collision, reference cycle or
	// unresolvable reference
	StructuralViolation

	// NetworkFailure: push or pull could not reach the remote
	NetworkFailure

	// ReconciliationAmbiguity: a tie or unparseable timestamp, resolved in
	// favour of the local record and reported for information only
	ReconciliationAmbiguity
)

var codeNames = map[Code]string{
	CodeUnknown:             "unknown",
	NotInitialized:          "not initialized",
	IOFailure:               "io failure",
	EncodingFailure:         "encoding failure",
	StructuralViolation:     "structural violation",
	NetworkFailure:          "network failure",
	ReconciliationAmbiguity: "reconciliation ambiguity",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// MarshalText renders the code by name in JSON and YAML output.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(strings.ReplaceAll(c.String(), " ", "_")), nil
}

// Error is a sync failure. It names the record involved, when there is
// one, so it can be corrected without repeating the whole operation.
type Error struct {
	Code Code
	Op   string // init, export, import, status

	Kind      types.Kind
	ID        string
	Timestamp string

	File string
	Line int

	Err error
}

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrNotInitialized          = &Error{Code: NotInitialized}
	ErrIOFailure               = &Error{Code: IOFailure}
	ErrEncodingFailure         = &Error{Code: EncodingFailure}
	ErrStructuralViolation     = &Error{Code: StructuralViolation}
	ErrNetworkFailure          = &Error{Code: NetworkFailure}
	ErrReconciliationAmbiguity = &Error{Code: ReconciliationAmbiguity}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Code.String())

	if e.Kind != "" || e.ID != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(string(e.Kind) + " " + e.ID))
		if e.Timestamp != "" {
			fmt.Fprintf(&b, " (updated_at %s)", e.Timestamp)
		}
	}
	if e.File != "" {
		b.WriteString(" at ")
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable returns true if repeating the operation may succeed without
// any change to local data.
func IsRetryable(err error) bool {
	return CodeOf(err) == NetworkFailure
}

// recordError builds an error about one record.
func recordError(code Code, op string, e types.Entity, err error) *Error {
	return &Error{
		Code:      code,
		Op:        op,
		Kind:      e.EntityKind(),
		ID:        e.EntityID(),
		Timestamp: e.Modified(),
		Err:       err,
	}
}

// vcsError maps a repository adapter failure onto the taxonomy. Transport
// problems are network failures; anything else concerns the local working
// area.
func vcsError(op string, err error) *Error {
	code := IOFailure
	switch {
	case errors.Is(err, vcs.ErrNetwork),
		errors.Is(err, vcs.ErrTimeout),
		errors.Is(err, vcs.ErrPushRejected):
		code = NetworkFailure
	case errors.Is(err, vcs.ErrNotInVCS):
		code = NotInitialized
	}
	return &Error{Code: code, Op: op, Err: err}
}
