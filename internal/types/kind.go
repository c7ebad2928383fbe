// Package types defines the synchronizable entity records of c5t and the
// identity rules they share.
//
// Every record carries a fixed-width hex identifier that is unique across
// all kinds, and a mutation timestamp (updated_at) that is the only signal
// used to order concurrent edits.
package types

import "fmt"

// Kind identifies an entity table.
type Kind string

const (
	KindProject  Kind = "project"
	KindRepo     Kind = "repo"
	KindTaskList Kind = "task_list"
	KindTask     Kind = "task"
	KindNote     Kind = "note"
	KindSkill    Kind = "skill"
)

// Kinds lists every entity kind in dependency order: a kind only references
// kinds that appear before it (or itself, for parent links).
var Kinds = []Kind{
	KindProject,
	KindRepo,
	KindTaskList,
	KindTask,
	KindNote,
	KindSkill,
}

// IsValid returns true if k is a known entity kind.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// FileName returns the interchange file name for this kind.
func (k Kind) FileName() string {
	return string(k) + ".jsonl"
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}

// Relation identifies a join table between two entity kinds.
type Relation string

const (
	RelProjectRepo  Relation = "project_repo"
	RelProjectNote  Relation = "project_note"
	RelTaskListRepo Relation = "task_list_repo"
	RelNoteRepo     Relation = "note_repo"
	RelProjectSkill Relation = "project_skill"
)

// Relations lists every join table.
var Relations = []Relation{
	RelProjectRepo,
	RelProjectNote,
	RelTaskListRepo,
	RelNoteRepo,
	RelProjectSkill,
}

var relationEndpoints = map[Relation][2]Kind{
	RelProjectRepo:  {KindProject, KindRepo},
	RelProjectNote:  {KindProject, KindNote},
	RelTaskListRepo: {KindTaskList, KindRepo},
	RelNoteRepo:     {KindNote, KindRepo},
	RelProjectSkill: {KindProject, KindSkill},
}

// IsValid returns true if r is a known relation.
func (r Relation) IsValid() bool {
	_, ok := relationEndpoints[r]
	return ok
}

// Endpoints returns the kinds joined by r, in column order.
func (r Relation) Endpoints() (Kind, Kind) {
	ep := relationEndpoints[r]
	return ep[0], ep[1]
}

// Columns returns the field names used for the two endpoints,
// e.g. "project_id" and "repo_id".
func (r Relation) Columns() (string, string) {
	a, b := r.Endpoints()
	return string(a) + "_id", string(b) + "_id"
}

// FileName returns the interchange file name for this relation.
func (r Relation) FileName() string {
	return string(r) + ".jsonl"
}
