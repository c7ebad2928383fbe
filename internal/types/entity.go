package types

import "fmt"

// Entity is implemented by every synchronizable record.
type Entity interface {
	// EntityKind returns the table the record belongs to.
	EntityKind() Kind

	// EntityID returns the record identifier.
	EntityID() string

	// Modified returns the raw mutation timestamp used for reconciliation.
	Modified() string

	// Refs returns the non-empty references this record holds to other
	// records.
	Refs() []Ref

	// Normalize replaces nil collections with empty ones so that stored
	// and decoded records compare equal.
	Normalize()

	// Validate checks field values.
	Validate() error
}

// Ref is a reference from one record to another.
type Ref struct {
	// Field is the interchange field holding the reference
	Field string

	// Kind is the kind of the referenced record
	Kind Kind

	// ID is the referenced identifier
	ID string
}

// IsParent returns true if the reference points at the same kind as from,
// forming a hierarchy that must stay acyclic.
func (r Ref) IsParent(from Kind) bool {
	return r.Kind == from
}

// ActivityTracker is implemented by records that expose a derived
// last_activity_at field. The field is computed before export and never
// persisted.
type ActivityTracker interface {
	LastActivity() string
	SetLastActivity(ts string)
}

// NewEntity returns an empty record of the given kind, ready for decoding.
func NewEntity(k Kind) (Entity, error) {
	switch k {
	case KindProject:
		return &Project{}, nil
	case KindRepo:
		return &Repo{}, nil
	case KindTaskList:
		return &TaskList{}, nil
	case KindTask:
		return &Task{}, nil
	case KindNote:
		return &Note{}, nil
	case KindSkill:
		return &Skill{}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", k)
	}
}

// ClearDerived resets derived fields on e, if it has any.
func ClearDerived(e Entity) {
	if at, ok := e.(ActivityTracker); ok {
		at.SetLastActivity("")
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func validateOptionalID(field string, id *string) error {
	if id == nil {
		return nil
	}
	if err := ValidateID(*id); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func validateRequiredID(field, id string) error {
	if err := ValidateID(id); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

func validateTimestamps(createdAt, updatedAt string) error {
	if createdAt == "" {
		return fmt.Errorf("created_at is required")
	}
	if updatedAt == "" {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}
