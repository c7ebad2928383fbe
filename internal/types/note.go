package types

import "fmt"

// Note is a markdown document. Notes form a tree through ParentID; Idx
// orders siblings.
type Note struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	ParentID *string  `json:"parent_id,omitempty"`
	Idx      *int     `json:"idx,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	// LastActivityAt is derived from the note's children at export time.
	LastActivityAt string `json:"last_activity_at,omitempty"`
}

func (n *Note) EntityKind() Kind { return KindNote }
func (n *Note) EntityID() string { return n.ID }
func (n *Note) Modified() string { return n.UpdatedAt }

func (n *Note) Refs() []Ref {
	if n.ParentID == nil || *n.ParentID == "" {
		return nil
	}
	return []Ref{{Field: "parent_id", Kind: KindNote, ID: *n.ParentID}}
}

func (n *Note) LastActivity() string { return n.LastActivityAt }
func (n *Note) SetLastActivity(ts string) { n.LastActivityAt = ts }

func (n *Note) Normalize() {
	n.Tags = emptyIfNil(n.Tags)
}

// Validate checks if the Note has valid field values.
func (n *Note) Validate() error {
	if err := ValidateID(n.ID); err != nil {
		return err
	}
	if err := validateOptionalID("parent_id", n.ParentID); err != nil {
		return err
	}
	if n.ParentID != nil && *n.ParentID == n.ID {
		return fmt.Errorf("note %s cannot be its own parent", n.ID)
	}
	if n.Title == "" {
		return fmt.Errorf("title is required")
	}
	return validateTimestamps(n.CreatedAt, n.UpdatedAt)
}
