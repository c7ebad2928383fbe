package types

import "fmt"

// Repo records a source repository that projects, task lists and notes can
// be linked to.
type Repo struct {
	ID     string   `json:"id"`
	Remote string   `json:"remote"`
	Path   *string  `json:"path,omitempty"`
	Tags   []string `json:"tags"`

	CreatedAt string `json:"created_at"`

	// UpdatedAt is absent on repos exported by older versions; CreatedAt
	// stands in for it then.
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (r *Repo) EntityKind() Kind { return KindRepo }
func (r *Repo) EntityID() string { return r.ID }
func (r *Repo) Refs() []Ref { return nil }

// Modified returns UpdatedAt, falling back to CreatedAt.
func (r *Repo) Modified() string {
	if r.UpdatedAt != "" {
		return r.UpdatedAt
	}
	return r.CreatedAt
}

func (r *Repo) Normalize() {
	r.Tags = emptyIfNil(r.Tags)
}

// Validate checks if the Repo has valid field values.
func (r *Repo) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	if r.Remote == "" {
		return fmt.Errorf("remote is required")
	}
	if r.CreatedAt == "" {
		return fmt.Errorf("created_at is required")
	}
	return nil
}
