package types

import "fmt"

// Project groups task lists, notes, repositories and skills.
type Project struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  *string  `json:"description,omitempty"`
	Tags         []string `json:"tags"`
	ExternalRefs []string `json:"external_refs"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func (p *Project) EntityKind() Kind { return KindProject }
func (p *Project) EntityID() string { return p.ID }
func (p *Project) Modified() string { return p.UpdatedAt }
func (p *Project) Refs() []Ref { return nil }

func (p *Project) Normalize() {
	p.Tags = emptyIfNil(p.Tags)
	p.ExternalRefs = emptyIfNil(p.ExternalRefs)
}

// Validate checks if the Project has valid field values.
func (p *Project) Validate() error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	return validateTimestamps(p.CreatedAt, p.UpdatedAt)
}
