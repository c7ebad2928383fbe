package types

import "fmt"

// Skill is a reusable instruction document.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func (s *Skill) EntityKind() Kind { return KindSkill }
func (s *Skill) EntityID() string { return s.ID }
func (s *Skill) Modified() string { return s.UpdatedAt }
func (s *Skill) Refs() []Ref { return nil }

func (s *Skill) Normalize() {
	s.Tags = emptyIfNil(s.Tags)
}

// Validate checks if the Skill has valid field values.
func (s *Skill) Validate() error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	return validateTimestamps(s.CreatedAt, s.UpdatedAt)
}
