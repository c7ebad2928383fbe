package types

import "fmt"

// TaskListStatus is the lifecycle state of a task list.
type TaskListStatus string

const (
	TaskListActive   TaskListStatus = "active"
	TaskListArchived TaskListStatus = "archived"
)

// IsValid returns true if s is a known task list status.
func (s TaskListStatus) IsValid() bool {
	return s == TaskListActive || s == TaskListArchived
}

// TaskList is an ordered container of tasks belonging to one project.
type TaskList struct {
	// ===== Core Identification =====
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	// ===== Content =====
	Title        string         `json:"title"`
	Description  *string        `json:"description,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	Tags         []string       `json:"tags"`
	ExternalRefs []string       `json:"external_refs"`
	Status       TaskListStatus `json:"status"`

	// ===== Timestamps =====
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	ArchivedAt *string `json:"archived_at,omitempty"`

	// LastActivityAt is derived from the list's tasks at export time.
	LastActivityAt string `json:"last_activity_at,omitempty"`
}

func (l *TaskList) EntityKind() Kind { return KindTaskList }
func (l *TaskList) EntityID() string { return l.ID }
func (l *TaskList) Modified() string { return l.UpdatedAt }

func (l *TaskList) Refs() []Ref {
	if l.ProjectID == "" {
		return nil
	}
	return []Ref{{Field: "project_id", Kind: KindProject, ID: l.ProjectID}}
}

func (l *TaskList) LastActivity() string { return l.LastActivityAt }
func (l *TaskList) SetLastActivity(ts string) { l.LastActivityAt = ts }

func (l *TaskList) Normalize() {
	l.Tags = emptyIfNil(l.Tags)
	l.ExternalRefs = emptyIfNil(l.ExternalRefs)
	if l.Status == "" {
		l.Status = TaskListActive
	}
}

// Validate checks if the TaskList has valid field values.
func (l *TaskList) Validate() error {
	if err := ValidateID(l.ID); err != nil {
		return err
	}
	if err := validateRequiredID("project_id", l.ProjectID); err != nil {
		return err
	}
	if l.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !l.Status.IsValid() {
		return fmt.Errorf("invalid status %q", l.Status)
	}
	return validateTimestamps(l.CreatedAt, l.UpdatedAt)
}
