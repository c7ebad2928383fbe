package types

import "fmt"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskBacklog    TaskStatus = "backlog"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsValid returns true if s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskBacklog, TaskTodo, TaskInProgress, TaskReview, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// Task is a unit of work inside a task list. Tasks may nest one level or
// more through ParentID.
type Task struct {
	// ===== Core Identification =====
	ID       string  `json:"id"`
	ListID   string  `json:"list_id"`
	ParentID *string `json:"parent_id,omitempty"`

	// ===== Content =====
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	Priority     *int       `json:"priority,omitempty"` // 1 (highest) to 5
	Tags         []string   `json:"tags"`
	ExternalRefs []string   `json:"external_refs"`

	// ===== Timestamps =====
	CreatedAt   string  `json:"created_at"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
	UpdatedAt   string  `json:"updated_at"`

	// LastActivityAt is derived from the task's subtasks at export time.
	LastActivityAt string `json:"last_activity_at,omitempty"`
}

func (t *Task) EntityKind() Kind { return KindTask }
func (t *Task) EntityID() string { return t.ID }
func (t *Task) Modified() string { return t.UpdatedAt }

func (t *Task) Refs() []Ref {
	var refs []Ref
	if t.ListID != "" {
		refs = append(refs, Ref{Field: "list_id", Kind: KindTaskList, ID: t.ListID})
	}
	if t.ParentID != nil && *t.ParentID != "" {
		refs = append(refs, Ref{Field: "parent_id", Kind: KindTask, ID: *t.ParentID})
	}
	return refs
}

func (t *Task) LastActivity() string { return t.LastActivityAt }
func (t *Task) SetLastActivity(ts string) { t.LastActivityAt = ts }

func (t *Task) Normalize() {
	t.Tags = emptyIfNil(t.Tags)
	t.ExternalRefs = emptyIfNil(t.ExternalRefs)
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if err := ValidateID(t.ID); err != nil {
		return err
	}
	if err := validateRequiredID("list_id", t.ListID); err != nil {
		return err
	}
	if err := validateOptionalID("parent_id", t.ParentID); err != nil {
		return err
	}
	if t.ParentID != nil && *t.ParentID == t.ID {
		return fmt.Errorf("task %s cannot be its own parent", t.ID)
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Priority != nil && (*t.Priority < 1 || *t.Priority > 5) {
		return fmt.Errorf("priority must be between 1 and 5 (got %d)", *t.Priority)
	}
	return validateTimestamps(t.CreatedAt, t.UpdatedAt)
}
