package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MinPriority          = 1
	MaxPriority          = 5
)

// Task represents a single to-do item owned by a user.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	Priority    int        `json:"priority"` // 1 (lowest) .. 5 (highest)
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NewTask holds the fields a client supplies when creating a task.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// Validate checks the creation fields.
func (n *NewTask) Validate() error {
	if err := validateTitle(n.Title); err != nil {
		return err
	}
	if err := validateDescription(n.Description); err != nil {
		return err
	}
	return validatePriority(n.Priority)
}

// Validate checks only the fields present in the patch.
func (p *TaskPatch) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		return validatePriority(*p.Priority)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p *TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.IsCompleted == nil
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if err := validateTitle(t.Title); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	return validatePriority(t.Priority)
}

// MarkCompleted sets the completion flag and stamps completed_at.
func (t *Task) MarkCompleted(now time.Time) {
	t.IsCompleted = true
	t.CompletedAt = &now
	t.UpdatedAt = &now
}

// MarkPending clears the completion flag and completed_at.
func (t *Task) MarkPending(now time.Time) {
	t.IsCompleted = false
	t.CompletedAt = nil
	t.UpdatedAt = &now
}

// Toggle flips the completion flag.
func (t *Task) Toggle(now time.Time) {
	if t.IsCompleted {
		t.MarkPending(now)
	} else {
		t.MarkCompleted(now)
	}
}

// ApplyPatch merges p into t. Completion timestamps only move when the flag
// actually transitions; updated_at is always stamped.
func (t *Task) ApplyPatch(p TaskPatch, now time.Time) {
	if p.IsCompleted != nil && *p.IsCompleted != t.IsCompleted {
		if *p.IsCompleted {
			t.MarkCompleted(now)
		} else {
			t.MarkPending(now)
		}
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	t.UpdatedAt = &now
}

// Matches reports whether the title or description contains term, ignoring case.
func (t *Task) Matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(t.Title), term) ||
		strings.Contains(strings.ToLower(t.Description), term)
}

// Newer orders tasks by creation time descending, highest id first on ties.
func (t *Task) Newer(other *Task) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.After(other.CreatedAt)
	}
	return t.ID > other.ID
}

// HighPriority reports whether the task is priority 4 or 5.
func (t *Task) HighPriority() bool {
	return t.Priority >= 4
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewValidationError("title must be 200 characters or fewer")
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return NewValidationError("description must be 1000 characters or fewer")
	}
	return nil
}

func validatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return NewValidationError("priority must be between 1 and 5")
	}
	return nil
}
