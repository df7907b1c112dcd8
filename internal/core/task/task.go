// Package task defines the task and category domain model shared by the
// sync engine, the durable stores, and the remote service.
package task

import (
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority resolves a priority name case-insensitively.
// An empty string resolves to PriorityMedium.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return "", false
}

const (
	// DefaultCategory is used when a draft does not name a category.
	DefaultCategory = "Work"
	// DefaultCategoryColor is the display color for categories without one.
	DefaultCategoryColor = "#6B7280"
	// DateLayout is the layout of Task.DueDate.
	DateLayout = "2006-01-02"
)

// Task is a single entry in the user's list.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    Priority  `json:"priority"`
	DueDate     string    `json:"dueDate,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	Order       int       `json:"order"`
}

// Category groups tasks by name. TaskCount is derived data: it is only
// meaningful when computed locally from the task list.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	TaskCount int    `json:"taskCount"`
}

// Draft carries the fields supplied when creating a task.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	DueDate     string   `json:"dueDate,omitempty"`
	Order       *int     `json:"order,omitempty"`
}

// WithDefaults fills the category and priority when they are unset.
func (d Draft) WithDefaults(defaultCategory string) Draft {
	d.Title = strings.TrimSpace(d.Title)
	if strings.TrimSpace(d.Category) == "" {
		d.Category = defaultCategory
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	return d
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Order       *int      `json:"order,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.DueDate == nil && p.Completed == nil && p.Order == nil
}

// Apply returns a copy of t with the patch's set fields applied.
// ID and CreatedAt are never touched.
func (p Patch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	return t
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
