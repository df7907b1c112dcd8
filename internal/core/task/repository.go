package task

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a task or category does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when input fails validation. It wraps the
	// field errors describing what was wrong.
	ErrInvalid = errors.New("invalid input")
	// ErrDuplicateCategory is returned when a category name is already taken.
	ErrDuplicateCategory = errors.New("duplicate category name")
	// ErrClosed is returned by an engine whose session has been torn down.
	ErrClosed = errors.New("session closed")
)

// Repository is the durable record store for tasks.
type Repository interface {
	// List returns every task ordered by Order ascending.
	List(ctx context.Context) ([]Task, error)

	// Create persists a new task. The repository assigns ID and CreatedAt,
	// and appends the task when Draft.Order is nil.
	// Returns ErrInvalid when required fields are missing.
	Create(ctx context.Context, draft Draft) (Task, error)

	// Update applies a partial update and returns the full record.
	// Returns ErrNotFound if the id does not exist.
	Update(ctx context.Context, id string, patch Patch) (Task, error)

	// Delete removes a task. Returns ErrNotFound if the id does not exist.
	Delete(ctx context.Context, id string) (bool, error)

	// Reorder persists Order to match each task's position in the slice.
	// The update is all-or-nothing.
	Reorder(ctx context.Context, ordered []Task) ([]Task, error)
}

// CategoryPatch is a partial category update.
type CategoryPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// CategoryRepository manages categories. TaskCount on returned categories
// must not be trusted by callers.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, c Category) (Category, error)
	Update(ctx context.Context, id string, patch CategoryPatch) (Category, error)
	Delete(ctx context.Context, id string) (bool, error)
}
