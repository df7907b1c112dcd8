package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/pkg/randid"
)

// CategoryStore implements task.CategoryRepository using SQLite.
// Task counts are not stored; returned categories always carry zero.
type CategoryStore struct {
	db *db.DB
}

var _ task.CategoryRepository = (*CategoryStore)(nil)

// NewCategoryStore creates a new SQLite-backed category store.
func NewCategoryStore(db *db.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// List returns all categories in creation order.
func (s *CategoryStore) List(ctx context.Context) ([]task.Category, error) {
	rows, err := s.db.Queries().ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]task.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, rowToCategory(row))
	}
	return categories, nil
}

// Create persists a new category. Returns ErrDuplicateCategory when the
// name is taken.
func (s *CategoryStore) Create(ctx context.Context, c task.Category) (task.Category, error) {
	if err := c.Validate(); err != nil {
		return task.Category{}, err
	}
	if c.ID == "" {
		c.ID = randid.Generate(8)
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Color == "" {
		c.Color = task.DefaultCategoryColor
	}

	err := s.db.Queries().CreateCategory(ctx, db.CreateCategoryParams{
		ID:        c.ID,
		Name:      c.Name,
		Color:     c.Color,
		CreatedAt: time.Now().UnixNano(),
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return task.Category{}, task.ErrDuplicateCategory
		}
		return task.Category{}, fmt.Errorf("create category: %w", err)
	}

	c.TaskCount = 0
	return c, nil
}

// Update renames or recolors a category. Renaming carries the category's
// tasks along in the same transaction.
func (s *CategoryStore) Update(ctx context.Context, id string, patch task.CategoryPatch) (task.Category, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return task.Category{}, fmt.Errorf("%w: name cannot be empty", task.ErrInvalid)
	}

	var updated db.Category
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		row, err := q.GetCategory(ctx, id)
		if IsNotFoundError(err) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get category: %w", err)
		}

		updated = row
		if patch.Name != nil {
			updated.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Color != nil {
			updated.Color = *patch.Color
		}

		err = q.UpdateCategory(ctx, db.UpdateCategoryParams{
			Name:  updated.Name,
			Color: updated.Color,
			ID:    id,
		})
		if err != nil {
			return err
		}

		if updated.Name != row.Name {
			return q.RenameTaskCategory(ctx, db.RenameTaskCategoryParams{
				NewName: updated.Name,
				OldName: row.Name,
			})
		}
		return nil
	})
	switch {
	case err == nil:
		return rowToCategory(updated), nil
	case errors.Is(err, task.ErrNotFound):
		return task.Category{}, err
	case isUniqueConstraintError(err):
		return task.Category{}, task.ErrDuplicateCategory
	default:
		return task.Category{}, fmt.Errorf("update category: %w", err)
	}
}

// Delete removes a category. Tasks filed under it keep their category name.
func (s *CategoryStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.db.Queries().DeleteCategory(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return false, task.ErrNotFound
	}
	return true, nil
}

// Seed inserts categories into an empty table. It reports how many were
// written; a table that already has rows is left alone.
func (s *CategoryStore) Seed(ctx context.Context, categories []task.Category) (int, error) {
	written := 0
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		count, err := q.CountCategories(ctx)
		if err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if count > 0 {
			return nil
		}

		// created_at drives list order, so space the rows out.
		base := time.Now().UnixNano()
		for i, c := range categories {
			if c.Color == "" {
				c.Color = task.DefaultCategoryColor
			}
			err := q.CreateCategory(ctx, db.CreateCategoryParams{
				ID:        randid.Generate(8),
				Name:      c.Name,
				Color:     c.Color,
				CreatedAt: base + int64(i),
			})
			if err != nil {
				return fmt.Errorf("seed category %q: %w", c.Name, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func rowToCategory(row db.Category) task.Category {
	return task.Category{
		ID:    row.ID,
		Name:  row.Name,
		Color: row.Color,
	}
}
