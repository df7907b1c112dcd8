package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/colonyops/taskflow/internal/data/db"
	"github.com/colonyops/taskflow/pkg/randid"
)

// TaskStore implements task.Repository using SQLite. Positions are kept
// dense: every write that changes membership shifts its neighbours.
type TaskStore struct {
	db *db.DB
}

var _ task.Repository = (*TaskStore)(nil)

// NewTaskStore creates a new SQLite-backed task store.
func NewTaskStore(db *db.DB) *TaskStore {
	return &TaskStore{db: db}
}

// List returns every task ordered by position.
func (s *TaskStore) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.Queries().ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, rowToTask(row))
	}
	return tasks, nil
}

// Create persists a new task. A nil Order appends; an explicit Order inserts
// at that position, clamped to the current bounds.
func (s *TaskStore) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := draft.Validate(); err != nil {
		return task.Task{}, err
	}
	draft = draft.WithDefaults(task.DefaultCategory)

	id := randid.Generate(10)
	now := time.Now()

	var created db.Task
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		count, err := q.CountTasks(ctx)
		if err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}

		position := count
		if draft.Order != nil && int64(*draft.Order) < count {
			position = int64(max(*draft.Order, 0))
			if err := q.OpenPositionGap(ctx, position); err != nil {
				return fmt.Errorf("shift positions: %w", err)
			}
		}

		err = q.CreateTask(ctx, db.CreateTaskParams{
			ID:          id,
			Title:       draft.Title,
			Description: draft.Description,
			Category:    draft.Category,
			Priority:    string(draft.Priority),
			DueDate:     draft.DueDate,
			Position:    position,
			CreatedAt:   now.UnixNano(),
			UpdatedAt:   now.UnixNano(),
		})
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		created, err = q.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}

	return rowToTask(created), nil
}

// Update applies a partial update. A set Order moves the task to that
// position and shifts the tasks in between.
func (s *TaskStore) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if err := patch.Validate(); err != nil {
		return task.Task{}, err
	}

	var updated db.Task
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		row, err := q.GetTask(ctx, id)
		if IsNotFoundError(err) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		next := patch.Apply(rowToTask(row))
		now := time.Now().UnixNano()

		err = q.UpdateTask(ctx, db.UpdateTaskParams{
			Title:       next.Title,
			Description: next.Description,
			Category:    next.Category,
			Priority:    string(next.Priority),
			DueDate:     next.DueDate,
			Completed:   boolToInt(next.Completed),
			UpdatedAt:   now,
			ID:          id,
		})
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if patch.Order != nil && int64(*patch.Order) != row.Position {
			if err := moveTask(ctx, q, row, int64(*patch.Order), now); err != nil {
				return err
			}
		}

		updated, err = q.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	return rowToTask(updated), nil
}

// Delete removes a task and closes the gap it leaves behind.
func (s *TaskStore) Delete(ctx context.Context, id string) (bool, error) {
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		row, err := q.GetTask(ctx, id)
		if IsNotFoundError(err) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		if _, err := q.DeleteTask(ctx, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return q.ClosePositionGap(ctx, row.Position)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reorder assigns each task the position of its index in ordered. The list
// must name every stored task exactly once; otherwise nothing is written.
func (s *TaskStore) Reorder(ctx context.Context, ordered []task.Task) ([]task.Task, error) {
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		count, err := q.CountTasks(ctx)
		if err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if int64(len(ordered)) != count {
			return fmt.Errorf("%w: reorder lists %d tasks, store has %d", task.ErrInvalid, len(ordered), count)
		}

		seen := make(map[string]bool, len(ordered))
		now := time.Now().UnixNano()
		for i, t := range ordered {
			if seen[t.ID] {
				return fmt.Errorf("%w: task %s listed twice", task.ErrInvalid, t.ID)
			}
			seen[t.ID] = true

			n, err := q.SetTaskPosition(ctx, db.SetTaskPositionParams{
				Position:  int64(i),
				UpdatedAt: now,
				ID:        t.ID,
			})
			if err != nil {
				return fmt.Errorf("set position for %s: %w", t.ID, err)
			}
			if n == 0 {
				return fmt.Errorf("task %s: %w", t.ID, task.ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.List(ctx)
}

// moveTask relocates row to target (clamped) by closing the gap at its old
// position and opening one at the new position.
func moveTask(ctx context.Context, q *db.Queries, row db.Task, target, now int64) error {
	count, err := q.CountTasks(ctx)
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	target = min(max(target, 0), count-1)
	if target == row.Position {
		return nil
	}

	// Park the row outside the dense range while neighbours shift.
	if _, err := q.SetTaskPosition(ctx, db.SetTaskPositionParams{Position: -1, UpdatedAt: now, ID: row.ID}); err != nil {
		return fmt.Errorf("park task: %w", err)
	}
	if err := q.ClosePositionGap(ctx, row.Position); err != nil {
		return fmt.Errorf("close gap: %w", err)
	}
	if err := q.OpenPositionGap(ctx, target); err != nil {
		return fmt.Errorf("open gap: %w", err)
	}
	if _, err := q.SetTaskPosition(ctx, db.SetTaskPositionParams{Position: target, UpdatedAt: now, ID: row.ID}); err != nil {
		return fmt.Errorf("place task: %w", err)
	}
	return nil
}

func rowToTask(row db.Task) task.Task {
	return task.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Category:    row.Category,
		Priority:    task.Priority(row.Priority),
		DueDate:     row.DueDate,
		Completed:   row.Completed != 0,
		CreatedAt:   time.Unix(0, row.CreatedAt),
		Order:       int(row.Position),
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
