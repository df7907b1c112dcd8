package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Task is a row of the tasks table.
type Task struct {
	ID          string
	Title       string
	Description string
	Category    string
	Priority    string
	DueDate     string
	Completed   int64
	Position    int64
	CreatedAt   int64
	UpdatedAt   int64
}

// Category is a row of the categories table.
type Category struct {
	ID        string
	Name      string
	Color     string
	CreatedAt int64
}

const taskColumns = `id, title, description, category, priority, due_date, completed, position, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var i Task
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Category,
		&i.Priority,
		&i.DueDate,
		&i.Completed,
		&i.Position,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTasks = `SELECT ` + taskColumns + ` FROM tasks ORDER BY position ASC, created_at ASC`

func (q *Queries) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, listTasks)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []Task
	for rows.Next() {
		i, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTask = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

func (q *Queries) GetTask(ctx context.Context, id string) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, getTask, id))
}

const countTasks = `SELECT COUNT(*) FROM tasks`

func (q *Queries) CountTasks(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countTasks).Scan(&count)
	return count, err
}

const createTask = `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateTaskParams struct {
	ID          string
	Title       string
	Description string
	Category    string
	Priority    string
	DueDate     string
	Completed   int64
	Position    int64
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *Queries) CreateTask(ctx context.Context, arg CreateTaskParams) error {
	_, err := q.db.ExecContext(ctx, createTask,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Category,
		arg.Priority,
		arg.DueDate,
		arg.Completed,
		arg.Position,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateTask = `UPDATE tasks
SET title = ?, description = ?, category = ?, priority = ?, due_date = ?, completed = ?, updated_at = ?
WHERE id = ?`

type UpdateTaskParams struct {
	Title       string
	Description string
	Category    string
	Priority    string
	DueDate     string
	Completed   int64
	UpdatedAt   int64
	ID          string
}

func (q *Queries) UpdateTask(ctx context.Context, arg UpdateTaskParams) error {
	_, err := q.db.ExecContext(ctx, updateTask,
		arg.Title,
		arg.Description,
		arg.Category,
		arg.Priority,
		arg.DueDate,
		arg.Completed,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const deleteTask = `DELETE FROM tasks WHERE id = ?`

func (q *Queries) DeleteTask(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTask, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setTaskPosition = `UPDATE tasks SET position = ?, updated_at = ? WHERE id = ?`

type SetTaskPositionParams struct {
	Position  int64
	UpdatedAt int64
	ID        string
}

func (q *Queries) SetTaskPosition(ctx context.Context, arg SetTaskPositionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setTaskPosition, arg.Position, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const openPositionGap = `UPDATE tasks SET position = position + 1 WHERE position >= ?`

// OpenPositionGap shifts every task at or after position down by one slot.
func (q *Queries) OpenPositionGap(ctx context.Context, position int64) error {
	_, err := q.db.ExecContext(ctx, openPositionGap, position)
	return err
}

const closePositionGap = `UPDATE tasks SET position = position - 1 WHERE position > ?`

// ClosePositionGap shifts every task after position up by one slot.
func (q *Queries) ClosePositionGap(ctx context.Context, position int64) error {
	_, err := q.db.ExecContext(ctx, closePositionGap, position)
	return err
}

const categoryColumns = `id, name, color, created_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.Color, &i.CreatedAt)
	return i, err
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories ORDER BY created_at ASC, rowid ASC`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []Category
	for rows.Next() {
		i, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id string) (Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
}

const countCategories = `SELECT COUNT(*) FROM categories`

func (q *Queries) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCategories).Scan(&count)
	return count, err
}

const createCategory = `INSERT INTO categories (` + categoryColumns + `) VALUES (?, ?, ?, ?)`

type CreateCategoryParams struct {
	ID        string
	Name      string
	Color     string
	CreatedAt int64
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.Name, arg.Color, arg.CreatedAt)
	return err
}

const updateCategory = `UPDATE categories SET name = ?, color = ? WHERE id = ?`

type UpdateCategoryParams struct {
	Name  string
	Color string
	ID    string
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) error {
	_, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Color, arg.ID)
	return err
}

const renameTaskCategory = `UPDATE tasks SET category = ? WHERE category = ?`

type RenameTaskCategoryParams struct {
	NewName string
	OldName string
}

func (q *Queries) RenameTaskCategory(ctx context.Context, arg RenameTaskCategoryParams) error {
	_, err := q.db.ExecContext(ctx, renameTaskCategory, arg.NewName, arg.OldName)
	return err
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
