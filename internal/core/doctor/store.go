package doctor

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/colonyops/taskflow/internal/core/task"
)

// StoreCheck inspects the task repository: that it answers, that positions
// are dense, and that every task names a known category.
type StoreCheck struct {
	tasks      task.Repository
	categories task.CategoryRepository
	autofix    bool
}

// NewStoreCheck creates a store check. With autofix, gaps in task positions
// are closed by re-saving the current order.
func NewStoreCheck(tasks task.Repository, categories task.CategoryRepository, autofix bool) *StoreCheck {
	return &StoreCheck{tasks: tasks, categories: categories, autofix: autofix}
}

func (c *StoreCheck) Name() string {
	return "Task Store"
}

func (c *StoreCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	tasks, err := c.tasks.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "tasks", Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "tasks",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d stored", len(tasks)),
	})

	result.Items = append(result.Items, c.checkOrder(ctx, tasks))

	cats, err := c.categories.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: "categories", Status: StatusFail, Detail: err.Error()})
		return result
	}
	result.Items = append(result.Items, checkCategories(tasks, cats))

	return result
}

func (c *StoreCheck) checkOrder(ctx context.Context, tasks []task.Task) CheckItem {
	item := CheckItem{Label: "task order", Status: StatusPass, Detail: "positions are contiguous"}
	if denseOrder(tasks) {
		return item
	}

	if c.autofix {
		if _, err := c.tasks.Reorder(ctx, tasks); err != nil {
			item.Status = StatusFail
			item.Detail = fmt.Sprintf("renumber failed: %v", err)
			return item
		}
		item.Detail = "renumbered positions"
		return item
	}

	item.Status = StatusWarn
	item.Detail = "positions have gaps or repeats"
	item.Fixable = true
	return item
}

// denseOrder reports whether the tasks, as listed, hold positions 0..n-1.
func denseOrder(tasks []task.Task) bool {
	for i, t := range tasks {
		if t.Order != i {
			return false
		}
	}
	return true
}

func checkCategories(tasks []task.Task, cats []task.Category) CheckItem {
	known := make(map[string]bool, len(cats))
	for _, c := range cats {
		known[c.Name] = true
	}

	var unknown []string
	for _, t := range tasks {
		if !known[t.Category] && !slices.Contains(unknown, t.Category) {
			unknown = append(unknown, t.Category)
		}
	}

	if len(unknown) == 0 {
		return CheckItem{Label: "categories", Status: StatusPass, Detail: fmt.Sprintf("%d defined", len(cats))}
	}
	return CheckItem{
		Label:  "categories",
		Status: StatusWarn,
		Detail: "tasks use undefined categories: " + strings.Join(unknown, ", "),
	}
}
