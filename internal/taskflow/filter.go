package taskflow

import (
	"strings"

	"github.com/colonyops/taskflow/internal/core/task"
)

// Filter returns the tasks whose title or description contains search
// (case-insensitive) and whose category equals category. Empty values
// match everything. Input order is preserved.
func Filter(tasks []task.Task, search, category string) []task.Task {
	needle := strings.ToLower(search)

	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if category != "" && t.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}
