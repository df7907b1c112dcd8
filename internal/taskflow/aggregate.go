package taskflow

import "github.com/colonyops/taskflow/internal/core/task"

// Stats summarises completion across all tasks.
type Stats struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent is the rounded share of completed tasks, 0 when there are none.
func (s Stats) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return (s.Completed*100 + s.Total/2) / s.Total
}

// Aggregates holds values derived from the task list.
type Aggregates struct {
	// Counts maps category name to the number of open tasks in it.
	Counts map[string]int
	Stats  Stats
}

// Aggregate derives per-category open counts and completion stats. Every
// listed category gets an entry; tasks in unlisted categories count toward
// Stats only.
func Aggregate(tasks []task.Task, categories []string) Aggregates {
	counts := make(map[string]int, len(categories))
	for _, name := range categories {
		counts[name] = 0
	}

	var stats Stats
	for _, t := range tasks {
		stats.Total++
		if t.Completed {
			stats.Completed++
			continue
		}
		if _, ok := counts[t.Category]; ok {
			counts[t.Category]++
		}
	}

	return Aggregates{Counts: counts, Stats: stats}
}
