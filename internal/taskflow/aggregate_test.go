package taskflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/taskflow/internal/core/task"
)

func TestAggregate(t *testing.T) {
	tasks := []task.Task{
		{ID: "1", Category: "Work"},
		{ID: "2", Category: "Work", Completed: true},
		{ID: "3", Category: "Home"},
		{ID: "4", Category: "Garden"},
	}

	agg := Aggregate(tasks, []string{"Work", "Home", "Shopping"})

	assert.Equal(t, map[string]int{"Work": 1, "Home": 1, "Shopping": 0}, agg.Counts)
	assert.Equal(t, Stats{Completed: 1, Total: 4}, agg.Stats)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil, nil)
	assert.Empty(t, agg.Counts)
	assert.Equal(t, Stats{}, agg.Stats)
	assert.Equal(t, 0, agg.Stats.Percent())
}

func TestStats_Percent(t *testing.T) {
	tests := []struct {
		stats Stats
		want  int
	}{
		{Stats{Completed: 0, Total: 0}, 0},
		{Stats{Completed: 0, Total: 4}, 0},
		{Stats{Completed: 1, Total: 3}, 33},
		{Stats{Completed: 2, Total: 3}, 67},
		{Stats{Completed: 1, Total: 2}, 50},
		{Stats{Completed: 5, Total: 5}, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stats.Percent(), "%d/%d", tt.stats.Completed, tt.stats.Total)
	}
}
