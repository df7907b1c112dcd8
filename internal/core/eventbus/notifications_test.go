package eventbus_test

import (
	"errors"
	"testing"
	"time"

	"github.com/colonyops/taskflow/internal/core/eventbus"
	"github.com/colonyops/taskflow/internal/core/eventbus/testbus"
	"github.com/colonyops/taskflow/internal/core/notify"
	"github.com/colonyops/taskflow/internal/core/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func latestNotificationPayload(tb *testbus.Bus, t *testing.T) eventbus.NotificationPublishedPayload {
	t.Helper()
	tb.AssertPublished(t, eventbus.EventNotificationPublished)

	var payload eventbus.NotificationPublishedPayload
	for _, e := range tb.Events() {
		if e.Event != eventbus.EventNotificationPublished {
			continue
		}
		p, ok := e.Payload.(eventbus.NotificationPublishedPayload)
		require.True(t, ok)
		payload = p
	}

	return payload
}

func TestNotificationRouter_TaskCompleted_celebrates(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishTaskCompleted(eventbus.TaskCompletedPayload{Task: task.Task{Title: "File taxes"}})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, notify.LevelSuccess, p.Level)
	assert.Contains(t, p.Message, "Great job")
	assert.Contains(t, p.Message, "File taxes")
}

func TestNotificationRouter_TaskReopened_isNeutral(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishTaskReopened(eventbus.TaskReopenedPayload{Task: task.Task{Title: "Laundry"}})
	p := latestNotificationPayload(tb, t)

	assert.Equal(t, notify.LevelInfo, p.Level)
	assert.Contains(t, p.Message, "incomplete")
}

func TestNotificationRouter_SyncFailed(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{eventbus.OpCreate, "Failed to create task"},
		{eventbus.OpDelete, "Failed to delete task"},
		{eventbus.OpToggle, "Failed to update task"},
		{eventbus.OpReorder, "Failed to save task order"},
		{eventbus.OpLoad, "Failed to load tasks"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			tb := testbus.New(t)
			eventbus.NewNotificationRouter(tb.EventBus).Register()

			tb.PublishTaskSyncFailed(eventbus.TaskSyncFailedPayload{Op: tt.op, Err: errors.New("remote down")})
			p := latestNotificationPayload(tb, t)

			assert.Equal(t, notify.LevelError, p.Level)
			assert.Equal(t, tt.want, p.Message)
		})
	}
}

func TestNotificationRouter_Reloaded_doesNotPublish(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewNotificationRouter(tb.EventBus).Register()

	tb.PublishTasksReloaded(eventbus.TasksReloadedPayload{Count: 4})
	tb.AssertNotPublished(t, eventbus.EventNotificationPublished, 100*time.Millisecond)
}
