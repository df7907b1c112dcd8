// Package eventbus provides a typed publish/subscribe event bus that carries
// the sync engine's signals to whatever presents them.
package eventbus

import (
	"github.com/colonyops/taskflow/internal/core/notify"
	"github.com/colonyops/taskflow/internal/core/task"
)

// TaskCreatedPayload is emitted when a create is confirmed by the remote store.
type TaskCreatedPayload struct {
	Task task.Task
}

// TaskUpdatedPayload is emitted when an update is confirmed by the remote store.
type TaskUpdatedPayload struct {
	Task task.Task
}

// TaskDeletedPayload is emitted when a delete is confirmed by the remote store.
type TaskDeletedPayload struct {
	Task task.Task
}

// TaskCompletedPayload is emitted when a task flips from open to completed.
// Presentation layers use it to celebrate.
type TaskCompletedPayload struct {
	Task task.Task
}

// TaskReopenedPayload is emitted when a completed task is marked open again.
type TaskReopenedPayload struct {
	Task task.Task
}

// TaskSyncFailedPayload is emitted once for every mutation the remote store
// rejected. The local change has already been undone when it fires.
type TaskSyncFailedPayload struct {
	Op     string
	TaskID string
	Err    error
}

// TasksReloadedPayload is emitted after the task list was replaced wholesale.
type TasksReloadedPayload struct {
	Count int
}

// TasksReorderedPayload is emitted when a bulk reorder is confirmed.
type TasksReorderedPayload struct {
	IDs []string
}

// NotificationPublishedPayload carries a user-facing message.
type NotificationPublishedPayload struct {
	Level   notify.Level
	Message string
}
