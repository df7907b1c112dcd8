package eventbus

import (
	"fmt"

	"github.com/colonyops/taskflow/internal/core/notify"
)

// Operation names carried in TaskSyncFailedPayload.Op.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpToggle  = "toggle"
	OpDelete  = "delete"
	OpReorder = "reorder"
	OpLoad    = "load"
)

// NotificationRouter maps domain events to user-facing notifications.
type NotificationRouter struct {
	bus *EventBus
}

// NewNotificationRouter constructs a router for event-to-notification mappings.
func NewNotificationRouter(bus *EventBus) *NotificationRouter {
	return &NotificationRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *NotificationRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeTaskCreated(func(p TaskCreatedPayload) {
		r.notifyf(notify.LevelSuccess, "Task %q created", p.Task.Title)
	})

	r.bus.SubscribeTaskUpdated(func(p TaskUpdatedPayload) {
		r.notifyf(notify.LevelSuccess, "Task %q updated", p.Task.Title)
	})

	r.bus.SubscribeTaskDeleted(func(p TaskDeletedPayload) {
		r.notifyf(notify.LevelSuccess, "Task %q deleted", p.Task.Title)
	})

	r.bus.SubscribeTaskCompleted(func(p TaskCompletedPayload) {
		r.notifyf(notify.LevelSuccess, "Task completed! Great job! %q is done", p.Task.Title)
	})

	r.bus.SubscribeTaskReopened(func(p TaskReopenedPayload) {
		r.notifyf(notify.LevelInfo, "Task %q marked as incomplete", p.Task.Title)
	})

	r.bus.SubscribeTaskSyncFailed(func(p TaskSyncFailedPayload) {
		r.notifyf(notify.LevelError, "%s", failureMessage(p.Op))
	})
}

func failureMessage(op string) string {
	switch op {
	case OpReorder:
		return "Failed to save task order"
	case OpLoad:
		return "Failed to load tasks"
	case OpToggle:
		return "Failed to update task"
	case "":
		return "Task sync failed"
	default:
		return fmt.Sprintf("Failed to %s task", op)
	}
}

func (r *NotificationRouter) notifyf(level notify.Level, format string, args ...any) {
	r.bus.PublishNotificationPublished(NotificationPublishedPayload{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
