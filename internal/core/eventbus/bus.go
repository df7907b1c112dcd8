package eventbus

import (
	"context"
	"sync"
)

// Event names a kind of event carried by the bus.
type Event string

const (
	EventNotificationPublished Event = "notification.published"
	EventTaskCompleted         Event = "task.completed"
	EventTaskCreated           Event = "task.created"
	EventTaskDeleted           Event = "task.deleted"
	EventTaskReopened          Event = "task.reopened"
	EventTaskSyncFailed        Event = "task.sync-failed"
	EventTaskUpdated           Event = "task.updated"
	EventTasksReloaded         Event = "tasks.reloaded"
	EventTasksReordered        Event = "tasks.reordered"
)

type envelope struct {
	event   Event
	payload any
	barrier chan struct{}
}

// EventBus delivers published events to subscribers on a single dispatch
// goroutine, in publish order. Publishing never blocks: when the buffer is
// full the event is dropped and OnDrop hooks fire.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size. Call Start to begin dispatch.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled. Events still buffered
// when ctx ends are discarded.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()

	bus.runOnSubscribe(event)
}

func (bus *EventBus) dispatch(env envelope) {
	if env.barrier != nil {
		close(env.barrier)
		return
	}

	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

// Sync blocks until every event published before the call, and every event
// those events' subscribers published in turn, has been dispatched. The bus
// must be started.
func (bus *EventBus) Sync(ctx context.Context) error {
	for {
		barrier := make(chan struct{})
		select {
		case bus.ch <- envelope{barrier: barrier}:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-barrier:
		case <-ctx.Done():
			return ctx.Err()
		}

		if len(bus.ch) == 0 {
			return nil
		}
	}
}

func subscribeTyped[T any](bus *EventBus, event Event, fn func(T)) {
	bus.subscribe(event, func(payload any) {
		if p, ok := payload.(T); ok {
			fn(p)
		}
	})
}

// PublishNotificationPublished publishes a user-facing notification.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished registers fn for notification.published.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	subscribeTyped(bus, EventNotificationPublished, fn)
}

// PublishTaskCompleted publishes task.completed.
func (bus *EventBus) PublishTaskCompleted(p TaskCompletedPayload) {
	bus.send(EventTaskCompleted, p)
}

// SubscribeTaskCompleted registers fn for task.completed.
func (bus *EventBus) SubscribeTaskCompleted(fn func(TaskCompletedPayload)) {
	subscribeTyped(bus, EventTaskCompleted, fn)
}

// PublishTaskCreated publishes task.created.
func (bus *EventBus) PublishTaskCreated(p TaskCreatedPayload) {
	bus.send(EventTaskCreated, p)
}

// SubscribeTaskCreated registers fn for task.created.
func (bus *EventBus) SubscribeTaskCreated(fn func(TaskCreatedPayload)) {
	subscribeTyped(bus, EventTaskCreated, fn)
}

// PublishTaskDeleted publishes task.deleted.
func (bus *EventBus) PublishTaskDeleted(p TaskDeletedPayload) {
	bus.send(EventTaskDeleted, p)
}

// SubscribeTaskDeleted registers fn for task.deleted.
func (bus *EventBus) SubscribeTaskDeleted(fn func(TaskDeletedPayload)) {
	subscribeTyped(bus, EventTaskDeleted, fn)
}

// PublishTaskReopened publishes task.reopened.
func (bus *EventBus) PublishTaskReopened(p TaskReopenedPayload) {
	bus.send(EventTaskReopened, p)
}

// SubscribeTaskReopened registers fn for task.reopened.
func (bus *EventBus) SubscribeTaskReopened(fn func(TaskReopenedPayload)) {
	subscribeTyped(bus, EventTaskReopened, fn)
}

// PublishTaskSyncFailed publishes task.sync-failed.
func (bus *EventBus) PublishTaskSyncFailed(p TaskSyncFailedPayload) {
	bus.send(EventTaskSyncFailed, p)
}

// SubscribeTaskSyncFailed registers fn for task.sync-failed.
func (bus *EventBus) SubscribeTaskSyncFailed(fn func(TaskSyncFailedPayload)) {
	subscribeTyped(bus, EventTaskSyncFailed, fn)
}

// PublishTaskUpdated publishes task.updated.
func (bus *EventBus) PublishTaskUpdated(p TaskUpdatedPayload) {
	bus.send(EventTaskUpdated, p)
}

// SubscribeTaskUpdated registers fn for task.updated.
func (bus *EventBus) SubscribeTaskUpdated(fn func(TaskUpdatedPayload)) {
	subscribeTyped(bus, EventTaskUpdated, fn)
}

// PublishTasksReloaded publishes tasks.reloaded.
func (bus *EventBus) PublishTasksReloaded(p TasksReloadedPayload) {
	bus.send(EventTasksReloaded, p)
}

// SubscribeTasksReloaded registers fn for tasks.reloaded.
func (bus *EventBus) SubscribeTasksReloaded(fn func(TasksReloadedPayload)) {
	subscribeTyped(bus, EventTasksReloaded, fn)
}

// PublishTasksReordered publishes tasks.reordered.
func (bus *EventBus) PublishTasksReordered(p TasksReorderedPayload) {
	bus.send(EventTasksReordered, p)
}

// SubscribeTasksReordered registers fn for tasks.reordered.
func (bus *EventBus) SubscribeTasksReordered(fn func(TasksReorderedPayload)) {
	subscribeTyped(bus, EventTasksReordered, fn)
}
