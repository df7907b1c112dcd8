package eventbus

import (
	"slices"
	"sync"
)

// hooks are observers of the bus itself rather than of any one event.
// They run on the goroutine that triggered them.
type hooks struct {
	mu          sync.RWMutex
	onPublish   []func(Event, any)
	onDrop      []func(Event, any)
	onSubscribe []func(Event)
	onPanic     []func(Event, any, any)
}

// snapshot copies a hook list under the read lock so hooks can run unlocked
// and register further hooks without deadlocking.
func snapshot[F any](h *hooks, list *[]F) []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(*list)
}

func register[F any](h *hooks, list *[]F, fn F) {
	h.mu.Lock()
	*list = append(*list, fn)
	h.mu.Unlock()
}

// OnPublish runs fn after an event is queued.
func (bus *EventBus) OnPublish(fn func(Event, any)) {
	register(&bus.hooks, &bus.hooks.onPublish, fn)
}

// OnDrop runs fn when an event is discarded because the queue is full.
func (bus *EventBus) OnDrop(fn func(Event, any)) {
	register(&bus.hooks, &bus.hooks.onDrop, fn)
}

// OnSubscribe runs fn after a subscriber is added.
func (bus *EventBus) OnSubscribe(fn func(Event)) {
	register(&bus.hooks, &bus.hooks.onSubscribe, fn)
}

// OnPanic runs fn with the recovered value when a subscriber panics.
// A panicking OnPanic hook is swallowed.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) {
	register(&bus.hooks, &bus.hooks.onPanic, fn)
}

// send queues an event without blocking the publisher.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		for _, fn := range snapshot(&bus.hooks, &bus.hooks.onPublish) {
			fn(event, payload)
		}
	default:
		for _, fn := range snapshot(&bus.hooks, &bus.hooks.onDrop) {
			fn(event, payload)
		}
	}
}

func (bus *EventBus) runOnSubscribe(event Event) {
	for _, fn := range snapshot(&bus.hooks, &bus.hooks.onSubscribe) {
		fn(event)
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	for _, fn := range snapshot(&bus.hooks, &bus.hooks.onPanic) {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(event, payload, recovered)
		}()
	}
}
