package taskflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/colonyops/taskflow/internal/core/eventbus"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/task"
)

// Move drags the task at index from to index to across the full list.
// Out of range indexes and from == to return an already committed op
// without contacting the remote.
func (e *Engine) Move(ctx context.Context, from, to int) (*Op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, task.ErrClosed
	}

	n := e.store.Len()
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return settledOp(eventbus.OpReorder), nil
	}

	ids := make([]string, n)
	for i, t := range e.store.tasks {
		ids[i] = t.ID
	}
	moved := ids[from]
	ids = slices.Delete(ids, from, from+1)
	ids = slices.Insert(ids, to, moved)

	return e.reorder(ctx, ids)
}

// Reorder arranges the working copy to match ordered, which must list
// every task exactly once, and persists the order with one bulk call.
// When the remote rejects it the whole list is reloaded.
func (e *Engine) Reorder(ctx context.Context, ordered []task.Task) (*Op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, task.ErrClosed
	}

	ids := make([]string, len(ordered))
	for i, t := range ordered {
		ids[i] = e.resolve(t.ID)
	}
	return e.reorder(ctx, ids)
}

// reorder applies ids to the store and starts the remote call. Caller
// holds e.mu.
func (e *Engine) reorder(ctx context.Context, ids []string) (*Op, error) {
	if err := e.store.Arrange(ids); err != nil {
		return nil, fmt.Errorf("%w: reorder must list every task exactly once", err)
	}
	e.recompute()

	op := newOp(eventbus.OpReorder, "")
	// The order is sent once the mutations already in flight have settled,
	// so placeholder ids have resolved and deletes have landed.
	var inflight []<-chan struct{}
	for other := range e.pending {
		inflight = append(inflight, other.Done())
	}
	e.pending[op] = struct{}{}

	ctx = logging.WithOp(ctx, eventbus.OpReorder)
	e.log.Debug().Ctx(ctx).Int("tasks", len(ids)).Int("waiting_on", len(inflight)).Msg("applied optimistic reorder")

	go e.persistOrder(ctx, op, inflight)
	return op, nil
}

func (e *Engine) persistOrder(ctx context.Context, op *Op, inflight []<-chan struct{}) {
	for _, done := range inflight {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	e.mu.Lock()
	if e.closed || op.settled() {
		e.mu.Unlock()
		return
	}
	ordered := make([]task.Task, 0, e.store.Len())
	for _, t := range e.store.tasks {
		if !IsPlaceholder(t.ID) {
			ordered = append(ordered, t)
		}
	}
	e.mu.Unlock()

	_, err := e.repo.Reorder(ctx, ordered)
	if err == nil {
		e.settleReorder(ctx, op, ordered)
		return
	}

	e.log.Warn().Ctx(ctx).Err(err).Msg("reorder rejected, reloading")
	tasks, cats, loadErr := e.fetch(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || op.settled() {
		e.log.Debug().Ctx(ctx).Msg("dropping late reorder result")
		return
	}
	if loadErr != nil {
		e.log.Error().Ctx(ctx).Err(loadErr).Msg("reload after failed reorder")
	} else {
		e.replaceAll(tasks, cats)
	}
	e.fail(op, "", err)
}

func (e *Engine) settleReorder(ctx context.Context, op *Op, ordered []task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || op.settled() {
		e.log.Debug().Ctx(ctx).Msg("dropping late reorder result")
		return
	}

	ids := make([]string, len(ordered))
	for i, t := range ordered {
		ids[i] = t.ID
	}
	e.commit(op, task.Task{})
	e.bus.PublishTasksReordered(eventbus.TasksReorderedPayload{IDs: ids})
}
