// Package taskflow holds the task-collection sync engine: an in-memory
// working copy of the user's tasks that applies edits optimistically and
// reconciles them against a remote repository.
package taskflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/taskflow/internal/core/eventbus"
	"github.com/colonyops/taskflow/internal/core/logging"
	"github.com/colonyops/taskflow/internal/core/task"
)

// PlaceholderPrefix marks ids of tasks whose create is not yet confirmed.
const PlaceholderPrefix = "pending-"

// IsPlaceholder reports whether id was assigned locally to an unconfirmed create.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Options tunes engine defaults.
type Options struct {
	// DefaultCategory is used for drafts that name no category.
	DefaultCategory string
}

// Engine owns the working copy of the task list. All store access happens
// under one mutex; remote calls run on their own goroutines and re-take the
// lock to commit or roll back. Mutations on the same task id are applied
// one at a time, in the order they were issued.
type Engine struct {
	repo       task.Repository
	categories task.CategoryRepository
	bus        *eventbus.EventBus
	log        zerolog.Logger
	opts       Options

	mu       sync.Mutex
	store    *Store
	cats     []task.Category
	agg      Aggregates
	search   string
	category string
	lanes    *lanes
	states   map[string]State
	alias    map[string]string
	pending  map[*Op]struct{}
	closed   bool
}

// NewEngine creates an engine over the given repositories. A nil bus is
// replaced with one that is never started, so events are dropped.
func NewEngine(
	repo task.Repository,
	categories task.CategoryRepository,
	bus *eventbus.EventBus,
	log zerolog.Logger,
	opts Options,
) *Engine {
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = task.DefaultCategory
	}
	if bus == nil {
		bus = eventbus.New(1)
	}

	return &Engine{
		repo:       repo,
		categories: categories,
		bus:        bus,
		log:        log.With().Str("component", "sync-engine").Logger(),
		opts:       opts,
		store:      NewStore(),
		agg:        Aggregate(nil, nil),
		lanes:      newLanes(),
		states:     make(map[string]State),
		alias:      make(map[string]string),
		pending:    make(map[*Op]struct{}),
	}
}

// Load fetches tasks and categories and replaces the working copy with
// them. Category task counts from the remote are discarded.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return task.ErrClosed
	}

	tasks, cats, err := e.fetch(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("load failed")
		e.bus.PublishTaskSyncFailed(eventbus.TaskSyncFailedPayload{Op: eventbus.OpLoad, Err: err})
		return &SyncError{Op: eventbus.OpLoad, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return task.ErrClosed
	}
	e.replaceAll(tasks, cats)
	return nil
}

// Create validates draft, appends an optimistic task under a placeholder id
// and sends the create to the remote. Invalid drafts return ErrInvalid and
// leave the store untouched.
func (e *Engine) Create(ctx context.Context, draft task.Draft) (*Op, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	draft = draft.WithDefaults(e.opts.DefaultCategory)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, task.ErrClosed
	}

	placeholder := PlaceholderPrefix + uuid.NewString()
	position := e.store.Len()
	optimistic := task.Task{
		ID:          placeholder,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
		CreatedAt:   time.Now(),
		Order:       position,
	}
	if err := e.store.Insert(optimistic); err != nil {
		return nil, fmt.Errorf("insert optimistic task: %w", err)
	}
	draft.Order = &position

	op := newOp(eventbus.OpCreate, placeholder)
	op.apply(placeholder, optimistic)
	e.pending[op] = struct{}{}
	e.states[placeholder] = Pending
	e.recompute()

	ctx = logging.WithOp(logging.WithTaskID(ctx, placeholder), eventbus.OpCreate)
	e.log.Debug().Ctx(ctx).Int("position", position).Msg("applied optimistic create")

	e.lanes.enter(placeholder, func() {
		go func() {
			created, err := e.repo.Create(ctx, draft)
			e.settleCreate(ctx, op, optimistic, created, err)
		}()
	})
	return op, nil
}

func (e *Engine) settleCreate(ctx context.Context, op *Op, optimistic, created task.Task, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || op.settled() {
		e.log.Debug().Ctx(ctx).Msg("dropping late create result")
		return
	}

	placeholder := optimistic.ID
	if err != nil {
		e.store.Remove(placeholder)
		e.states[placeholder] = RolledBack
		e.recompute()
		e.log.Warn().Ctx(ctx).Err(err).Msg("create rejected, removed optimistic task")
		e.fail(op, placeholder, err)
		e.lanes.leave(placeholder)
		return
	}

	created.CreatedAt = optimistic.CreatedAt
	switch err := e.store.Replace(placeholder, created); {
	case err == nil:
	case errors.Is(err, ErrDuplicateID):
		// A reload already brought the server record in.
		e.store.Remove(placeholder)
	default:
		// The placeholder was dropped by a reload that predates the create.
		_ = e.store.Insert(created)
	}

	e.alias[placeholder] = created.ID
	delete(e.states, placeholder)
	e.states[created.ID] = Committed

	final, _ := e.store.Get(created.ID)
	op.apply(created.ID, final)
	e.recompute()
	e.commit(op, final)
	e.bus.PublishTaskCreated(eventbus.TaskCreatedPayload{Task: final})
	e.log.Debug().Ctx(ctx).Str("server_id", created.ID).Msg("create committed")

	if e.lanes.rename(placeholder, created.ID) {
		e.lanes.leave(created.ID)
	}
}

// Update applies patch to the task optimistically and sends it to the
// remote. Unknown ids return ErrNotFound and invalid patches ErrInvalid,
// both without touching the store.
func (e *Engine) Update(ctx context.Context, id string, patch task.Patch) (*Op, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return e.mutate(ctx, eventbus.OpUpdate, id, func(task.Task) task.Patch { return patch })
}

// ToggleComplete flips the task's completion. The new value is computed
// from the task as it stands when the op runs, not when it was queued.
func (e *Engine) ToggleComplete(ctx context.Context, id string) (*Op, error) {
	return e.mutate(ctx, eventbus.OpToggle, id, func(cur task.Task) task.Patch {
		return task.Patch{Completed: task.Ptr(!cur.Completed)}
	})
}

func (e *Engine) mutate(ctx context.Context, kind, id string, build func(task.Task) task.Patch) (*Op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, task.ErrClosed
	}

	id = e.resolve(id)
	if _, ok := e.store.Get(id); !ok {
		return nil, task.ErrNotFound
	}

	op := newOp(kind, id)
	e.pending[op] = struct{}{}
	e.lanes.enter(id, func() { e.applyUpdate(ctx, op, build) })
	return op, nil
}

func (e *Engine) applyUpdate(ctx context.Context, op *Op, build func(task.Task) task.Patch) {
	id := e.resolve(op.TaskID())
	prev, ok := e.store.Get(id)
	if !ok {
		e.abandon(op, id)
		return
	}
	prevIdx := e.store.Index(id)

	patch := build(prev)
	next := patch.Apply(prev)
	next.ID, next.CreatedAt = prev.ID, prev.CreatedAt
	_ = e.store.Replace(id, next)
	if patch.Order != nil {
		e.store.Move(prevIdx, min(*patch.Order, e.store.Len()-1))
	}

	optimistic, _ := e.store.Get(id)
	op.apply(id, optimistic)
	e.states[id] = Pending
	e.recompute()

	ctx = logging.WithOp(logging.WithTaskID(ctx, id), op.kind)
	e.log.Debug().Ctx(ctx).Msg("applied optimistic update")

	go func() {
		updated, err := e.repo.Update(ctx, id, patch)
		e.settleUpdate(ctx, op, prev, prevIdx, patch.Order != nil, updated, err)
	}()
}

// settleUpdate commits or rolls back an update. Position is only restored
// when the patch moved the task; a reorder issued meanwhile keeps its place.
func (e *Engine) settleUpdate(ctx context.Context, op *Op, prev task.Task, prevIdx int, moved bool, updated task.Task, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || op.settled() {
		e.log.Debug().Ctx(ctx).Msg("dropping late update result")
		return
	}

	id := prev.ID
	if err != nil {
		if idx := e.store.Index(id); idx >= 0 {
			_ = e.store.Replace(id, prev)
			if moved {
				e.store.Move(idx, min(prevIdx, e.store.Len()-1))
			}
		}
		e.states[id] = RolledBack
		e.recompute()
		e.log.Warn().Ctx(ctx).Err(err).Msg("update rejected, restored previous task")

		restored, ok := e.store.Get(id)
		if !ok {
			restored = prev
		}
		op.apply(id, restored)
		e.fail(op, id, err)
		e.lanes.leave(id)
		return
	}

	updated.ID = id
	if !updated.CreatedAt.Equal(prev.CreatedAt) {
		updated.CreatedAt = prev.CreatedAt
	}
	if err := e.store.Replace(id, updated); err != nil {
		e.log.Debug().Ctx(ctx).Err(err).Msg("task left the store before its update committed")
	}

	final, ok := e.store.Get(id)
	if !ok {
		final = updated
	}
	e.states[id] = Committed
	e.recompute()
	e.commit(op, final)

	switch {
	case op.kind != eventbus.OpToggle:
		e.bus.PublishTaskUpdated(eventbus.TaskUpdatedPayload{Task: final})
	case final.Completed && !prev.Completed:
		e.bus.PublishTaskCompleted(eventbus.TaskCompletedPayload{Task: final})
	case !final.Completed && prev.Completed:
		e.bus.PublishTaskReopened(eventbus.TaskReopenedPayload{Task: final})
	}

	e.lanes.leave(id)
}

// Delete removes the task optimistically and sends the delete to the
// remote. On failure the task returns to its former position.
func (e *Engine) Delete(ctx context.Context, id string) (*Op, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, task.ErrClosed
	}

	id = e.resolve(id)
	if _, ok := e.store.Get(id); !ok {
		return nil, task.ErrNotFound
	}

	op := newOp(eventbus.OpDelete, id)
	e.pending[op] = struct{}{}
	e.lanes.enter(id, func() { e.applyDelete(ctx, op) })
	return op, nil
}

func (e *Engine) applyDelete(ctx context.Context, op *Op) {
	id := e.resolve(op.TaskID())
	removed, idx, ok := e.store.Remove(id)
	if !ok {
		e.abandon(op, id)
		return
	}
	op.apply(id, removed)
	e.states[id] = Pending
	e.recompute()

	ctx = logging.WithOp(logging.WithTaskID(ctx, id), eventbus.OpDelete)
	e.log.Debug().Ctx(ctx).Int("index", idx).Msg("applied optimistic delete")

	go func() {
		_, err := e.repo.Delete(ctx, id)
		e.settleDelete(ctx, op, removed, idx, err)
	}()
}

func (e *Engine) settleDelete(ctx context.Context, op *Op, removed task.Task, idx int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || op.settled() {
		e.log.Debug().Ctx(ctx).Msg("dropping late delete result")
		return
	}

	id := removed.ID
	if err != nil {
		if _, present := e.store.Get(id); !present {
			_ = e.store.InsertAt(idx, removed)
		}
		e.states[id] = RolledBack
		e.recompute()
		e.log.Warn().Ctx(ctx).Err(err).Msg("delete rejected, restored task")

		restored, _ := e.store.Get(id)
		op.apply(id, restored)
		e.fail(op, id, err)
		e.lanes.leave(id)
		return
	}

	if _, _, back := e.store.Remove(id); back {
		// A reload issued before the remote delete landed brought it back.
		e.log.Debug().Ctx(ctx).Msg("removed task restored by reload")
	}
	e.states[id] = Committed
	e.recompute()
	e.commit(op, removed)
	e.bus.PublishTaskDeleted(eventbus.TaskDeletedPayload{Task: removed})
	e.lanes.leave(id)
}

// Close ends the session. Pending ops settle as RolledBack with ErrClosed, later
// mutations return ErrClosed, and remote results that arrive afterwards
// are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true

	for op := range e.pending {
		op.finish(op.Task(), RolledBack, task.ErrClosed)
	}
	clear(e.pending)
	e.log.Debug().Msg("engine closed")
}

// State reports the sync state of a task id. Placeholder ids of committed
// creates resolve to the server id.
func (e *Engine) State(id string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[e.resolve(id)]
}

// Tasks returns every task in order.
func (e *Engine) Tasks() []task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.All()
}

// VisibleTasks applies the current search and category selection to the
// task list. It is recomputed on every call.
func (e *Engine) VisibleTasks() []task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Filter(e.store.tasks, e.search, e.category)
}

// Categories returns the known categories with locally computed counts.
func (e *Engine) Categories() []task.Category {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]task.Category, len(e.cats))
	for i, c := range e.cats {
		c.TaskCount = e.agg.Counts[c.Name]
		out[i] = c
	}
	return out
}

// CategoryCounts maps category name to its number of open tasks.
func (e *Engine) CategoryCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.agg.Counts)
}

func (e *Engine) CompletionStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Stats
}

func (e *Engine) SetSearch(search string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = search
}

// SetCategory narrows VisibleTasks to one category; "" selects all.
func (e *Engine) SetCategory(category string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.category = category
}

func (e *Engine) fetch(ctx context.Context) ([]task.Task, []task.Category, error) {
	var (
		tasks []task.Task
		cats  []task.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = e.repo.List(gctx)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = e.categories.List(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return tasks, cats, nil
}

// replaceAll swaps in a freshly fetched collection. Caller holds e.mu.
func (e *Engine) replaceAll(tasks []task.Task, cats []task.Category) {
	e.store.ReplaceAll(tasks)
	e.cats = slices.Clone(cats)
	for i := range e.cats {
		e.cats[i].TaskCount = 0
	}
	e.recompute()
	e.bus.PublishTasksReloaded(eventbus.TasksReloadedPayload{Count: e.store.Len()})
	e.log.Debug().Int("tasks", e.store.Len()).Int("categories", len(e.cats)).Msg("working copy replaced")
}

func (e *Engine) recompute() {
	names := make([]string, len(e.cats))
	for i, c := range e.cats {
		names[i] = c.Name
	}
	e.agg = Aggregate(e.store.tasks, names)
}

func (e *Engine) resolve(id string) string {
	if server, ok := e.alias[id]; ok {
		return server
	}
	return id
}

func (e *Engine) commit(op *Op, t task.Task) {
	delete(e.pending, op)
	op.finish(t, Committed, nil)
}

// fail settles op with a SyncError and publishes the failure once.
func (e *Engine) fail(op *Op, id string, err error) {
	delete(e.pending, op)
	serr := &SyncError{Op: op.kind, TaskID: id, Err: err}
	if op.finish(op.Task(), RolledBack, serr) {
		e.bus.PublishTaskSyncFailed(eventbus.TaskSyncFailedPayload{Op: op.kind, TaskID: id, Err: err})
	}
}

// abandon settles a queued op whose task disappeared before it could run.
// Nothing was applied, so no failure is published.
func (e *Engine) abandon(op *Op, laneID string) {
	delete(e.pending, op)
	op.finish(task.Task{}, RolledBack, task.ErrNotFound)
	e.lanes.leave(laneID)
}
