package taskflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/eventbus"
	"github.com/colonyops/taskflow/internal/core/eventbus/testbus"
	"github.com/colonyops/taskflow/internal/core/task"
)

var errRemote = errors.New("remote unavailable")

func seedTasks() []task.Task {
	return []task.Task{
		{ID: "a", Title: "Quarterly report", Category: "Work"},
		{ID: "b", Title: "Groceries", Description: "milk, eggs", Category: "Shopping"},
		{ID: "c", Title: "Report bug", Category: "Home"},
	}
}

func TestEngine_Load(t *testing.T) {
	repo := newFakeRepo(seedTasks()...)
	e, tb := newTestEngine(t, repo)

	assert.Equal(t, []string{"a", "b", "c"}, ids(e.Tasks()))
	assert.Equal(t, []int{0, 1, 2}, orders(e.Tasks()))
	assert.Equal(t, map[string]int{"Work": 1, "Home": 1, "Shopping": 1}, e.CategoryCounts())

	for _, c := range e.Categories() {
		assert.Equal(t, 1, c.TaskCount, "remote count for %s must be ignored", c.Name)
	}
	assert.Equal(t, Stats{Completed: 0, Total: 3}, e.CompletionStats())
	tb.AssertPublished(t, eventbus.EventTasksReloaded)
}

func TestEngine_LoadFailure(t *testing.T) {
	tb := testbus.New(t)
	cats := newFakeCategories("Work")
	cats.err = errRemote
	e := NewEngine(newFakeRepo(seedTasks()...), cats, tb.EventBus, zerolog.Nop(), Options{})
	defer e.Close()

	err := e.Load(context.Background())
	require.ErrorIs(t, err, errRemote)

	var serr *SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, eventbus.OpLoad, serr.Op)
	assert.Empty(t, e.Tasks())

	tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
	tb.AssertNotPublished(t, eventbus.EventTasksReloaded, 20*time.Millisecond)
}

func TestEngine_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("applies before the remote answers", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)

		op, err := e.Create(ctx, task.Draft{Title: "  Plan sprint  "})
		require.NoError(t, err)

		placeholder := op.TaskID()
		assert.True(t, IsPlaceholder(placeholder))
		assert.Equal(t, Pending, e.State(placeholder))

		all := e.Tasks()
		require.Len(t, all, 4)
		assert.Equal(t, placeholder, all[3].ID)
		assert.Equal(t, "Plan sprint", all[3].Title)
		assert.Equal(t, "Work", all[3].Category)
		assert.Equal(t, task.PriorityMedium, all[3].Priority)
		assert.Equal(t, 2, e.CategoryCounts()["Work"])

		call := repo.expect(t)
		assert.Equal(t, "create", call.Kind)
		require.NotNil(t, call.Draft.Order)
		assert.Equal(t, 3, *call.Draft.Order)
		call.Succeed()

		got, err := wait(t, op)
		require.NoError(t, err)
		assert.Equal(t, "srv-1", got.ID)
		assert.Equal(t, 3, got.Order)
		assert.Equal(t, Committed, op.State())
		assert.Equal(t, Committed, e.State(placeholder))
		assert.Equal(t, Committed, e.State("srv-1"))
		assert.Equal(t, []string{"a", "b", "c", "srv-1"}, ids(e.Tasks()))
		assert.Equal(t, []int{0, 1, 2, 3}, orders(e.Tasks()))

		tb.AssertPublished(t, eventbus.EventTaskCreated)
	})

	t.Run("keeps the local created at", func(t *testing.T) {
		repo := gatedRepo()
		e, _ := newTestEngine(t, repo)

		op, err := e.Create(ctx, task.Draft{Title: "x"})
		require.NoError(t, err)
		local := op.Task().CreatedAt

		repo.expect(t).Succeed()
		got, err := wait(t, op)
		require.NoError(t, err)
		assert.True(t, local.Equal(got.CreatedAt))
	})

	t.Run("invalid draft never reaches the store", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, _ := newTestEngine(t, repo)

		op, err := e.Create(ctx, task.Draft{Title: "   "})
		require.ErrorIs(t, err, task.ErrInvalid)
		assert.Nil(t, op)
		assert.Len(t, e.Tasks(), 3)
		repo.expectNone(t)
	})

	t.Run("failure removes the optimistic task", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)
		before := e.Tasks()

		op, err := e.Create(ctx, task.Draft{Title: "Doomed", Category: "Home"})
		require.NoError(t, err)
		assert.Equal(t, 2, e.CategoryCounts()["Home"])

		repo.expect(t).Fail(errRemote)

		_, err = wait(t, op)
		require.ErrorIs(t, err, errRemote)
		var serr *SyncError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, eventbus.OpCreate, serr.Op)

		assert.Equal(t, before, e.Tasks())
		assert.Equal(t, 1, e.CategoryCounts()["Home"])
		assert.Equal(t, RolledBack, e.State(op.TaskID()))

		tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
		assert.Equal(t, 1, tb.Count(eventbus.EventTaskSyncFailed))
		tb.AssertNotPublished(t, eventbus.EventTaskCreated, 20*time.Millisecond)
	})
}

func TestEngine_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("commits the server record", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)

		op, err := e.Update(ctx, "b", task.Patch{Title: task.Ptr("Groceries and bread"), Category: task.Ptr("Home")})
		require.NoError(t, err)

		got, ok := e.getTask("b")
		require.True(t, ok)
		assert.Equal(t, "Groceries and bread", got.Title)
		assert.Equal(t, Pending, e.State("b"))
		assert.Equal(t, 2, e.CategoryCounts()["Home"])
		assert.Equal(t, 0, e.CategoryCounts()["Shopping"])

		call := repo.expect(t)
		assert.Equal(t, "b", call.ID)
		call.Succeed()

		final, err := wait(t, op)
		require.NoError(t, err)
		assert.Equal(t, "Groceries and bread", final.Title)
		assert.Equal(t, 1, final.Order)
		assert.Equal(t, Committed, e.State("b"))
		tb.AssertPublished(t, eventbus.EventTaskUpdated)
	})

	t.Run("failure restores the previous record exactly", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)
		before := e.Tasks()

		op, err := e.Update(ctx, "a", task.Patch{
			Title:     task.Ptr("Changed"),
			Completed: task.Ptr(true),
			Priority:  task.Ptr(task.PriorityHigh),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, e.CategoryCounts()["Work"])

		repo.expect(t).Fail(errRemote)
		_, err = wait(t, op)
		require.ErrorIs(t, err, errRemote)

		assert.Equal(t, before, e.Tasks())
		assert.Equal(t, 1, e.CategoryCounts()["Work"])
		assert.Equal(t, RolledBack, e.State("a"))
		assert.Equal(t, before[0], op.Task())

		tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
		assert.Equal(t, 1, tb.Count(eventbus.EventTaskSyncFailed))
	})

	t.Run("order patch moves the task and rolls back", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, _ := newTestEngine(t, repo)

		op, err := e.Update(ctx, "a", task.Patch{Order: task.Ptr(2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "a"}, ids(e.Tasks()))
		assert.Equal(t, []int{0, 1, 2}, orders(e.Tasks()))

		repo.expect(t).Fail(errRemote)
		_, err = wait(t, op)
		require.Error(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(e.Tasks()))
		assert.Equal(t, []int{0, 1, 2}, orders(e.Tasks()))
	})

	t.Run("unknown id", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, _ := newTestEngine(t, repo)

		_, err := e.Update(ctx, "zzz", task.Patch{Title: task.Ptr("x")})
		assert.ErrorIs(t, err, task.ErrNotFound)
		repo.expectNone(t)
	})

	t.Run("invalid patch", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, _ := newTestEngine(t, repo)

		_, err := e.Update(ctx, "a", task.Patch{Title: task.Ptr(" ")})
		assert.ErrorIs(t, err, task.ErrInvalid)
		assert.Equal(t, "Quarterly report", e.Tasks()[0].Title)
		repo.expectNone(t)
	})
}

func TestEngine_SameIDMutationsSerialize(t *testing.T) {
	ctx := context.Background()
	repo := gatedRepo(seedTasks()...)
	e, tb := newTestEngine(t, repo)

	first, err := e.Update(ctx, "a", task.Patch{Title: task.Ptr("first")})
	require.NoError(t, err)
	second, err := e.Update(ctx, "a", task.Patch{Title: task.Ptr("second")})
	require.NoError(t, err)

	// Only the first is in flight; the second waits its turn.
	call := repo.expect(t)
	assert.Equal(t, "first", *call.Patch.Title)
	repo.expectNone(t)
	assert.Equal(t, "first", e.Tasks()[0].Title)

	call.Fail(errRemote)
	_, err = wait(t, first)
	require.ErrorIs(t, err, errRemote)

	call = repo.expect(t)
	assert.Equal(t, "second", *call.Patch.Title)
	assert.Equal(t, "second", e.Tasks()[0].Title)
	call.Succeed()

	got, err := wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, "second", e.Tasks()[0].Title)
	assert.Equal(t, Committed, e.State("a"))

	tb.AssertPublished(t, eventbus.EventTaskUpdated)
	assert.Equal(t, 1, tb.Count(eventbus.EventTaskSyncFailed))
}

func TestEngine_DifferentIDsRunConcurrently(t *testing.T) {
	ctx := context.Background()
	repo := gatedRepo(seedTasks()...)
	e, _ := newTestEngine(t, repo)

	opA, err := e.Update(ctx, "a", task.Patch{Title: task.Ptr("A")})
	require.NoError(t, err)
	opB, err := e.Delete(ctx, "b")
	require.NoError(t, err)

	callA := repo.expect(t)
	callB := repo.expect(t)
	if callA.Kind != "update" {
		callA, callB = callB, callA
	}

	// Resolve out of issue order.
	callB.Succeed()
	_, err = wait(t, opB)
	require.NoError(t, err)
	callA.Succeed()
	_, err = wait(t, opA)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, ids(e.Tasks()))
	assert.Equal(t, []int{0, 1}, orders(e.Tasks()))
}

func TestEngine_ToggleComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("completion celebrates and reopening does not", func(t *testing.T) {
		repo := newFakeRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)

		op, err := e.ToggleComplete(ctx, "a")
		require.NoError(t, err)
		got, err := wait(t, op)
		require.NoError(t, err)
		assert.True(t, got.Completed)
		assert.Equal(t, 0, e.CategoryCounts()["Work"])
		assert.Equal(t, Stats{Completed: 1, Total: 3}, e.CompletionStats())
		tb.AssertPublished(t, eventbus.EventTaskCompleted)

		op, err = e.ToggleComplete(ctx, "a")
		require.NoError(t, err)
		got, err = wait(t, op)
		require.NoError(t, err)
		assert.False(t, got.Completed)
		assert.Equal(t, 1, e.CategoryCounts()["Work"])
		tb.AssertPublished(t, eventbus.EventTaskReopened)

		assert.Equal(t, 1, tb.Count(eventbus.EventTaskCompleted))
		tb.AssertNotPublished(t, eventbus.EventTaskUpdated, 20*time.Millisecond)
	})

	t.Run("queued toggle reads the settled value", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, _ := newTestEngine(t, repo)

		first, err := e.ToggleComplete(ctx, "c")
		require.NoError(t, err)
		second, err := e.ToggleComplete(ctx, "c")
		require.NoError(t, err)

		call := repo.expect(t)
		assert.True(t, *call.Patch.Completed)
		call.Succeed()
		_, err = wait(t, first)
		require.NoError(t, err)

		call = repo.expect(t)
		assert.False(t, *call.Patch.Completed)
		call.Succeed()
		got, err := wait(t, second)
		require.NoError(t, err)
		assert.False(t, got.Completed)
	})

	t.Run("failed toggle is rolled back", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)

		op, err := e.ToggleComplete(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, 0, e.CategoryCounts()["Home"])

		repo.expect(t).Fail(errRemote)
		_, err = wait(t, op)
		require.Error(t, err)
		assert.False(t, e.Tasks()[2].Completed)
		assert.Equal(t, 1, e.CategoryCounts()["Home"])

		tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
		tb.AssertNotPublished(t, eventbus.EventTaskCompleted, 20*time.Millisecond)
	})
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("sole open task in category drops its count", func(t *testing.T) {
		repo := newFakeRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)
		lists := repo.listCalls()

		op, err := e.Delete(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, 0, e.CategoryCounts()["Home"])

		_, err = wait(t, op)
		require.NoError(t, err)
		assert.Equal(t, 0, e.CategoryCounts()["Home"])
		assert.Equal(t, lists, repo.listCalls(), "counts must not need a remote read")
		tb.AssertPublished(t, eventbus.EventTaskDeleted)
	})

	t.Run("failure reinserts at the former index", func(t *testing.T) {
		repo := gatedRepo(seedTasks()...)
		e, tb := newTestEngine(t, repo)
		before := e.Tasks()

		op, err := e.Delete(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(e.Tasks()))
		assert.Equal(t, []int{0, 1}, orders(e.Tasks()))

		repo.expect(t).Fail(errRemote)
		_, err = wait(t, op)
		require.ErrorIs(t, err, errRemote)

		assert.Equal(t, before, e.Tasks())
		assert.Equal(t, RolledBack, e.State("b"))
		tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
		assert.Equal(t, 1, tb.Count(eventbus.EventTaskSyncFailed))
	})

	t.Run("unknown id", func(t *testing.T) {
		e, _ := newTestEngine(t, newFakeRepo())
		_, err := e.Delete(ctx, "nope")
		assert.ErrorIs(t, err, task.ErrNotFound)
	})
}

func TestEngine_MutationsQueueBehindPendingCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("runs against the server id", func(t *testing.T) {
		repo := gatedRepo()
		e, _ := newTestEngine(t, repo)

		create, err := e.Create(ctx, task.Draft{Title: "Draft"})
		require.NoError(t, err)
		placeholder := create.TaskID()

		update, err := e.Update(ctx, placeholder, task.Patch{Title: task.Ptr("Final")})
		require.NoError(t, err)

		call := repo.expect(t)
		assert.Equal(t, "create", call.Kind)
		repo.expectNone(t)
		call.Succeed()
		_, err = wait(t, create)
		require.NoError(t, err)

		call = repo.expect(t)
		assert.Equal(t, "update", call.Kind)
		assert.Equal(t, "srv-1", call.ID)
		call.Succeed()

		got, err := wait(t, update)
		require.NoError(t, err)
		assert.Equal(t, "srv-1", got.ID)
		assert.Equal(t, "Final", got.Title)
		assert.Equal(t, []string{"srv-1"}, ids(e.Tasks()))
	})

	t.Run("abandoned when the create fails", func(t *testing.T) {
		repo := gatedRepo()
		e, tb := newTestEngine(t, repo)

		create, err := e.Create(ctx, task.Draft{Title: "Draft"})
		require.NoError(t, err)
		del, err := e.Delete(ctx, create.TaskID())
		require.NoError(t, err)

		repo.expect(t).Fail(errRemote)
		_, err = wait(t, create)
		require.Error(t, err)

		_, err = wait(t, del)
		assert.ErrorIs(t, err, task.ErrNotFound)
		repo.expectNone(t)
		assert.Empty(t, e.Tasks())

		tb.AssertPublished(t, eventbus.EventTaskSyncFailed)
		assert.Equal(t, 1, tb.Count(eventbus.EventTaskSyncFailed))
	})
}

func TestEngine_VisibleTasks(t *testing.T) {
	e, _ := newTestEngine(t, newFakeRepo(seedTasks()...))

	assert.Equal(t, []string{"a", "b", "c"}, ids(e.VisibleTasks()))

	e.SetSearch("report")
	assert.Equal(t, []string{"a", "c"}, ids(e.VisibleTasks()))

	e.SetCategory("Work")
	assert.Equal(t, []string{"a"}, ids(e.VisibleTasks()))

	e.SetSearch("")
	e.SetCategory("Shopping")
	assert.Equal(t, []string{"b"}, ids(e.VisibleTasks()))

	e.SetSearch("EGGS")
	assert.Equal(t, []string{"b"}, ids(e.VisibleTasks()))
}

func TestEngine_SuccessfulSequenceKeepsOrderAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(seedTasks()...)
	e, _ := newTestEngine(t, repo)

	run := func(op *Op, err error) {
		t.Helper()
		require.NoError(t, err)
		_, err = wait(t, op)
		require.NoError(t, err)
	}

	run(e.Create(ctx, task.Draft{Title: "d", Category: "Home"}))
	run(e.Create(ctx, task.Draft{Title: "e", Category: "Shopping"}))
	run(e.ToggleComplete(ctx, "b"))
	run(e.Delete(ctx, "a"))
	run(e.Move(ctx, 0, 3))
	run(e.Update(ctx, "c", task.Patch{Category: task.Ptr("Work")}))

	all := e.Tasks()
	seen := map[string]bool{}
	for i, tk := range all {
		assert.Equal(t, i, tk.Order)
		assert.False(t, seen[tk.ID], "duplicate id %s", tk.ID)
		seen[tk.ID] = true
	}

	want := map[string]int{"Work": 0, "Home": 0, "Shopping": 0}
	for _, tk := range all {
		if !tk.Completed {
			if _, ok := want[tk.Category]; ok {
				want[tk.Category]++
			}
		}
	}
	assert.Equal(t, want, e.CategoryCounts())
	assert.Equal(t, ids(repo.serverTasks()), ids(all))
}

func TestEngine_Close(t *testing.T) {
	ctx := context.Background()
	repo := gatedRepo(seedTasks()...)
	e, tb := newTestEngine(t, repo)

	op, err := e.Update(ctx, "a", task.Patch{Title: task.Ptr("late")})
	require.NoError(t, err)
	call := repo.expect(t)

	e.Close()
	_, err = wait(t, op)
	require.ErrorIs(t, err, task.ErrClosed)
	assert.Equal(t, RolledBack, op.State())

	_, err = e.Create(ctx, task.Draft{Title: "x"})
	assert.ErrorIs(t, err, task.ErrClosed)
	_, err = e.Delete(ctx, "a")
	assert.ErrorIs(t, err, task.ErrClosed)
	_, err = e.Move(ctx, 0, 1)
	assert.ErrorIs(t, err, task.ErrClosed)
	assert.ErrorIs(t, e.Load(ctx), task.ErrClosed)

	before := e.Tasks()
	call.Fail(errRemote)
	tb.AssertNotPublished(t, eventbus.EventTaskSyncFailed, 30*time.Millisecond)
	assert.Equal(t, before, e.Tasks())
}

// getTask is a test helper reading a single task under the engine lock.
func (e *Engine) getTask(id string) (task.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(e.resolve(id))
}
