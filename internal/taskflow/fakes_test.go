package taskflow

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/eventbus/testbus"
	"github.com/colonyops/taskflow/internal/core/task"
)

var serverTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// remoteCall is a mutation the fake repository received. In gated mode the
// call blocks until the test sends its outcome on reply.
type remoteCall struct {
	Kind    string
	ID      string
	Draft   task.Draft
	Patch   task.Patch
	Ordered []task.Task
	reply   chan error
}

// Succeed lets the call through.
func (c *remoteCall) Succeed() { c.reply <- nil }

// Fail makes the call return err.
func (c *remoteCall) Fail(err error) { c.reply <- err }

// fakeRepo is an in-memory task.Repository. When gated, every mutation is
// handed to the test on calls and waits for a verdict.
type fakeRepo struct {
	gated bool
	calls chan *remoteCall

	mu        sync.Mutex
	tasks     []task.Task
	nextID    int
	lists     int
	failNext  map[string]error
	failLists error
}

func newFakeRepo(tasks ...task.Task) *fakeRepo {
	r := &fakeRepo{
		calls:    make(chan *remoteCall, 32),
		failNext: make(map[string]error),
	}
	for i, t := range tasks {
		t.Order = i
		if t.CreatedAt.IsZero() {
			t.CreatedAt = serverTime
		}
		if t.Priority == "" {
			t.Priority = task.PriorityMedium
		}
		r.tasks = append(r.tasks, t)
	}
	return r
}

func gatedRepo(tasks ...task.Task) *fakeRepo {
	r := newFakeRepo(tasks...)
	r.gated = true
	return r
}

// expect returns the next gated call, failing the test if none arrives.
func (r *fakeRepo) expect(t *testing.T) *remoteCall {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remote call")
		return nil
	}
}

// expectNone asserts no further call arrives within a short window.
func (r *fakeRepo) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("unexpected remote call %s %s", c.Kind, c.ID)
	case <-time.After(30 * time.Millisecond):
	}
}

func (r *fakeRepo) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

func (r *fakeRepo) serverTasks() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tasks)
}

func (r *fakeRepo) gate(ctx context.Context, c *remoteCall) error {
	if !r.gated {
		r.mu.Lock()
		err := r.failNext[c.Kind]
		delete(r.failNext, c.Kind)
		r.mu.Unlock()
		return err
	}

	c.reply = make(chan error, 1)
	r.calls <- c
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRepo) List(context.Context) ([]task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.failLists != nil {
		return nil, r.failLists
	}
	return slices.Clone(r.tasks), nil
}

func (r *fakeRepo) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := r.gate(ctx, &remoteCall{Kind: "create", Draft: draft}); err != nil {
		return task.Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	created := task.Task{
		ID:          fmt.Sprintf("srv-%d", r.nextID),
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Priority:    draft.Priority,
		DueDate:     draft.DueDate,
		CreatedAt:   serverTime,
	}
	pos := len(r.tasks)
	if draft.Order != nil && *draft.Order < pos {
		pos = *draft.Order
	}
	r.tasks = slices.Insert(r.tasks, pos, created)
	for i := range r.tasks {
		r.tasks[i].Order = i
	}
	return r.tasks[pos], nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if err := r.gate(ctx, &remoteCall{Kind: "update", ID: id, Patch: patch}); err != nil {
		return task.Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.tasks, func(t task.Task) bool { return t.ID == id })
	if i < 0 {
		return task.Task{}, task.ErrNotFound
	}
	r.tasks[i] = patch.Apply(r.tasks[i])
	r.tasks[i].Order = i
	return r.tasks[i], nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.gate(ctx, &remoteCall{Kind: "delete", ID: id}); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.tasks, func(t task.Task) bool { return t.ID == id })
	if i < 0 {
		return false, task.ErrNotFound
	}
	r.tasks = slices.Delete(r.tasks, i, i+1)
	for j := range r.tasks {
		r.tasks[j].Order = j
	}
	return true, nil
}

func (r *fakeRepo) Reorder(ctx context.Context, ordered []task.Task) ([]task.Task, error) {
	if err := r.gate(ctx, &remoteCall{Kind: "reorder", Ordered: slices.Clone(ordered)}); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]task.Task, 0, len(ordered))
	for i, o := range ordered {
		j := slices.IndexFunc(r.tasks, func(t task.Task) bool { return t.ID == o.ID })
		if j < 0 {
			return nil, task.ErrNotFound
		}
		t := r.tasks[j]
		t.Order = i
		next = append(next, t)
	}
	r.tasks = next
	return slices.Clone(r.tasks), nil
}

// fakeCategories reports deliberately wrong task counts so tests can check
// they are never trusted.
type fakeCategories struct {
	cats []task.Category
	err  error
}

func newFakeCategories(names ...string) *fakeCategories {
	fc := &fakeCategories{}
	for i, n := range names {
		fc.cats = append(fc.cats, task.Category{ID: fmt.Sprintf("cat-%d", i), Name: n, Color: task.DefaultCategoryColor, TaskCount: 99})
	}
	return fc
}

func (f *fakeCategories) List(context.Context) ([]task.Category, error) {
	return slices.Clone(f.cats), f.err
}

func (f *fakeCategories) Create(_ context.Context, c task.Category) (task.Category, error) {
	f.cats = append(f.cats, c)
	return c, nil
}

func (f *fakeCategories) Update(context.Context, string, task.CategoryPatch) (task.Category, error) {
	return task.Category{}, task.ErrNotFound
}

func (f *fakeCategories) Delete(context.Context, string) (bool, error) {
	return false, task.ErrNotFound
}

// newTestEngine builds an engine over repo with Work, Home and Shopping
// categories and loads it.
func newTestEngine(t *testing.T, repo *fakeRepo) (*Engine, *testbus.Bus) {
	t.Helper()
	tb := testbus.New(t)
	e := NewEngine(repo, newFakeCategories("Work", "Home", "Shopping"), tb.EventBus, zerolog.Nop(), Options{})
	require.NoError(t, e.Load(context.Background()))
	t.Cleanup(e.Close)
	return e, tb
}

func wait(t *testing.T, op *Op) (task.Task, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := op.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "op did not settle")
	return got, err
}

func ids(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func orders(tasks []task.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.Order
	}
	return out
}
