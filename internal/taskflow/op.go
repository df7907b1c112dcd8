package taskflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/colonyops/taskflow/internal/core/task"
)

// State is the sync state of a task id or of a single Op.
type State int

const (
	Idle State = iota
	Pending
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SyncError reports a mutation the remote store did not accept. The local
// change has been undone by the time it is returned.
type SyncError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *SyncError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sync %s %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Op is the handle for one mutation. It settles exactly once.
type Op struct {
	kind string
	done chan struct{}

	mu    sync.Mutex
	id    string
	task  task.Task
	state State
	err   error
}

func newOp(kind, id string) *Op {
	return &Op{
		kind:  kind,
		done:  make(chan struct{}),
		id:    id,
		state: Pending,
	}
}

// settledOp returns an op that is already committed. Used for no-op moves.
func settledOp(kind string) *Op {
	op := newOp(kind, "")
	op.finish(task.Task{}, Committed, nil)
	return op
}

// Kind names the mutation, one of the eventbus Op constants.
func (o *Op) Kind() string { return o.kind }

// TaskID is the id the op targets. For a create it changes from the
// placeholder to the server id on commit.
func (o *Op) TaskID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// Task returns the latest record known for the op: the optimistic record
// once applied, the server record once committed, the restored record
// after a rollback. Queued ops return the zero Task until they run.
func (o *Op) Task() task.Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.task
}

func (o *Op) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err is nil until the op settles with a failure.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Done is closed when the op settles.
func (o *Op) Done() <-chan struct{} { return o.done }

// Wait blocks until the op settles or ctx ends.
func (o *Op) Wait(ctx context.Context) (task.Task, error) {
	select {
	case <-o.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.task, o.err
	case <-ctx.Done():
		return task.Task{}, ctx.Err()
	}
}

func (o *Op) apply(id string, t task.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.id = id
	o.task = t
}

func (o *Op) settled() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// finish settles the op. It reports false when the op had already settled.
func (o *Op) finish(t task.Task, state State, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case <-o.done:
		return false
	default:
	}
	o.task = t
	o.state = state
	o.err = err
	close(o.done)
	return true
}
