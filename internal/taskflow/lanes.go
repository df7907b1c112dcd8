package taskflow

// lanes serializes mutations per task id. A lane exists while an op on its
// id is in flight; ops arriving meanwhile queue behind it in FIFO order.
// The engine mutex guards every call.
type lanes struct {
	active map[string][]func()
}

func newLanes() *lanes {
	return &lanes{active: make(map[string][]func())}
}

// enter runs fn now when id is idle, otherwise queues it.
func (l *lanes) enter(id string, fn func()) {
	if queue, busy := l.active[id]; busy {
		l.active[id] = append(queue, fn)
		return
	}
	l.active[id] = nil
	fn()
}

// busy reports whether an op on id is in flight.
func (l *lanes) busy(id string) bool {
	_, ok := l.active[id]
	return ok
}

// leave marks the in-flight op on id settled and starts the next queued op.
func (l *lanes) leave(id string) {
	queue, ok := l.active[id]
	if !ok {
		return
	}
	if len(queue) == 0 {
		delete(l.active, id)
		return
	}
	next := queue[0]
	l.active[id] = queue[1:]
	next()
}

// rename moves the lane for from to to. It is used when a create commits
// and the placeholder id gives way to the server id. When to already has a
// lane the queues are merged and rename reports false: the caller must not
// call leave for to, since an op on it is still in flight.
func (l *lanes) rename(from, to string) bool {
	queue, ok := l.active[from]
	if !ok {
		return false
	}
	delete(l.active, from)

	if existing, busy := l.active[to]; busy {
		l.active[to] = append(existing, queue...)
		return false
	}
	l.active[to] = queue
	return true
}
