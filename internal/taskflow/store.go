package taskflow

import (
	"errors"
	"slices"
	"sort"

	"github.com/colonyops/taskflow/internal/core/task"
)

// ErrDuplicateID is returned when a task id is already held by the store.
var ErrDuplicateID = errors.New("duplicate task id")

// Store is the in-memory ordered task collection. A task's Order always
// equals its position; every mutation renumbers. Store is not safe for
// concurrent use.
type Store struct {
	tasks []task.Task
}

// NewStore returns a store holding tasks, sorted by their Order.
func NewStore(tasks ...task.Task) *Store {
	s := &Store{}
	s.ReplaceAll(tasks)
	return s
}

func (s *Store) Len() int { return len(s.tasks) }

// Index returns the position of id, or -1.
func (s *Store) Index(id string) int {
	return slices.IndexFunc(s.tasks, func(t task.Task) bool { return t.ID == id })
}

func (s *Store) Get(id string) (task.Task, bool) {
	i := s.Index(id)
	if i < 0 {
		return task.Task{}, false
	}
	return s.tasks[i], true
}

// All returns the tasks in order. The slice is a copy.
func (s *Store) All() []task.Task {
	return slices.Clone(s.tasks)
}

// Snapshot captures the collection for a later rollback. Tasks hold no
// shared references, so a slice copy is a deep copy.
func (s *Store) Snapshot() []task.Task {
	return s.All()
}

// Insert appends t.
func (s *Store) Insert(t task.Task) error {
	return s.InsertAt(len(s.tasks), t)
}

// InsertAt places t at index, clamped to the valid range.
func (s *Store) InsertAt(index int, t task.Task) error {
	if s.Index(t.ID) >= 0 {
		return ErrDuplicateID
	}
	index = min(max(index, 0), len(s.tasks))
	s.tasks = slices.Insert(s.tasks, index, t)
	s.renumber()
	return nil
}

// Replace swaps the task stored under id for t, keeping its position.
// t may carry a different id (a placeholder being confirmed) as long as
// that id is not already taken.
func (s *Store) Replace(id string, t task.Task) error {
	i := s.Index(id)
	if i < 0 {
		return task.ErrNotFound
	}
	if t.ID != id && s.Index(t.ID) >= 0 {
		return ErrDuplicateID
	}
	s.tasks[i] = t
	s.renumber()
	return nil
}

// Remove deletes id and reports the task and the index it held.
func (s *Store) Remove(id string) (task.Task, int, bool) {
	i := s.Index(id)
	if i < 0 {
		return task.Task{}, -1, false
	}
	t := s.tasks[i]
	s.tasks = slices.Delete(s.tasks, i, i+1)
	s.renumber()
	return t, i, true
}

// Move relocates the task at from to index to. Out of range indexes and
// from == to leave the store untouched and report false.
func (s *Store) Move(from, to int) bool {
	n := len(s.tasks)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return false
	}
	t := s.tasks[from]
	s.tasks = slices.Delete(s.tasks, from, from+1)
	s.tasks = slices.Insert(s.tasks, to, t)
	s.renumber()
	return true
}

// Arrange reorders the store to follow ids, which must name every stored
// task exactly once.
func (s *Store) Arrange(ids []string) error {
	if len(ids) != len(s.tasks) {
		return task.ErrInvalid
	}
	byID := make(map[string]task.Task, len(s.tasks))
	for _, t := range s.tasks {
		byID[t.ID] = t
	}

	next := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return task.ErrInvalid
		}
		delete(byID, id)
		next = append(next, t)
	}

	s.tasks = next
	s.renumber()
	return nil
}

// ReplaceAll swaps in a new collection, ordered by the incoming Order.
// Later duplicates of an id are dropped.
func (s *Store) ReplaceAll(tasks []task.Task) {
	next := make([]task.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		next = append(next, t)
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Order < next[j].Order })

	s.tasks = next
	s.renumber()
}

func (s *Store) renumber() {
	for i := range s.tasks {
		s.tasks[i].Order = i
	}
}
