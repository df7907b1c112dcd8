package taskflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/taskflow/internal/core/task"
)

func mk(ids ...string) []task.Task {
	out := make([]task.Task, len(ids))
	for i, id := range ids {
		out[i] = task.Task{ID: id, Title: id, Order: i}
	}
	return out
}

func TestNewStore_SortsByOrder(t *testing.T) {
	s := NewStore(
		task.Task{ID: "c", Order: 7},
		task.Task{ID: "a", Order: 1},
		task.Task{ID: "b", Order: 1},
	)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.All()))
	assert.Equal(t, []int{0, 1, 2}, orders(s.All()))
}

func TestStore_ReplaceAllDropsDuplicates(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]task.Task{{ID: "a", Title: "first"}, {ID: "b"}, {ID: "a", Title: "second"}})

	require.Equal(t, 2, s.Len())
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Title)
}

func TestStore_InsertAt(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{name: "front", index: 0, want: []string{"x", "a", "b"}},
		{name: "middle", index: 1, want: []string{"a", "x", "b"}},
		{name: "end", index: 2, want: []string{"a", "b", "x"}},
		{name: "clamped high", index: 10, want: []string{"a", "b", "x"}},
		{name: "clamped low", index: -3, want: []string{"x", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(mk("a", "b")...)
			require.NoError(t, s.InsertAt(tt.index, task.Task{ID: "x"}))
			assert.Equal(t, tt.want, ids(s.All()))
			assert.Equal(t, []int{0, 1, 2}, orders(s.All()))
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		s := NewStore(mk("a")...)
		assert.ErrorIs(t, s.Insert(task.Task{ID: "a"}), ErrDuplicateID)
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_Replace(t *testing.T) {
	t.Run("keeps position", func(t *testing.T) {
		s := NewStore(mk("a", "b", "c")...)
		require.NoError(t, s.Replace("b", task.Task{ID: "b", Title: "new", Order: 99}))

		got, _ := s.Get("b")
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, 1, got.Order)
	})

	t.Run("swaps placeholder for server id", func(t *testing.T) {
		s := NewStore(mk("a", "pending-1")...)
		require.NoError(t, s.Replace("pending-1", task.Task{ID: "srv"}))
		assert.Equal(t, []string{"a", "srv"}, ids(s.All()))
	})

	t.Run("missing", func(t *testing.T) {
		s := NewStore(mk("a")...)
		assert.ErrorIs(t, s.Replace("zzz", task.Task{ID: "zzz"}), task.ErrNotFound)
	})

	t.Run("new id taken", func(t *testing.T) {
		s := NewStore(mk("a", "b")...)
		assert.ErrorIs(t, s.Replace("a", task.Task{ID: "b"}), ErrDuplicateID)
		assert.Equal(t, []string{"a", "b"}, ids(s.All()))
	})
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(mk("a", "b", "c")...)

	removed, idx, ok := s.Remove("b")
	require.True(t, ok)
	assert.Equal(t, "b", removed.ID)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []string{"a", "c"}, ids(s.All()))
	assert.Equal(t, []int{0, 1}, orders(s.All()))

	_, idx, ok = s.Remove("b")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestStore_Move(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		moved    bool
		want     []string
	}{
		{name: "first to last", from: 0, to: 2, moved: true, want: []string{"b", "c", "a"}},
		{name: "last to first", from: 2, to: 0, moved: true, want: []string{"c", "a", "b"}},
		{name: "adjacent", from: 1, to: 2, moved: true, want: []string{"a", "c", "b"}},
		{name: "same index", from: 1, to: 1, want: []string{"a", "b", "c"}},
		{name: "from out of range", from: 3, to: 0, want: []string{"a", "b", "c"}},
		{name: "to out of range", from: 0, to: -1, want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(mk("a", "b", "c")...)
			assert.Equal(t, tt.moved, s.Move(tt.from, tt.to))
			assert.Equal(t, tt.want, ids(s.All()))
			assert.Equal(t, []int{0, 1, 2}, orders(s.All()))
		})
	}
}

func TestStore_Arrange(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{name: "permutation", ids: []string{"c", "a", "b"}},
		{name: "too short", ids: []string{"a", "b"}, wantErr: true},
		{name: "duplicate", ids: []string{"a", "a", "b"}, wantErr: true},
		{name: "unknown id", ids: []string{"a", "b", "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(mk("a", "b", "c")...)
			err := s.Arrange(tt.ids)
			if tt.wantErr {
				require.ErrorIs(t, err, task.ErrInvalid)
				assert.Equal(t, []string{"a", "b", "c"}, ids(s.All()))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ids, ids(s.All()))
			assert.Equal(t, []int{0, 1, 2}, orders(s.All()))
		})
	}
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	s := NewStore(mk("a", "b")...)
	snap := s.Snapshot()

	s.Move(0, 1)
	_, _, _ = s.Remove("a")

	assert.Equal(t, []string{"a", "b"}, ids(snap))
	assert.Equal(t, []int{0, 1}, orders(snap))
}
