package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct{ id, name string }

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[string]()
	assert.True(t, q.IsEmpty())
	_, ok := q.Dequeue()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)

	q.Enqueue("M001")
	q.Enqueue("M002")
	q.Enqueue("M003")
	assert.Equal(t, 3, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "M001", head)

	v, _ := q.Dequeue()
	assert.Equal(t, "M001", v)
	v, _ = q.Dequeue()
	assert.Equal(t, "M002", v)
	v, _ = q.Dequeue()
	assert.Equal(t, "M003", v)
	assert.True(t, q.IsEmpty())

	// tail must be reset so the queue is reusable
	q.Enqueue("M004")
	assert.Equal(t, []string{"M004"}, q.Items())
}

func TestQueueRemoveItem(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		found  bool
		want   []string
	}{
		{name: "head", remove: "a", found: true, want: []string{"b", "c"}},
		{name: "middle", remove: "b", found: true, want: []string{"a", "c"}},
		{name: "tail", remove: "c", found: true, want: []string{"a", "b"}},
		{name: "missing", remove: "z", found: false, want: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue("a", "b", "c")
			assert.Equal(t, tt.found, q.RemoveItem(tt.remove))
			assert.Equal(t, tt.want, q.Items())

			q.Enqueue("d")
			assert.Equal(t, append(tt.want, "d"), q.Items())
		})
	}
}

func TestQueuePairsMoveInLockStep(t *testing.T) {
	q := NewQueue(pair{"M001", "Ann"}, pair{"M002", "Bob"}, pair{"M003", "Cid"})

	removed, ok := q.RemoveFunc(func(p pair) bool { return p.id == "M002" })
	require.True(t, ok)
	assert.Equal(t, "Bob", removed.name)
	assert.Equal(t, 1, q.IndexFunc(func(p pair) bool { return p.id == "M003" }))
	assert.Equal(t, -1, q.IndexFunc(func(p pair) bool { return p.id == "M002" }))

	head, _ := q.Dequeue()
	assert.Equal(t, pair{"M001", "Ann"}, head)
	assert.True(t, q.Contains(pair{"M003", "Cid"}))
}
