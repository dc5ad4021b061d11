package collections

type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is a singly-linked first-in-first-out queue.
type Queue[T comparable] struct {
	head *node[T]
	tail *node[T]
}

// NewQueue returns a queue holding items in the given order, first item at the head.
func NewQueue[T comparable](items ...T) *Queue[T] {
	q := &Queue[T]{}
	for _, it := range items {
		q.Enqueue(it)
	}
	return q
}

// Enqueue appends v at the tail.
func (q *Queue[T]) Enqueue(v T) {
	n := &node[T]{value: v}
	if q.tail == nil {
		q.head, q.tail = n, n
		return
	}
	q.tail.next = n
	q.tail = n
}

// Dequeue removes and returns the head.
func (q *Queue[T]) Dequeue() (T, bool) {
	if q.head == nil {
		var zero T
		return zero, false
	}
	v := q.head.value
	q.head = q.head.next
	if q.head == nil {
		q.tail = nil
	}
	return v, true
}

// Peek returns the head without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.head == nil {
		var zero T
		return zero, false
	}
	return q.head.value, true
}

func (q *Queue[T]) IsEmpty() bool { return q.head == nil }

// Len walks the chain.
func (q *Queue[T]) Len() int {
	n := 0
	for cur := q.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Contains reports whether v is queued.
func (q *Queue[T]) Contains(v T) bool {
	_, ok := q.find(func(it T) bool { return it == v })
	return ok
}

// IndexFunc returns the zero-based position of the first item matching pred, or -1.
func (q *Queue[T]) IndexFunc(pred func(T) bool) int {
	i := 0
	for cur := q.head; cur != nil; cur = cur.next {
		if pred(cur.value) {
			return i
		}
		i++
	}
	return -1
}

func (q *Queue[T]) find(pred func(T) bool) (T, bool) {
	for cur := q.head; cur != nil; cur = cur.next {
		if pred(cur.value) {
			return cur.value, true
		}
	}
	var zero T
	return zero, false
}

// RemoveItem deletes the first node equal to v, wherever it sits in the chain.
func (q *Queue[T]) RemoveItem(v T) bool {
	_, ok := q.RemoveFunc(func(it T) bool { return it == v })
	return ok
}

// RemoveFunc deletes the first node matching pred and returns its value.
// The relative order of the remaining items is preserved.
func (q *Queue[T]) RemoveFunc(pred func(T) bool) (T, bool) {
	var prev *node[T]
	for cur := q.head; cur != nil; cur = cur.next {
		if !pred(cur.value) {
			prev = cur
			continue
		}
		if prev == nil {
			q.head = cur.next
		} else {
			prev.next = cur.next
		}
		if q.tail == cur {
			q.tail = prev
		}
		return cur.value, true
	}
	var zero T
	return zero, false
}

// Items returns the queued values head first.
func (q *Queue[T]) Items() []T {
	out := make([]T, 0)
	for cur := q.head; cur != nil; cur = cur.next {
		out = append(out, cur.value)
	}
	return out
}
