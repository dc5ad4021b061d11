package collections

// Ledger is an ordered, append-friendly singly-linked list.
// It does not enforce uniqueness; callers check for duplicates before AddLast.
type Ledger[T comparable] struct {
	head *node[T]
	tail *node[T]
	size int
}

func NewLedger[T comparable]() *Ledger[T] {
	return &Ledger[T]{}
}

// AddLast appends v.
func (l *Ledger[T]) AddLast(v T) {
	n := &node[T]{value: v}
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		l.tail.next = n
		l.tail = n
	}
	l.size++
}

// Get returns the item at index.
func (l *Ledger[T]) Get(index int) (T, bool) {
	if index < 0 || index >= l.size {
		var zero T
		return zero, false
	}
	cur := l.head
	for i := 0; i < index; i++ {
		cur = cur.next
	}
	return cur.value, true
}

func (l *Ledger[T]) Len() int { return l.size }

// IndexOf returns the position of the first item equal to v, or -1.
func (l *Ledger[T]) IndexOf(v T) int {
	i := 0
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.value == v {
			return i
		}
		i++
	}
	return -1
}

// RemoveItem removes the first item equal to v.
func (l *Ledger[T]) RemoveItem(v T) bool {
	var prev *node[T]
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.value != v {
			prev = cur
			continue
		}
		if prev == nil {
			l.head = cur.next
		} else {
			prev.next = cur.next
		}
		if l.tail == cur {
			l.tail = prev
		}
		l.size--
		return true
	}
	return false
}

// Each calls fn for every item in order until fn returns false.
func (l *Ledger[T]) Each(fn func(T) bool) {
	for cur := l.head; cur != nil; cur = cur.next {
		if !fn(cur.value) {
			return
		}
	}
}

// Items copies the ledger into a fresh slice.
func (l *Ledger[T]) Items() []T {
	out := make([]T, 0, l.size)
	for cur := l.head; cur != nil; cur = cur.next {
		out = append(out, cur.value)
	}
	return out
}
