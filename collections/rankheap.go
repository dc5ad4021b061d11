package collections

// RankHeap is a binary max-heap ordered by a three-way compare function
// (positive when a ranks above b). It is rebuilt from a snapshot on every query.
type RankHeap[T comparable] struct {
	items []T
	cmp   func(a, b T) int
}

func NewRankHeap[T comparable](cmp func(a, b T) int) *RankHeap[T] {
	return &RankHeap[T]{cmp: cmp}
}

// BuildHeap copies items and arranges the copy into max-heap order.
func (h *RankHeap[T]) BuildHeap(items []T) {
	h.items = make([]T, len(items))
	copy(h.items, items)
	for i := len(h.items)/2 - 1; i >= 0; i-- {
		h.siftDown(i)
	}
}

// Max returns the root without removing it.
func (h *RankHeap[T]) Max() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

func (h *RankHeap[T]) IsEmpty() bool { return len(h.items) == 0 }

func (h *RankHeap[T]) Len() int { return len(h.items) }

func (h *RankHeap[T]) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		left, right := 2*i+1, 2*i+2
		if left < n && h.cmp(h.items[left], h.items[largest]) > 0 {
			largest = left
		}
		if right < n && h.cmp(h.items[right], h.items[largest]) > 0 {
			largest = right
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}

// TopN extracts the n highest ranked items by repeatedly taking the root,
// dropping that exact element from the snapshot and rebuilding the heap.
func TopN[T comparable](items []T, n int, cmp func(a, b T) int) []T {
	remaining := make([]T, len(items))
	copy(remaining, items)

	h := NewRankHeap(cmp)
	out := make([]T, 0, max(n, 0))
	for len(out) < n {
		h.BuildHeap(remaining)
		top, ok := h.Max()
		if !ok {
			break
		}
		out = append(out, top)
		for i, it := range remaining {
			if it == top {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return out
}
