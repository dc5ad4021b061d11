// Package collections holds the hand-built containers the library core runs on:
// a chained hash index, a FIFO queue, a singly-linked ledger and a rank heap.
package collections

import "hash/fnv"

const (
	initialCapacity = 16
	loadFactor      = 0.75
)

type entry[V any] struct {
	key   string
	value V
	next  *entry[V]
}

// KeyIndex maps string keys to values with O(1) average lookup.
// The empty key is treated as the null key and always lands in bucket 0.
// Iteration order is unspecified.
type KeyIndex[V any] struct {
	buckets []*entry[V]
	size    int
}

// NewKeyIndex returns an empty index with the initial capacity of 16 buckets.
func NewKeyIndex[V any]() *KeyIndex[V] {
	return &KeyIndex[V]{buckets: make([]*entry[V], initialCapacity)}
}

func bucketFor(key string, capacity int) int {
	if key == "" {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() & uint64(capacity-1))
}

// Put inserts key or overwrites its value.
func (ix *KeyIndex[V]) Put(key string, value V) {
	i := bucketFor(key, len(ix.buckets))
	var last *entry[V]
	for e := ix.buckets[i]; e != nil; e = e.next {
		if e.key == key {
			e.value = value
			return
		}
		last = e
	}

	// chains stay in insertion order
	n := &entry[V]{key: key, value: value}
	if last == nil {
		ix.buckets[i] = n
	} else {
		last.next = n
	}
	ix.size++

	if float64(ix.size) > float64(len(ix.buckets))*loadFactor {
		ix.resize()
	}
}

// Get returns the value stored under key.
func (ix *KeyIndex[V]) Get(key string) (V, bool) {
	for e := ix.buckets[bucketFor(key, len(ix.buckets))]; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// ContainsKey reports whether key is present.
func (ix *KeyIndex[V]) ContainsKey(key string) bool {
	_, ok := ix.Get(key)
	return ok
}

// Remove detaches key and returns its prior value.
func (ix *KeyIndex[V]) Remove(key string) (V, bool) {
	i := bucketFor(key, len(ix.buckets))
	var prev *entry[V]
	for e := ix.buckets[i]; e != nil; e = e.next {
		if e.key == key {
			if prev == nil {
				ix.buckets[i] = e.next
			} else {
				prev.next = e.next
			}
			ix.size--
			return e.value, true
		}
		prev = e
	}
	var zero V
	return zero, false
}

// Len returns the number of stored keys.
func (ix *KeyIndex[V]) Len() int { return ix.size }

// Capacity returns the current bucket count.
func (ix *KeyIndex[V]) Capacity() int { return len(ix.buckets) }

// Keys returns every key in unspecified order.
func (ix *KeyIndex[V]) Keys() []string {
	keys := make([]string, 0, ix.size)
	for _, head := range ix.buckets {
		for e := head; e != nil; e = e.next {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// resize doubles the bucket array and rehashes every entry in one pass.
func (ix *KeyIndex[V]) resize() {
	old := ix.buckets
	ix.buckets = make([]*entry[V], len(old)*2)
	ix.size = 0
	for _, head := range old {
		for e := head; e != nil; e = e.next {
			ix.Put(e.key, e.value)
		}
	}
}
