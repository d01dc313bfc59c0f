package hashchain

import "errors"

var ErrKeyNotFound = errors.New("key not found")

const (
	minCapacity  = 8
	growFactor   = 0.75 // load factor above which the bucket array doubles
	shrinkFactor = 0.25 // load factor below which the bucket array halves
)

type entry[V any] struct {
	key   int
	value V
}

// HashChain is an open-chaining hash map keyed by int. Buckets are chosen by
// key modulo capacity; the table resizes itself on insert and remove.
type HashChain[V any] struct {
	buckets [][]entry[V]
	size    int
}

func New[V any]() *HashChain[V] {
	return &HashChain[V]{
		buckets: make([][]entry[V], minCapacity),
	}
}

func (h *HashChain[V]) bucket(key int) int {
	idx := key % len(h.buckets)
	if idx < 0 {
		idx += len(h.buckets)
	}
	return idx
}

// Insert adds value under key, overwriting any previous value.
func (h *HashChain[V]) Insert(key int, value V) {
	b := h.bucket(key)
	for i := range h.buckets[b] {
		if h.buckets[b][i].key == key {
			h.buckets[b][i].value = value
			return
		}
	}

	h.buckets[b] = append(h.buckets[b], entry[V]{key: key, value: value})
	h.size++

	if h.loadFactor() > growFactor {
		h.rehash(len(h.buckets) * 2)
	}
}

func (h *HashChain[V]) Get(key int) (V, bool) {
	b := h.bucket(key)
	for _, e := range h.buckets[b] {
		if e.key == key {
			return e.value, true
		}
	}

	var zero V
	return zero, false
}

// Remove deletes key. A missing key yields ErrKeyNotFound and leaves the map
// untouched.
func (h *HashChain[V]) Remove(key int) error {
	b := h.bucket(key)
	for i, e := range h.buckets[b] {
		if e.key != key {
			continue
		}

		h.buckets[b] = append(h.buckets[b][:i], h.buckets[b][i+1:]...)
		h.size--

		if h.loadFactor() < shrinkFactor && len(h.buckets) > minCapacity {
			h.rehash(max(minCapacity, len(h.buckets)/2))
		}
		return nil
	}

	return ErrKeyNotFound
}

func (h *HashChain[V]) Keys() []int {
	keys := make([]int, 0, h.size)
	for _, b := range h.buckets {
		for _, e := range b {
			keys = append(keys, e.key)
		}
	}
	return keys
}

func (h *HashChain[V]) Len() int {
	return h.size
}

func (h *HashChain[V]) Capacity() int {
	return len(h.buckets)
}

// Duplicate returns an independent copy. Each value is passed through clone,
// so pointer values can be deep-copied by the caller; a nil clone copies
// values as-is.
func (h *HashChain[V]) Duplicate(clone func(V) V) *HashChain[V] {
	dup := &HashChain[V]{
		buckets: make([][]entry[V], len(h.buckets)),
		size:    h.size,
	}

	for i, b := range h.buckets {
		if len(b) == 0 {
			continue
		}
		dup.buckets[i] = make([]entry[V], len(b))
		for j, e := range b {
			v := e.value
			if clone != nil {
				v = clone(v)
			}
			dup.buckets[i][j] = entry[V]{key: e.key, value: v}
		}
	}

	return dup
}

func (h *HashChain[V]) loadFactor() float64 {
	return float64(h.size) / float64(len(h.buckets))
}

func (h *HashChain[V]) rehash(capacity int) {
	old := h.buckets
	h.buckets = make([][]entry[V], capacity)
	for _, b := range old {
		for _, e := range b {
			idx := h.bucket(e.key)
			h.buckets[idx] = append(h.buckets[idx], e)
		}
	}
}
