package vulkan

import "sync/atomic"

// handleSeq is shared by every table so that no two live objects of any kind
// carry the same handle value.
var handleSeq atomic.Uint64

// table maps the opaque handles handed to the renderer onto native objects.
type table[K ~uint64, V any] struct {
	items map[K]V
}

func newTable[K ~uint64, V any]() *table[K, V] {
	return &table[K, V]{items: make(map[K]V)}
}

func (t *table[K, V]) put(v V) K {
	k := K(handleSeq.Add(1))
	t.items[k] = v
	return k
}

func (t *table[K, V]) get(k K) (V, bool) {
	v, ok := t.items[k]
	return v, ok
}

func (t *table[K, V]) remove(k K) (V, bool) {
	v, ok := t.items[k]
	if ok {
		delete(t.items, k)
	}
	return v, ok
}

func (t *table[K, V]) len() int {
	return len(t.items)
}
