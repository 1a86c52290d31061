package stack

import "slices"

// ordered is a keyed collection that remembers the order of the latest put.
// Lookups, puts and deletes are O(1); values() sorts once.
type ordered[K comparable, V any] struct {
	seq     int
	entries map[K]orderedEntry[V]
}

type orderedEntry[V any] struct {
	seq   int
	value V
}

func newOrdered[K comparable, V any]() *ordered[K, V] {
	return &ordered[K, V]{entries: make(map[K]orderedEntry[V])}
}

func (o *ordered[K, V]) put(k K, v V) {
	o.seq++
	o.entries[k] = orderedEntry[V]{seq: o.seq, value: v}
}

func (o *ordered[K, V]) get(k K) (V, bool) {
	e, ok := o.entries[k]
	return e.value, ok
}

func (o *ordered[K, V]) del(k K) {
	delete(o.entries, k)
}

func (o *ordered[K, V]) values() []V {
	if len(o.entries) == 0 {
		return nil
	}
	list := make([]orderedEntry[V], 0, len(o.entries))
	for _, e := range o.entries {
		list = append(list, e)
	}
	slices.SortFunc(list, func(a, b orderedEntry[V]) int { return a.seq - b.seq })

	out := make([]V, len(list))
	for i, e := range list {
		out[i] = e.value
	}
	return out
}
