package dirty

import "iter"

// index is the in-memory mapping from key to value plus the list of
// live keys in insertion order (order of first-ever write, stable
// across updates). keys and m always agree on membership.
type index struct {
	m    map[string]any
	keys []string
}

func newIndex() *index {
	return &index{
		m: map[string]any{},
	}
}

func (x *index) get(key string) (any, bool) {
	v, ok := x.m[key]
	return v, ok
}

func (x *index) put(key string, val any) {
	if _, ok := x.m[key]; !ok {
		x.keys = append(x.keys, key)
	}
	x.m[key] = val
}

// delete removes key. no-op if not present
func (x *index) delete(key string) {
	if _, ok := x.m[key]; !ok {
		return
	}
	delete(x.m, key)
	for i, k := range x.keys {
		if k == key {
			x.keys = append(x.keys[:i], x.keys[i+1:]...)
			break
		}
	}
}

func (x *index) len() int {
	return len(x.keys)
}

func (x *index) firstKey() (string, bool) {
	if len(x.keys) == 0 {
		return "", false
	}
	return x.keys[0], true
}

func (x *index) lastKey() (string, bool) {
	if len(x.keys) == 0 {
		return "", false
	}
	return x.keys[len(x.keys)-1], true
}

// keysSeq returns a lazy, restartable iterator over live keys in
// insertion order, over a snapshot so that mutations during iteration
// are safe.
func (x *index) keysSeq() iter.Seq[string] {
	snapshot := append([]string{}, x.keys...)
	return func(yield func(string) bool) {
		for _, k := range snapshot {
			if !yield(k) {
				return
			}
		}
	}
}
