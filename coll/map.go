package coll

import "iter"

// Integer is the set of key types supported by Map and Set.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64
}

const (
	loadFactor  = 0.75
	minCapacity = 8
)

// mix is the 64-bit finalizer of MurmurHash3. Dense ids are sequential, so
// the mix spreads them across the table instead of filling one run.
func mix(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

func tableSize(expected int) int {
	n := minCapacity
	for float64(n)*loadFactor < float64(expected) {
		n <<= 1
	}
	return n
}

// Map is a hash map from an integer key to V. The zero value is an empty
// map ready to use.
type Map[K Integer, V any] struct {
	keys     []K
	vals     []V
	used     []bool
	mask     int
	size     int
	resizeAt int
}

// NewMap creates a map sized to hold expected entries without resizing.
func NewMap[K Integer, V any](expected int) *Map[K, V] {
	m := &Map[K, V]{}
	m.alloc(tableSize(expected))
	return m
}

func (m *Map[K, V]) alloc(n int) {
	m.keys = make([]K, n)
	m.vals = make([]V, n)
	m.used = make([]bool, n)
	m.mask = n - 1
	m.resizeAt = int(float64(n) * loadFactor)
}

func (m *Map[K, V]) home(k K) int {
	return int(mix(uint64(k)) & uint64(m.mask))
}

// find returns the slot holding k, or the free slot where k would go.
func (m *Map[K, V]) find(k K) (int, bool) {
	if m.used == nil {
		return 0, false
	}
	i := m.home(k)
	for m.used[i] {
		if m.keys[i] == k {
			return i, true
		}
		i = (i + 1) & m.mask
	}
	return i, false
}

// Put inserts or overwrites k. It returns the previous value and whether
// one existed.
func (m *Map[K, V]) Put(k K, v V) (V, bool) {
	if m.used == nil {
		m.alloc(minCapacity)
	}
	i, ok := m.find(k)
	if ok {
		prev := m.vals[i]
		m.vals[i] = v
		return prev, true
	}
	if m.size >= m.resizeAt {
		m.grow()
		i, _ = m.find(k)
	}
	m.keys[i] = k
	m.vals[i] = v
	m.used[i] = true
	m.size++

	var zero V
	return zero, false
}

// Get returns the value for k and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	i, ok := m.find(k)
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// GetOrDefault returns the value for k, or def if k is absent.
func (m *Map[K, V]) GetOrDefault(k K, def V) V {
	if v, ok := m.Get(k); ok {
		return v
	}
	return def
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	_, ok := m.find(k)
	return ok
}

// Remove deletes k and returns the removed value.
func (m *Map[K, V]) Remove(k K) (V, bool) {
	i, ok := m.find(k)
	if !ok {
		var zero V
		return zero, false
	}
	v := m.vals[i]
	m.removeAt(i)
	m.size--
	return v, true
}

// removeAt closes the gap left at slot i by shifting back every entry of
// the probe run that would otherwise become unreachable.
func (m *Map[K, V]) removeAt(i int) {
	j := i
	for {
		j = (j + 1) & m.mask
		if !m.used[j] {
			break
		}
		h := m.home(m.keys[j])
		// Entry j stays if its home lies cyclically in (i, j].
		if i <= j {
			if i < h && h <= j {
				continue
			}
		} else if i < h || h <= j {
			continue
		}
		m.keys[i] = m.keys[j]
		m.vals[i] = m.vals[j]
		i = j
	}

	var (
		zeroK K
		zeroV V
	)
	m.keys[i] = zeroK
	m.vals[i] = zeroV
	m.used[i] = false
}

func (m *Map[K, V]) grow() {
	keys, vals, used := m.keys, m.vals, m.used
	m.alloc(len(keys) * 2)
	for i, u := range used {
		if !u {
			continue
		}
		j, _ := m.find(keys[i])
		m.keys[j] = keys[i]
		m.vals[j] = vals[i]
		m.used[j] = true
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return m.size }

// Clear removes all entries. The table keeps its current capacity.
func (m *Map[K, V]) Clear() {
	if m.size == 0 {
		return
	}
	clear(m.keys)
	clear(m.vals)
	clear(m.used)
	m.size = 0
}

// All iterates over the entries in table order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, u := range m.used {
			if u && !yield(m.keys[i], m.vals[i]) {
				return
			}
		}
	}
}
