// Package coll provides primitive-keyed collections for hot-path graph
// traversal.
//
// Map and Set are open-addressing hash tables over raw integer keys. They
// avoid the per-entry allocations of a Go map with boxed values and have a
// predictable memory layout:
//
//   - power-of-two table with linear probing
//   - resize to double capacity once the load factor of 0.75 is exceeded
//   - backward-shift deletion (no tombstones, no resize-down)
//
// SortedCollection is an ordered multi-map from priority to keys with
// peek/poll-minimum semantics.
//
// None of the types are safe for concurrent mutation. Concurrent reads are
// safe once the last write has happened-before them.
package coll
