package coll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/btree"
)

var (
	// ErrEmpty is returned when peeking or polling an empty collection.
	ErrEmpty = errors.New("coll: collection is empty")

	// ErrDuplicateKey is returned when inserting a key that is already stored.
	ErrDuplicateKey = errors.New("coll: key already present, use Update")

	// ErrKeyNotFound is returned when a (key, priority) pair is not stored.
	ErrKeyNotFound = errors.New("coll: key not found")
)

const btreeDegree = 16

// bucket holds the keys sharing one priority in insertion order.
type bucket struct {
	priority int32
	keys     []int32
}

func lessBucket(a, b *bucket) bool { return a.priority < b.priority }

// SortedCollection is an ordered multi-map of (key, priority) entries. The
// entry with the smallest priority is at the front; keys sharing a priority
// are served first-in first-out. Each key is stored at most once.
type SortedCollection struct {
	tree     *btree.BTreeG[*bucket]
	priority Map[int32, int32] // key -> priority
	probe    bucket
}

// NewSortedCollection creates an empty collection.
func NewSortedCollection() *SortedCollection {
	return &SortedCollection{
		tree: btree.NewG(btreeDegree, lessBucket),
	}
}

func (c *SortedCollection) bucketAt(priority int32) (*bucket, bool) {
	c.probe.priority = priority
	return c.tree.Get(&c.probe)
}

// Insert adds key with the given priority.
func (c *SortedCollection) Insert(key, priority int32) error {
	if c.priority.Contains(key) {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
	}
	b, ok := c.bucketAt(priority)
	if !ok {
		b = &bucket{priority: priority}
		c.tree.ReplaceOrInsert(b)
	}
	b.keys = append(b.keys, key)
	c.priority.Put(key, priority)
	return nil
}

// Remove deletes key stored under priority.
func (c *SortedCollection) Remove(key, priority int32) error {
	if p, ok := c.priority.Get(key); !ok || p != priority {
		return fmt.Errorf("%w: key %d with priority %d", ErrKeyNotFound, key, priority)
	}
	b, _ := c.bucketAt(priority)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
	if len(b.keys) == 0 {
		c.tree.Delete(b)
	}
	c.priority.Remove(key)
	return nil
}

// Update moves key from oldPriority to newPriority. The key goes to the back
// of its new priority level.
func (c *SortedCollection) Update(key, oldPriority, newPriority int32) error {
	if err := c.Remove(key, oldPriority); err != nil {
		return err
	}
	return c.Insert(key, newPriority)
}

// PeekKey returns the key of the minimum entry without removing it.
func (c *SortedCollection) PeekKey() (int32, error) {
	b, ok := c.tree.Min()
	if !ok {
		return 0, ErrEmpty
	}
	return b.keys[0], nil
}

// PeekValue returns the minimum priority without removing it.
func (c *SortedCollection) PeekValue() (int32, error) {
	b, ok := c.tree.Min()
	if !ok {
		return 0, ErrEmpty
	}
	return b.priority, nil
}

// PollKey removes the minimum entry and returns its key.
func (c *SortedCollection) PollKey() (int32, error) {
	b, ok := c.tree.Min()
	if !ok {
		return 0, ErrEmpty
	}
	key := b.keys[0]
	b.keys = b.keys[1:]
	if len(b.keys) == 0 {
		c.tree.DeleteMin()
	}
	c.priority.Remove(key)
	return key, nil
}

// Len returns the number of stored entries.
func (c *SortedCollection) Len() int { return c.priority.Len() }

// IsEmpty reports whether the collection holds no entries.
func (c *SortedCollection) IsEmpty() bool { return c.priority.Len() == 0 }

// Clear removes all entries.
func (c *SortedCollection) Clear() {
	c.tree.Clear(false)
	c.priority.Clear()
}

func (c *SortedCollection) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	first := true
	c.tree.Ascend(func(b *bucket) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%d:%d", b.priority, len(b.keys))
		return true
	})
	sb.WriteString("]")
	return sb.String()
}
