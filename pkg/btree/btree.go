package btree

import (
	"sort"
	"sync"

	"github.com/bobboyms/jsondb/pkg/types"
)

// BPlusTree is a concurrent B+Tree keyed by types.Comparable, used by
// pkg/index as the ordered structure backing a secondary index. Inserts
// (including root splits) are latch-crabbed: a writer never holds more
// than a parent-child pair of node locks at once, and releases the parent
// as soon as the child is locked and known safe. Remove instead holds the
// tree mutex for the whole delete, including rebalancing, and takes no
// node locks.
type BPlusTree struct {
	T    int
	Root *Node
	mu   sync.RWMutex // protects the Root pointer itself across root splits
}

// NewTree creates an empty tree with minimum degree t.
func NewTree(t int) *BPlusTree {
	return &BPlusTree{
		T:    t,
		Root: NewNode(t, true),
	}
}

// Replace forces key's value to newValue, inserting it if absent.
func (b *BPlusTree) Replace(key types.Comparable, newValue int64) error {
	return b.Upsert(key, func(oldValue int64, exists bool) (int64, error) {
		return newValue, nil
	})
}

// Upsert runs fn against the current value for key (if any) while holding
// the leaf's lock, and stores fn's result. This gives callers an atomic
// read-modify-write per key.
func (b *BPlusTree) Upsert(key types.Comparable, fn func(oldValue int64, exists bool) (newValue int64, err error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode(b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends the tree, splitting full nodes preventively so
// that by the time it reaches a leaf, the leaf is guaranteed to have room.
// curr must already be locked by the caller.
func (b *BPlusTree) upsertTopDown(curr *Node, key types.Comparable, fn func(oldValue int64, exists bool) (newValue int64, err error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)

			if key.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		// Latch crabbing: release the parent, keep only the child locked.
		curr.Unlock()
		curr = child
	}

	// curr is a leaf, locked, and guaranteed non-full by preventive splitting.
	return curr.UpsertNonFull(key, fn)
}

// Remove deletes key from the tree, rebalancing underflowed nodes along
// the way. It reports whether the key was present.
func (b *BPlusTree) Remove(key types.Comparable) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Root.remove(key)
}

// Search looks up key with RLock coupling across the descent.
func (b *BPlusTree) Search(key types.Comparable) (*Node, bool) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr, true
		}
	}
	return nil, false
}

// Get returns the value stored for key, thread-safe via internal latching.
func (b *BPlusTree) Get(key types.Comparable) (int64, bool) {
	if b == nil {
		return 0, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return 0, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return 0, false
}

// FindLeafLowerBound returns the leaf (RLocked) and index at which a range
// scan starting at key should begin. Passing a nil key starts at the
// leftmost leaf. The caller must RUnlock the returned node.
func (b *BPlusTree) FindLeafLowerBound(key types.Comparable) (*Node, int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if key == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool {
				return curr.Keys[i].Compare(key) >= 0
			})
		}

		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if key == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool {
			return curr.Keys[i].Compare(key) >= 0
		})
	}

	return curr, idx
}
