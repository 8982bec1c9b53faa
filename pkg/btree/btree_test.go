package btree

import (
	"testing"

	"github.com/bobboyms/jsondb/pkg/types"
)

func newLeafWithKeys(t int, keys []string, values []int64) *Node {
	n := NewNode(t, true)
	for _, k := range keys {
		n.Keys = append(n.Keys, types.VarcharKey(k))
	}
	n.Values = append(n.Values, values...)
	n.N = len(n.Keys)
	return n
}

func newInternalWithKeys(t int, keys []string, children []*Node) *Node {
	n := NewNode(t, false)
	for _, k := range keys {
		n.Keys = append(n.Keys, types.VarcharKey(k))
	}
	n.Children = append(n.Children, children...)
	n.N = len(n.Keys)
	return n
}

func upsertSet(tree *BPlusTree, key types.Comparable, value int64) error {
	return tree.Upsert(key, func(oldValue int64, exists bool) (int64, error) {
		return value, nil
	})
}

func TestSplitChild_Leaf(t *testing.T) {
	tVal := 3
	childLeft := newLeafWithKeys(tVal, []string{"a", "b", "c", "d", "e"}, []int64{1, 2, 3, 4, 5})
	oldNext := NewNode(tVal, true)
	childLeft.Next = oldNext

	parent := NewNode(tVal, false)
	parent.Children = append(parent.Children, childLeft)

	parent.SplitChild(0)

	if len(parent.Keys) != 1 || parent.Keys[0].Compare(types.VarcharKey("c")) != 0 {
		t.Fatalf("parent keys = %v, want [c]", parent.Keys)
	}
	if len(parent.Children) != 2 {
		t.Fatalf("parent children len = %d, want 2", len(parent.Children))
	}

	left := parent.Children[0]
	right := parent.Children[1]

	if !left.Leaf || !right.Leaf {
		t.Fatalf("expected both children to be leaves")
	}
	if got := left.Keys; len(got) != 2 || got[0].Compare(types.VarcharKey("a")) != 0 || got[1].Compare(types.VarcharKey("b")) != 0 {
		t.Fatalf("left keys = %v, want [a b]", got)
	}
	if got := right.Keys; len(got) != 3 {
		t.Fatalf("right keys len = %d, want 3", len(got))
	}
	if left.Next != right {
		t.Fatalf("left.Next should point to right child")
	}
	if right.Next != oldNext {
		t.Fatalf("right.Next should preserve previous Next")
	}
}

func TestSplitChild_Internal(t *testing.T) {
	tVal := 3
	children := []*Node{
		NewNode(tVal, true), NewNode(tVal, true), NewNode(tVal, true),
		NewNode(tVal, true), NewNode(tVal, true), NewNode(tVal, true),
	}
	childLeft := newInternalWithKeys(tVal, []string{"a", "b", "c", "d", "e"}, children)

	parent := NewNode(tVal, false)
	parent.Children = append(parent.Children, childLeft)

	parent.SplitChild(0)

	if len(parent.Keys) != 1 || parent.Keys[0].Compare(types.VarcharKey("c")) != 0 {
		t.Fatalf("parent keys = %v, want [c]", parent.Keys)
	}

	left := parent.Children[0]
	right := parent.Children[1]

	if left.Leaf || right.Leaf {
		t.Fatalf("expected both children to be internal")
	}
	if len(left.Children) != 3 || len(right.Children) != 3 {
		t.Fatalf("expected 3 children on each side, got left=%d right=%d", len(left.Children), len(right.Children))
	}
	if left.Next != nil || right.Next != nil {
		t.Errorf("internal nodes should not have Next pointers")
	}
}

func TestUpsert_InsertsAndUpdates(t *testing.T) {
	tree := NewTree(3)

	if err := upsertSet(tree, types.VarcharKey("banana"), 1); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := upsertSet(tree, types.VarcharKey("apple"), 2); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := upsertSet(tree, types.VarcharKey("cherry"), 3); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	v, ok := tree.Get(types.VarcharKey("apple"))
	if !ok || v != 2 {
		t.Fatalf("Get(apple) = %d, %v; want 2, true", v, ok)
	}

	if err := upsertSet(tree, types.VarcharKey("apple"), 99); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	v, ok = tree.Get(types.VarcharKey("apple"))
	if !ok || v != 99 {
		t.Fatalf("Get(apple) after update = %d, %v; want 99, true", v, ok)
	}
}

func TestUpsert_OrderingAcrossSplits(t *testing.T) {
	tree := NewTree(3)
	words := []string{"fig", "date", "banana", "elderberry", "apple", "cherry"}
	for i, w := range words {
		if err := upsertSet(tree, types.VarcharKey(w), int64(i)); err != nil {
			t.Fatalf("insert %s failed: %v", w, err)
		}
	}

	if tree.Root.Leaf {
		t.Fatal("root should not be a leaf after enough inserts to split")
	}

	node, idx := tree.FindLeafLowerBound(nil)
	var got []string
	for node != nil {
		for i := idx; i < node.N; i++ {
			got = append(got, node.Keys[i].(types.VarcharKey).String())
		}
		next := node.Next
		if next != nil {
			next.RLock()
		}
		node.RUnlock()
		node = next
		idx = 0
	}

	want := []string{"apple", "banana", "cherry", "date", "elderberry", "fig"}
	if len(got) != len(want) {
		t.Fatalf("scan order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan order = %v, want %v", got, want)
		}
	}
}

func TestUpsert_Callback_Exists_Flag(t *testing.T) {
	tree := NewTree(3)
	var sawExists []bool

	record := func(key types.Comparable, value int64) {
		_ = tree.Upsert(key, func(oldValue int64, exists bool) (int64, error) {
			sawExists = append(sawExists, exists)
			return value, nil
		})
	}

	record(types.VarcharKey("x"), 1)
	record(types.VarcharKey("x"), 2)

	if len(sawExists) != 2 || sawExists[0] != false || sawExists[1] != true {
		t.Fatalf("exists flags = %v, want [false true]", sawExists)
	}
}

func TestDelete_SimpleNoUnderflow(t *testing.T) {
	tVal := 3
	leaf := newLeafWithKeys(tVal, []string{"a", "b", "c"}, []int64{1, 2, 3})
	tree := &BPlusTree{T: tVal, Root: leaf}

	if !tree.Remove(types.VarcharKey("b")) {
		t.Fatalf("expected delete to return true")
	}
	if got := leaf.Keys; len(got) != 2 || got[0].Compare(types.VarcharKey("a")) != 0 || got[1].Compare(types.VarcharKey("c")) != 0 {
		t.Fatalf("keys after delete = %v, want [a c]", got)
	}
}

func TestDelete_BorrowFromPrev(t *testing.T) {
	tVal := 3
	left := newLeafWithKeys(tVal, []string{"e", "f", "g", "h"}, []int64{50, 60, 70, 80})
	target := newLeafWithKeys(tVal, []string{"m", "n"}, []int64{200, 300})
	right := newLeafWithKeys(tVal, []string{"x", "y"}, []int64{400, 500})

	parent := newInternalWithKeys(tVal, []string{"m", "x"}, []*Node{left, target, right})

	if !parent.remove(types.VarcharKey("m")) {
		t.Fatalf("delete should succeed")
	}
	if got := target.Keys; len(got) != 2 || got[0].Compare(types.VarcharKey("h")) != 0 || got[1].Compare(types.VarcharKey("n")) != 0 {
		t.Fatalf("target keys = %v, want [h n]", got)
	}
	if parent.Keys[0].Compare(types.VarcharKey("h")) != 0 {
		t.Fatalf("parent separator = %v, want h", parent.Keys[0])
	}
}

func TestDelete_BorrowFromNext(t *testing.T) {
	tVal := 3
	target := newLeafWithKeys(tVal, []string{"j", "k"}, []int64{100, 200})
	right := newLeafWithKeys(tVal, []string{"m", "n", "o", "p"}, []int64{400, 500, 600, 700})

	parent := newInternalWithKeys(tVal, []string{"m"}, []*Node{target, right})

	if !parent.remove(types.VarcharKey("j")) {
		t.Fatalf("delete should succeed")
	}
	if got := target.Keys; len(got) != 2 || got[0].Compare(types.VarcharKey("k")) != 0 || got[1].Compare(types.VarcharKey("m")) != 0 {
		t.Fatalf("target keys = %v, want [k m]", got)
	}
	if parent.Keys[0].Compare(types.VarcharKey("n")) != 0 {
		t.Fatalf("parent separator = %v, want n", parent.Keys[0])
	}
}

func TestDelete_MergeLeaves(t *testing.T) {
	tVal := 3
	left := newLeafWithKeys(tVal, []string{"a", "b"}, []int64{100, 200})
	mid := newLeafWithKeys(tVal, []string{"m1", "m2"}, []int64{310, 320})
	right := newLeafWithKeys(tVal, []string{"x", "y"}, []int64{500, 600})
	left.Next = mid
	mid.Next = right

	parent := newInternalWithKeys(tVal, []string{"m1", "x"}, []*Node{left, mid, right})

	if !parent.remove(types.VarcharKey("m1")) {
		t.Fatalf("delete should succeed")
	}
	merged := parent.Children[1]
	if got := merged.Keys; len(got) != 3 || got[0].Compare(types.VarcharKey("m2")) != 0 {
		t.Fatalf("merged keys = %v, want to start with m2", got)
	}
	if parent.N != 1 {
		t.Fatalf("parent.N after merge = %d, want 1", parent.N)
	}
	if left.Next != merged || merged.Next != nil {
		t.Fatalf("Next pointers incorrect after merge")
	}
}

func TestDelete_RootCollapses(t *testing.T) {
	tVal := 3
	left := newLeafWithKeys(tVal, []string{"a", "b"}, []int64{100, 200})
	right := newLeafWithKeys(tVal, []string{"c", "d"}, []int64{300, 400})
	root := newInternalWithKeys(tVal, []string{"c"}, []*Node{left, right})
	tree := &BPlusTree{T: tVal, Root: root}

	if !tree.Remove(types.VarcharKey("d")) {
		t.Fatalf("delete should succeed")
	}
	if tree.Root.N == 0 && !tree.Root.Leaf {
		tree.Root = tree.Root.Children[0]
	}
	if !tree.Root.Leaf {
		t.Fatalf("root should now be a leaf")
	}
	if tree.Root.N != 3 {
		t.Fatalf("root.N = %d, want 3", tree.Root.N)
	}
}

func TestDelete_MissingKey(t *testing.T) {
	tVal := 3
	leaf := newLeafWithKeys(tVal, []string{"a", "b", "c"}, []int64{1, 2, 3})
	tree := &BPlusTree{T: tVal, Root: leaf}

	if tree.Remove(types.VarcharKey("zzz")) {
		t.Fatalf("expected delete of missing key to return false")
	}
	if leaf.N != 3 {
		t.Fatalf("leaf.N changed to %d, want 3", leaf.N)
	}
}

func TestReplace_ForcesValueEvenIfAbsent(t *testing.T) {
	tree := NewTree(3)
	if err := tree.Replace(types.VarcharKey("k"), 7); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	v, ok := tree.Get(types.VarcharKey("k"))
	if !ok || v != 7 {
		t.Fatalf("Get after Replace = %d, %v; want 7, true", v, ok)
	}
	if err := tree.Replace(types.VarcharKey("k"), 8); err != nil {
		t.Fatalf("second Replace failed: %v", err)
	}
	v, _ = tree.Get(types.VarcharKey("k"))
	if v != 8 {
		t.Fatalf("Get after second Replace = %d, want 8", v)
	}
}

func TestGet_MissingKeyOnEmptyTree(t *testing.T) {
	tree := NewTree(3)
	if _, ok := tree.Get(types.VarcharKey("nope")); ok {
		t.Fatalf("expected not found on empty tree")
	}
}
