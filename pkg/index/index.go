// Package index implements a persistent secondary index over document
// paths, backed by pkg/btree for ordering and supporting range scans.
package index

import (
	"bytes"
	"os"
	"strconv"
	"sync"

	"github.com/bobboyms/jsondb/pkg/btree"
	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/types"
	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bytedance/sonic"
	natomic "github.com/natefinch/atomic"
)

// Canonical projects a value into the string form used as a B-tree key.
// Numbers use their decimal text, which is only lexicographically
// consistent with numeric order for equal-width, non-negative values, so
// Range over numeric keys follows string order (e.g. "10" sorts before
// "9").
func Canonical(v *value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.Str
	case value.KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case value.KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case value.KindNull:
		return "null"
	default:
		data, err := value.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Index maps a document field's canonical value to the set of document
// paths holding that value, ordered by canonical key for range scans.
type Index struct {
	mu sync.RWMutex

	Name  string
	Field string

	tree       *btree.BPlusTree
	buckets    map[int64][]string
	reverse    map[string]string // doc path -> canonical key
	nextBucket int64

	filePath string
	dirty    bool
}

// New creates an empty index. filePath is where Save and LoadOrCreate
// persist it.
func New(name, field, filePath string) *Index {
	return &Index{
		Name:     name,
		Field:    field,
		tree:     btree.NewTree(32),
		buckets:  make(map[int64][]string),
		reverse:  make(map[string]string),
		filePath: filePath,
	}
}

// LoadOrCreate loads a previously saved index from filePath, or returns
// an empty one if no file exists yet.
func LoadOrCreate(name, field, filePath string) (*Index, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return New(name, field, filePath), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &jsonerr.IOError{Op: "read index file", Err: err}
	}

	var persisted persistedIndex
	if err := sonic.Unmarshal(data, &persisted); err != nil {
		return nil, &jsonerr.ParseError{Context: "index file", Err: err}
	}

	idx := New(name, field, filePath)
	for key, docPaths := range persisted.Forward {
		bucketID := idx.nextBucket
		idx.nextBucket++
		idx.buckets[bucketID] = append([]string(nil), docPaths...)
		if err := idx.tree.Replace(types.VarcharKey(key), bucketID); err != nil {
			return nil, err
		}
	}
	for docPath, key := range persisted.Reverse {
		idx.reverse[docPath] = key
	}
	return idx, nil
}

type persistedIndex struct {
	Name    string              `json:"name"`
	Field   string              `json:"field"`
	Forward map[string][]string `json:"forward"`
	Reverse map[string]string   `json:"reverse"`
}

// Insert records that docPath now holds key, removing any prior
// association for docPath under a different key.
func (idx *Index) Insert(key *value.Value, docPath string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	canon := Canonical(key)

	if oldKey, ok := idx.reverse[docPath]; ok {
		if oldKey == canon {
			return nil
		}
		idx.removeFromBucketLocked(oldKey, docPath)
	}

	idx.reverse[docPath] = canon

	var bucketID int64
	err := idx.tree.Upsert(types.VarcharKey(canon), func(oldValue int64, exists bool) (int64, error) {
		if exists {
			bucketID = oldValue
			return oldValue, nil
		}
		bucketID = idx.nextBucket
		idx.nextBucket++
		return bucketID, nil
	})
	if err != nil {
		return err
	}

	idx.buckets[bucketID] = append(idx.buckets[bucketID], docPath)
	idx.dirty = true
	return nil
}

// Remove drops docPath from whichever bucket it currently belongs to.
func (idx *Index) Remove(docPath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	oldKey, ok := idx.reverse[docPath]
	if !ok {
		return
	}
	delete(idx.reverse, docPath)
	idx.removeFromBucketLocked(oldKey, docPath)
	idx.dirty = true
}

func (idx *Index) removeFromBucketLocked(canon, docPath string) {
	bucketID, found := idx.tree.Get(types.VarcharKey(canon))
	if !found {
		return
	}
	list := idx.buckets[bucketID]
	for i, p := range list {
		if p == docPath {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(idx.buckets, bucketID)
		idx.tree.Remove(types.VarcharKey(canon))
	} else {
		idx.buckets[bucketID] = list
	}
}

// Find returns the document paths currently associated with key.
func (idx *Index) Find(key *value.Value) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bucketID, found := idx.tree.Get(types.VarcharKey(Canonical(key)))
	if !found {
		return nil
	}
	return append([]string(nil), idx.buckets[bucketID]...)
}

// Range returns every document path whose canonical key falls within
// [start, end] (inclusive). A nil bound is unbounded on that side.
func (idx *Index) Range(start, end *value.Value) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var startKey types.Comparable
	if start != nil {
		startKey = types.VarcharKey(Canonical(start))
	}

	// FindLeafLowerBound returns the leaf already RLocked; walking the
	// leaf linked list uses lock coupling, acquiring the next leaf's
	// RLock before releasing the current one.
	leaf, i := idx.tree.FindLeafLowerBound(startKey)
	var results []string

	for leaf != nil {
		for ; i < leaf.N; i++ {
			k := leaf.Keys[i]
			if end != nil {
				endKey := types.VarcharKey(Canonical(end))
				if k.Compare(endKey) > 0 {
					leaf.RUnlock()
					return results
				}
			}
			results = append(results, idx.buckets[leaf.Values[i]]...)
		}
		next := leaf.Next
		if next != nil {
			next.RLock()
		}
		leaf.RUnlock()
		leaf = next
		i = 0
	}
	return results
}

// Clear removes every entry from the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tree = btree.NewTree(32)
	idx.buckets = make(map[int64][]string)
	idx.reverse = make(map[string]string)
	idx.nextBucket = 0
	idx.dirty = true
}

// Save persists the index to filePath via a temp-file-then-rename, and
// is a no-op if nothing has changed since the last save.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.dirty {
		return nil
	}

	persisted := persistedIndex{
		Name:    idx.Name,
		Field:   idx.Field,
		Forward: make(map[string][]string),
		Reverse: idx.reverse,
	}
	leaf, i := idx.tree.FindLeafLowerBound(nil)
	for leaf != nil {
		for ; i < leaf.N; i++ {
			k := leaf.Keys[i].(types.VarcharKey)
			persisted.Forward[string(k)] = append([]string(nil), idx.buckets[leaf.Values[i]]...)
		}
		next := leaf.Next
		if next != nil {
			next.RLock()
		}
		leaf.RUnlock()
		leaf = next
		i = 0
	}

	data, err := sonic.Marshal(&persisted)
	if err != nil {
		return &jsonerr.ParseError{Context: "index file", Err: err}
	}

	if err := natomic.WriteFile(idx.filePath, bytes.NewReader(data)); err != nil {
		return &jsonerr.IOError{Op: "write index file", Err: err}
	}
	idx.dirty = false
	return nil
}
