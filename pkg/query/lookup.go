package query

import (
	"github.com/bobboyms/jsondb/pkg/index"
	"github.com/bobboyms/jsondb/pkg/value"
	"golang.org/x/sync/errgroup"
)

// ParallelLookup performs a left outer hash join: every item of the
// collection at leftPath is matched against items of the collection at
// rightPath whose rightField projects to the same canonical string as
// the left item's leftField, and the matches are attached to a cloned
// copy of the left item under asField. Left items with no match still
// appear, with an empty array under asField.
func ParallelLookup(root *value.Value, leftPath, rightPath, leftField, rightField, asField string) ([]*value.Value, error) {
	leftColl, err := value.Get(root, leftPath)
	if err != nil {
		return nil, err
	}
	rightColl, err := value.Get(root, rightPath)
	if err != nil {
		return nil, err
	}
	leftItems := collectionItems(leftColl)
	rightItems := collectionItems(rightColl)

	buckets := buildRightBuckets(rightItems, rightField)

	probe := func(it *value.Value) *value.Value {
		key, err := value.Get(it, leftField)
		var matches []*value.Value
		if err == nil {
			matches = buckets[index.Canonical(key)]
		}
		joined := it.Clone()
		value.Set(joined, asField, value.NewArray(cloneAll(matches)...))
		return joined
	}

	if !shouldParallelize(len(leftItems)) {
		out := make([]*value.Value, len(leftItems))
		for i, it := range leftItems {
			out[i] = probe(it)
		}
		return out, nil
	}

	out := make([]*value.Value, len(leftItems))
	var g errgroup.Group
	for i, it := range leftItems {
		i, it := i, it
		g.Go(func() error {
			out[i] = probe(it)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func buildRightBuckets(rightItems []*value.Value, rightField string) map[string][]*value.Value {
	buckets := make(map[string][]*value.Value)
	for _, it := range rightItems {
		key, err := value.Get(it, rightField)
		if err != nil {
			continue
		}
		canon := index.Canonical(key)
		buckets[canon] = append(buckets[canon], it)
	}
	return buckets
}

func cloneAll(items []*value.Value) []*value.Value {
	out := make([]*value.Value, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
