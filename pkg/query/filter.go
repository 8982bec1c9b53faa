package query

import (
	"github.com/bobboyms/jsondb/pkg/value"
	"golang.org/x/sync/errgroup"
)

// collectionItems resolves coll's iterable members: an object's values
// in key order, an array's elements in index order, or nil for anything
// else (a scalar or Null collection simply yields no items).
func collectionItems(coll *value.Value) []*value.Value {
	switch coll.Kind {
	case value.KindObject:
		items := make([]*value.Value, 0, coll.Obj.Len())
		for _, k := range coll.Obj.Keys() {
			v, _ := coll.Obj.Get(k)
			items = append(items, v)
		}
		return items
	case value.KindArray:
		return coll.Arr
	default:
		return nil
	}
}

// ParallelQuery resolves collectionPath under root and returns every
// member matching every predicate (AND-combined). Below the
// parallelism threshold, or on a host without spare cores, it evaluates
// sequentially and preserves source order; above it, it fans out across
// goroutines and the result order is unspecified.
func ParallelQuery(root *value.Value, collectionPath string, predicates []Predicate) ([]*value.Value, error) {
	coll, err := value.Get(root, collectionPath)
	if err != nil {
		return nil, err
	}
	items := collectionItems(coll)

	compiled, err := compile(predicates)
	if err != nil {
		return nil, err
	}

	if !shouldParallelize(len(items)) {
		out := make([]*value.Value, 0, len(items))
		for _, it := range items {
			if matchesAll(it, compiled) {
				out = append(out, it.Clone())
			}
		}
		return out, nil
	}

	hits := make([]*value.Value, len(items))
	var g errgroup.Group
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			if matchesAll(it, compiled) {
				hits[i] = it.Clone()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*value.Value, 0, len(items))
	for _, h := range hits {
		if h != nil {
			out = append(out, h)
		}
	}
	return out, nil
}
