package value

import (
	"strconv"
	"strings"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
)

// segment is one dotted-path component, pre-classified as an object key or
// an array index so get/has/set/delete/push don't each re-parse it.
type segment struct {
	raw     string
	index   int
	isIndex bool
}

func tokenizePath(path string) ([]segment, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, ".")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, &jsonerr.InvalidPathError{Path: path}
		}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			segs[i] = segment{raw: p, index: n, isIndex: true}
		} else {
			segs[i] = segment{raw: p}
		}
	}
	return segs, nil
}

// Get returns the value at path, or Null if absent. An empty path returns
// a clone of root.
func Get(root *Value, path string) (*Value, error) {
	segs, err := tokenizePath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return root.Clone(), nil
	}

	cur := root
	for _, s := range segs {
		switch cur.Kind {
		case KindObject:
			child, ok := cur.Obj.Get(s.raw)
			if !ok {
				return NewNull(), nil
			}
			cur = child
		case KindArray:
			if !s.isIndex || s.index >= len(cur.Arr) {
				return NewNull(), nil
			}
			cur = cur.Arr[s.index]
		default:
			return NewNull(), nil
		}
	}
	return cur.Clone(), nil
}

// Has reports whether a value exists at path.
func Has(root *Value, path string) (bool, error) {
	segs, err := tokenizePath(path)
	if err != nil {
		return false, err
	}
	if len(segs) == 0 {
		return true, nil
	}

	cur := root
	for i, s := range segs {
		switch cur.Kind {
		case KindObject:
			child, ok := cur.Obj.Get(s.raw)
			if !ok {
				return false, nil
			}
			cur = child
		case KindArray:
			if !s.isIndex || s.index >= len(cur.Arr) {
				return false, nil
			}
			cur = cur.Arr[s.index]
		default:
			return false, nil
		}
		_ = i
	}
	return true, nil
}

// Set replaces or creates the value at path, auto-vivifying intermediate
// containers as it descends. An empty path replaces root entirely.
func Set(root *Value, path string, v *Value) error {
	segs, err := tokenizePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		*root = *v.Clone()
		return nil
	}

	cur := root
	for i, s := range segs {
		last := i == len(segs)-1

		if cur.Kind == KindNull {
			if s.isIndex {
				*cur = Value{Kind: KindArray}
			} else {
				*cur = Value{Kind: KindObject, Obj: NewObject()}
			}
		}

		switch cur.Kind {
		case KindObject:
			child, ok := cur.Obj.Get(s.raw)
			if !ok {
				child = NewNull()
				cur.Obj.Set(s.raw, child)
			}
			if last {
				*child = *v.Clone()
			} else {
				cur = child
			}
		case KindArray:
			if !s.isIndex {
				return &jsonerr.TypeError{Path: path, Reason: "array indexed by a non-integer segment"}
			}
			for s.index >= len(cur.Arr) {
				cur.Arr = append(cur.Arr, NewNull())
			}
			child := cur.Arr[s.index]
			if last {
				*child = *v.Clone()
			} else {
				cur = child
			}
		default:
			return &jsonerr.TypeError{Path: path, Reason: "path segment blocked by a non-container value"}
		}
	}
	return nil
}

// Delete removes the entry at path. For arrays this shifts later elements
// left. It is a no-op if the parent container does not exist. An empty
// path resets root to an empty object.
func Delete(root *Value, path string) error {
	segs, err := tokenizePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		*root = Value{Kind: KindObject, Obj: NewObject()}
		return nil
	}

	cur := root
	for i, s := range segs {
		last := i == len(segs)-1

		switch cur.Kind {
		case KindObject:
			if last {
				cur.Obj.Delete(s.raw)
				return nil
			}
			child, ok := cur.Obj.Get(s.raw)
			if !ok {
				return nil
			}
			cur = child
		case KindArray:
			if !s.isIndex {
				return nil
			}
			if last {
				if s.index < len(cur.Arr) {
					cur.Arr = append(cur.Arr[:s.index], cur.Arr[s.index+1:]...)
				}
				return nil
			}
			if s.index >= len(cur.Arr) {
				return nil
			}
			cur = cur.Arr[s.index]
		default:
			return nil
		}
	}
	return nil
}

// Push appends v to the array at path, skipping the append if an element
// already equal to v is present (set-semantics dedup). It fails if path
// does not exist or does not resolve to an array.
func Push(root *Value, path string, v *Value) error {
	segs, err := tokenizePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return &jsonerr.TypeError{Path: path, Reason: "push requires an existing array"}
	}

	cur := root
	for i, s := range segs {
		last := i == len(segs)-1

		switch cur.Kind {
		case KindObject:
			child, ok := cur.Obj.Get(s.raw)
			if !ok {
				return &jsonerr.InvalidPathError{Path: path}
			}
			if last {
				return pushInto(child, v)
			}
			cur = child
		case KindArray:
			if !s.isIndex || s.index >= len(cur.Arr) {
				return &jsonerr.InvalidPathError{Path: path}
			}
			child := cur.Arr[s.index]
			if last {
				return pushInto(child, v)
			}
			cur = child
		default:
			return &jsonerr.InvalidPathError{Path: path}
		}
	}
	return nil
}

func pushInto(target *Value, v *Value) error {
	if target.Kind != KindArray {
		return &jsonerr.TypeError{Path: "", Reason: "push target is not an array"}
	}

	h, err := v.Hash()
	if err != nil {
		return err
	}
	for _, existing := range target.Arr {
		eh, err := existing.Hash()
		if err == nil && eh == h && existing.Equal(v) {
			return nil
		}
	}
	target.Arr = append(target.Arr, v.Clone())
	return nil
}
