// Package value implements the single mutable document tree jsondb stores:
// a tagged union of null/bool/number/string/array/object, addressed by
// dotted string paths, plus the path-navigation operations (get/has/set/
// delete/push) that are the primary mutation surface of the database.
package value

import (
	"github.com/mitchellh/hashstructure"
)

// Kind discriminates the variant a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged union node of the document tree. Only the field
// matching Kind is meaningful; the rest are zero.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []*Value
	Obj  *Object
}

// Object is an insertion-order-preserving string-keyed map. JSON objects
// in jsondb round-trip with their original key order, unlike a plain Go
// map.
type Object struct {
	keys []string
	vals map[string]*Value
}

func NewObject() *Object {
	return &Object{vals: make(map[string]*Value)}
}

func (o *Object) Get(key string) (*Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set inserts or replaces key's value, preserving key's existing position
// if it was already present.
func (o *Object) Set(key string, v *Value) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *Object) Delete(key string) {
	if _, exists := o.vals[key]; !exists {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *Object) Keys() []string { return o.keys }

func (o *Object) Len() int { return len(o.keys) }

func NewNull() *Value              { return &Value{Kind: KindNull} }
func NewBool(b bool) *Value        { return &Value{Kind: KindBool, Bool: b} }
func NewNumber(n float64) *Value   { return &Value{Kind: KindNumber, Num: n} }
func NewString(s string) *Value    { return &Value{Kind: KindString, Str: s} }
func NewArray(items ...*Value) *Value {
	return &Value{Kind: KindArray, Arr: items}
}
func NewEmptyObject() *Value { return &Value{Kind: KindObject, Obj: NewObject()} }

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return NewNull()
	}
	switch v.Kind {
	case KindArray:
		arr := make([]*Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.Clone()
		}
		return &Value{Kind: KindArray, Arr: arr}
	case KindObject:
		obj := NewObject()
		for _, k := range v.Obj.keys {
			child, _ := v.Obj.Get(k)
			obj.Set(k, child.Clone())
		}
		return &Value{Kind: KindObject, Obj: obj}
	default:
		cp := *v
		return &cp
	}
}

// Equal reports deep equality. Object comparison is order-independent;
// array comparison is order-sensitive.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindNumber:
		return v.Num == other.Num
	case KindString:
		return v.Str == other.Str
	case KindArray:
		if len(v.Arr) != len(other.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(other.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if v.Obj.Len() != other.Obj.Len() {
			return false
		}
		for _, k := range v.Obj.keys {
			a, _ := v.Obj.Get(k)
			b, ok := other.Obj.Get(k)
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// toPlain converts v into a plain interface{} tree (built-in map/slice) so
// it can be hashed by mitchellh/hashstructure, which only inspects
// exported struct fields and would otherwise miss Object's unexported
// bookkeeping.
func (v *Value) toPlain() interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindArray:
		out := make([]interface{}, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.toPlain()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, v.Obj.Len())
		for _, k := range v.Obj.keys {
			child, _ := v.Obj.Get(k)
			out[k] = child.toPlain()
		}
		return out
	default:
		return nil
	}
}

// Hash returns a structural hash, used as a cheap pre-filter before the
// exact Equal comparison that push's set-semantics dedup performs.
func (v *Value) Hash() (uint64, error) {
	return hashstructure.Hash(v.toPlain(), nil)
}
