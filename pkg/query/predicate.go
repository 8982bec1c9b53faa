package query

import (
	"regexp"
	"strings"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
)

// Operator names one of the predicate comparisons a Filter can apply to
// a document field. The names mirror the wire vocabulary callers pass
// across the external interface, so they are lowerCamelCase rather than
// the Go-idiomatic UpperCamelCase used elsewhere in this package.
type Operator string

const (
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpGreaterThan  Operator = "gt"
	OpGreaterEqual Operator = "gte"
	OpLessThan     Operator = "lt"
	OpLessEqual    Operator = "lte"
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "startswith"
	OpEndsWith     Operator = "endswith"
	OpIn           Operator = "in"
	OpNotIn        Operator = "notin"
	OpRegex        Operator = "regex"
	OpContainsAll  Operator = "containsAll"
	OpContainsAny  Operator = "containsAny"
)

// Predicate is one {field, op, value} triple. A Filter is a sequence of
// predicates combined by AND.
type Predicate struct {
	Field string
	Op    Operator
	Value *value.Value
}

// compiledPredicate holds a Predicate plus whatever one-time compilation
// work its operator needs, so a Filter over many documents compiles a
// regex at most once instead of once per document.
type compiledPredicate struct {
	Predicate
	re *regexp.Regexp
}

// compile validates and prepares predicates for repeated evaluation.
func compile(predicates []Predicate) ([]compiledPredicate, error) {
	out := make([]compiledPredicate, len(predicates))
	for i, p := range predicates {
		cp := compiledPredicate{Predicate: p}
		if p.Op == OpRegex {
			if p.Value == nil || p.Value.Kind != value.KindString {
				return nil, &jsonerr.TypeError{Path: p.Field, Reason: "regex predicate value must be a string pattern"}
			}
			re, err := regexp.Compile(p.Value.Str)
			if err != nil {
				return nil, &jsonerr.ParseError{Context: "regex predicate pattern", Err: err}
			}
			cp.re = re
		}
		out[i] = cp
	}
	return out, nil
}

// matchesAll reports whether doc satisfies every compiled predicate.
func matchesAll(doc *value.Value, predicates []compiledPredicate) bool {
	for _, p := range predicates {
		if !matchesOne(doc, p) {
			return false
		}
	}
	return true
}

func matchesOne(doc *value.Value, p compiledPredicate) bool {
	fieldVal, err := value.Get(doc, p.Field)
	if err != nil {
		return false
	}

	switch p.Op {
	case OpEqual:
		return fieldVal.Equal(p.Value)
	case OpNotEqual:
		return !fieldVal.Equal(p.Value)
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		a, aok := asFloat(fieldVal)
		b, bok := asFloat(p.Value)
		if !aok || !bok {
			return false
		}
		switch p.Op {
		case OpGreaterThan:
			return a > b
		case OpGreaterEqual:
			return a >= b
		case OpLessThan:
			return a < b
		default:
			return a <= b
		}
	case OpContains, OpStartsWith, OpEndsWith:
		if fieldVal.Kind != value.KindString || p.Value.Kind != value.KindString {
			return false
		}
		switch p.Op {
		case OpContains:
			return strings.Contains(fieldVal.Str, p.Value.Str)
		case OpStartsWith:
			return strings.HasPrefix(fieldVal.Str, p.Value.Str)
		default:
			return strings.HasSuffix(fieldVal.Str, p.Value.Str)
		}
	case OpIn, OpNotIn:
		member := memberOf(fieldVal, p.Value)
		if p.Op == OpIn {
			return member
		}
		return !member
	case OpRegex:
		if fieldVal.Kind != value.KindString {
			return false
		}
		return p.re.MatchString(fieldVal.Str)
	case OpContainsAll, OpContainsAny:
		if fieldVal.Kind != value.KindArray || p.Value == nil || p.Value.Kind != value.KindArray {
			return false
		}
		if p.Op == OpContainsAll {
			for _, want := range p.Value.Arr {
				if !memberOf(want, fieldVal) {
					return false
				}
			}
			return true
		}
		for _, want := range p.Value.Arr {
			if memberOf(want, fieldVal) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func asFloat(v *value.Value) (float64, bool) {
	if v == nil || v.Kind != value.KindNumber {
		return 0, false
	}
	return v.Num, true
}

// memberOf reports whether needle appears, by deep equality, among
// haystack's array elements. haystack must already be known to be an
// array.
func memberOf(needle, haystack *value.Value) bool {
	if haystack == nil || haystack.Kind != value.KindArray {
		return false
	}
	for _, e := range haystack.Arr {
		if e.Equal(needle) {
			return true
		}
	}
	return false
}
