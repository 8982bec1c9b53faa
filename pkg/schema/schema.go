// Package schema implements declarative validation of value.Value
// documents against a recursive Schema description.
package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/bobboyms/jsondb/pkg/value"
)

// Type names one of the six value kinds a Schema can constrain.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
)

// Schema is a recursive, declarative description of allowed document
// shapes. Only the constraints relevant to Type are consulted.
type Schema struct {
	Type       Type               `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`

	MinLength *int    `json:"minLength,omitempty"`
	MaxLength *int    `json:"maxLength,omitempty"`
	Pattern   *string `json:"pattern,omitempty"`

	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`

	Items       *Schema `json:"items,omitempty"`
	MinItems    *int    `json:"minItems,omitempty"`
	MaxItems    *int    `json:"maxItems,omitempty"`
	UniqueItems bool    `json:"uniqueItems,omitempty"`

	Enum []*value.Value `json:"enum,omitempty"`
}

// ValidationError is the result of a failed Validate call. Nested
// failures are wrapped with the property name or array index at which
// they occurred, so the full path to the offending value survives.
type ValidationError struct {
	Reason string

	// Exactly one of PropertyName/ItemIndex is set when Inner is non-nil.
	PropertyName string
	ItemIndex    int
	Inner        *ValidationError
}

func (e *ValidationError) Error() string {
	if e.Inner == nil {
		return e.Reason
	}
	if e.PropertyName != "" {
		return fmt.Sprintf("in property %q: %s", e.PropertyName, e.Inner.Error())
	}
	return fmt.Sprintf("in item %d: %s", e.ItemIndex, e.Inner.Error())
}

func propertyError(name string, inner *ValidationError) *ValidationError {
	return &ValidationError{PropertyName: name, Inner: inner}
}

func itemError(idx int, inner *ValidationError) *ValidationError {
	return &ValidationError{ItemIndex: idx, Inner: inner}
}

func kindName(v *value.Value) string {
	switch v.Kind {
	case value.KindNull:
		return "null"
	case value.KindBool:
		return "boolean"
	case value.KindNumber:
		return "number"
	case value.KindString:
		return "string"
	case value.KindArray:
		return "array"
	case value.KindObject:
		return "object"
	default:
		return "unknown"
	}
}

func matchesType(t Type, v *value.Value) bool {
	switch t {
	case TypeObject:
		return v.Kind == value.KindObject
	case TypeArray:
		return v.Kind == value.KindArray
	case TypeString:
		return v.Kind == value.KindString
	case TypeNumber:
		return v.Kind == value.KindNumber
	case TypeBoolean:
		return v.Kind == value.KindBool
	case TypeNull:
		return v.Kind == value.KindNull
	default:
		return false
	}
}

// Validate checks v against schema, returning the first violation found.
// Traversal order: type, enum membership, then kind-specific
// constraints (string length/pattern, number bounds, array size/
// uniqueness/items, object required/properties).
func Validate(v *value.Value, schema *Schema) error {
	if !matchesType(schema.Type, v) {
		return &ValidationError{Reason: fmt.Sprintf("type mismatch: expected %s, found %s", schema.Type, kindName(v))}
	}

	if schema.Enum != nil {
		matched := false
		for _, allowed := range schema.Enum {
			if v.Equal(allowed) {
				matched = true
				break
			}
		}
		if !matched {
			return &ValidationError{Reason: "value not in allowed enum"}
		}
	}

	switch v.Kind {
	case value.KindString:
		return validateString(v, schema)
	case value.KindNumber:
		return validateNumber(v, schema)
	case value.KindArray:
		return validateArray(v, schema)
	case value.KindObject:
		return validateObject(v, schema)
	}
	return nil
}

func validateString(v *value.Value, schema *Schema) error {
	length := len(v.Str) // length in bytes, not runes
	if schema.MinLength != nil && length < *schema.MinLength {
		return &ValidationError{Reason: fmt.Sprintf("string too short: min length %d", *schema.MinLength)}
	}
	if schema.MaxLength != nil && length > *schema.MaxLength {
		return &ValidationError{Reason: fmt.Sprintf("string too long: max length %d", *schema.MaxLength)}
	}
	if schema.Pattern != nil {
		re, err := regexp.Compile(*schema.Pattern)
		if err != nil {
			return &ValidationError{Reason: fmt.Sprintf("invalid pattern %q: %v", *schema.Pattern, err)}
		}
		if !re.MatchString(v.Str) {
			return &ValidationError{Reason: fmt.Sprintf("string does not match pattern %q", *schema.Pattern)}
		}
	}
	return nil
}

func validateNumber(v *value.Value, schema *Schema) error {
	n := v.Num
	if schema.Minimum != nil && n < *schema.Minimum {
		return &ValidationError{Reason: fmt.Sprintf("value too small: minimum %g", *schema.Minimum)}
	}
	if schema.Maximum != nil && n > *schema.Maximum {
		return &ValidationError{Reason: fmt.Sprintf("value too large: maximum %g", *schema.Maximum)}
	}
	if schema.ExclusiveMinimum != nil && n <= *schema.ExclusiveMinimum {
		return &ValidationError{Reason: fmt.Sprintf("value too small: exclusive minimum %g", *schema.ExclusiveMinimum)}
	}
	if schema.ExclusiveMaximum != nil && n >= *schema.ExclusiveMaximum {
		return &ValidationError{Reason: fmt.Sprintf("value too large: exclusive maximum %g", *schema.ExclusiveMaximum)}
	}
	return nil
}

func validateArray(v *value.Value, schema *Schema) error {
	n := len(v.Arr)
	if schema.MinItems != nil && n < *schema.MinItems {
		return &ValidationError{Reason: fmt.Sprintf("array too short: min items %d", *schema.MinItems)}
	}
	if schema.MaxItems != nil && n > *schema.MaxItems {
		return &ValidationError{Reason: fmt.Sprintf("array too long: max items %d", *schema.MaxItems)}
	}
	if schema.UniqueItems {
		if !itemsAreUnique(v.Arr) {
			return &ValidationError{Reason: "array items must be unique"}
		}
	}
	if schema.Items != nil {
		for i, item := range v.Arr {
			if err := Validate(item, schema.Items); err != nil {
				ve, _ := err.(*ValidationError)
				return itemError(i, ve)
			}
		}
	}
	return nil
}

// itemsAreUnique canonicalizes each item's JSON text and compares after
// sorting.
func itemsAreUnique(items []*value.Value) bool {
	texts := make([]string, len(items))
	for i, item := range items {
		data, err := value.Marshal(item)
		if err != nil {
			continue
		}
		texts[i] = string(data)
	}
	sorted := append([]string(nil), texts...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return false
		}
	}
	return true
}

func validateObject(v *value.Value, schema *Schema) error {
	for _, req := range schema.Required {
		if _, ok := v.Obj.Get(req); !ok {
			return &ValidationError{Reason: fmt.Sprintf("missing required property %q", req)}
		}
	}
	for key, propSchema := range schema.Properties {
		child, ok := v.Obj.Get(key)
		if !ok {
			continue
		}
		if err := Validate(child, propSchema); err != nil {
			ve, _ := err.(*ValidationError)
			return propertyError(key, ve)
		}
	}
	return nil
}
