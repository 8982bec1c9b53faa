package value

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/bytedance/sonic"
)

// Marshal and Unmarshal are the package's JSON entry points, backed by
// sonic rather than encoding/json directly. Because Value implements
// json.Marshaler/json.Unmarshaler, sonic dispatches straight into
// Value's own ordered encoding below.
func Marshal(v *Value) ([]byte, error) {
	return sonic.Marshal(v)
}

func Unmarshal(data []byte, v *Value) error {
	return sonic.Unmarshal(data, v)
}

// MarshalJSON renders v preserving object key insertion order, which the
// standard map-backed encoding/json cannot do.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) {
	if v == nil {
		buf.WriteString("null")
		return
	}
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case KindString:
		encodeJSONString(buf, v.Str)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.encode(buf)
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.Obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeJSONString(buf, k)
			buf.WriteByte(':')
			child, _ := v.Obj.Get(k)
			child.encode(buf)
		}
		buf.WriteByte('}')
	}
}

// encodeJSONString reuses encoding/json's string-quoting (escaping rules
// are fiddly and not worth re-deriving) without involving it in the
// overall document encoding.
func encodeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// UnmarshalJSON parses data into v, preserving object key order. It uses
// a streaming token decoder rather than unmarshaling into map[string]any
// first, since the latter loses key order before Value ever sees it.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	parsed, err := decodeToken(dec, tok)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func decodeToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return NewNumber(f), nil
	case string:
		return NewString(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := make([]*Value, 0)
			for dec.More() {
				childTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := decodeToken(dec, childTok)
				if err != nil {
					return nil, err
				}
				arr = append(arr, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return &Value{Kind: KindArray, Arr: arr}, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)

				valTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				child, err := decodeToken(dec, valTok)
				if err != nil {
					return nil, err
				}
				obj.Set(key, child)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return &Value{Kind: KindObject, Obj: obj}, nil
		}
	}
	return NewNull(), nil
}
