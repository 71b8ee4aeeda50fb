package finding

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies which variant a metadata Value holds.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
	KindStringList
)

// Value is a bounded metadata variant: string, number, bool or string list.
// Nested objects are deliberately not representable.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number builds a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// StringList builds a string-list value. The slice is copied.
func StringList(items ...string) Value {
	return Value{kind: KindStringList, list: append([]string(nil), items...)}
}

// Kind returns the variant held by v (zero for an unset value).
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string variant.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the numeric variant.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean variant.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsStringList returns a copy of the string-list variant.
func (v Value) AsStringList() ([]string, bool) {
	if v.kind != KindStringList {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

// String renders the value for display and for pattern keys.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStringList:
		return strings.Join(v.list, ",")
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindStringList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar or string array into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML decodes a YAML scalar or sequence of scalars.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

func valueFromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				items = append(items, s)
			case float64, int, int64, bool:
				items = append(items, fmt.Sprint(s))
			default:
				return Value{}, fmt.Errorf("metadata lists may only hold scalars, got %T", item)
			}
		}
		return StringList(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value of type %T", raw)
	}
}

// Metadata is the open key/value bag attached to a Finding.
type Metadata map[string]Value

// Clone returns a deep copy of m (never nil).
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if v.kind == KindStringList {
			v = StringList(v.list...)
		}
		out[k] = v
	}
	return out
}

// GetString returns the string stored under key, or "" when absent or not a string.
func (m Metadata) GetString(key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return ""
}

// GetNumber returns the number stored under key.
func (m Metadata) GetNumber(key string) (float64, bool) {
	if v, ok := m[key]; ok {
		return v.AsNumber()
	}
	return 0, false
}

// GetBool returns the bool stored under key, false when absent.
func (m Metadata) GetBool(key string) bool {
	if v, ok := m[key]; ok {
		b, _ := v.AsBool()
		return b
	}
	return false
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
