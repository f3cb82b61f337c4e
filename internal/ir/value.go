package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing constrained value types.
// Only IRNull, IRString, IRInt, IRBool, IRArray, and IRObject implement this.
type IRValue interface {
	irValue()
}

// IRNull represents an unset value (an empty link, a missing optional).
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64, never float64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered sequence of values (list and set properties).
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to values. A stored row is an
// IRObject; so is a dictionary property.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// O is a key/value pair for ergonomic IRObject construction.
type O struct {
	Key   string
	Value IRValue
}

// Obj builds an IRObject from pairs.
//
//	ir.Obj(ir.O{"id", ir.IRString("p1")}, ir.O{"age", ir.IRInt(30)})
func Obj(pairs ...O) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// Clone returns a deep copy of obj. Arrays and nested objects are copied so
// the clone can be mutated without touching rows shared by other versions.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return nil
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			arr[i] = cloneValue(elem)
		}
		return arr
	case IRObject:
		return val.Clone()
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// IsNull reports whether v is absent or IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// Compare orders two values for sorting and range predicates.
//
// Values of the same scalar kind compare naturally. Nulls sort first.
// Mixed kinds order by kind rank (null < bool < int < string < array < object)
// so sorting never fails; ok is false when the kinds differ, letting
// predicates treat the comparison as "no match".
func Compare(a, b IRValue) (cmp int, ok bool) {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}
	switch av := a.(type) {
	case IRBool:
		bv := b.(IRBool)
		switch {
		case av == bv:
			return 0, true
		case !bool(av):
			return -1, true
		default:
			return 1, true
		}
	case IRInt:
		bv := b.(IRInt)
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case IRString:
		return strings.Compare(string(av), string(b.(IRString))), true
	case IRArray, IRObject:
		ca, errA := MarshalCanonical(a)
		cb, errB := MarshalCanonical(b)
		if errA != nil || errB != nil {
			return 0, false
		}
		return bytes.Compare(ca, cb), true
	}
	// both null
	return 0, true
}

func rank(v IRValue) int {
	switch v.(type) {
	case nil, IRNull:
		return 0
	case IRBool:
		return 1
	case IRInt:
		return 2
	case IRString:
		return 3
	case IRArray:
		return 4
	case IRObject:
		return 5
	}
	return 6
}

// Equal reports whether two values are identical.
func Equal(a, b IRValue) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// FromAny converts decoded YAML/JSON/Go values into an IRValue.
// Floats are rejected unless they carry an integral value, because YAML
// decoders hand back float64 for some integer spellings.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case uint64:
		return IRInt(int64(val)), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not supported: %v", val)
		}
		return IRInt(int64(val)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", val)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromMap converts a decoded map into an IRObject.
func ObjectFromMap(m map[string]any) (IRObject, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(IRObject), nil
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
// Numbers are decoded with UseNumber so large integers keep their precision.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalIRValue decodes JSON into an IRValue. Floats are rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// Canonical output is used so JSON responses and stored rows agree.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// String renders a value for descriptions: strings unquoted, containers in
// canonical JSON.
func String(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "<null>"
	case IRString:
		return string(val)
	case IRInt:
		return fmt.Sprintf("%d", int64(val))
	case IRBool:
		if val {
			return "true"
		}
		return "false"
	default:
		data, err := MarshalCanonical(v)
		if err != nil {
			return fmt.Sprintf("<%T>", v)
		}
		return string(data)
	}
}
