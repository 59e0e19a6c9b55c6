// Package changes computes structural before/after diffs of record snapshots
// for the audit trail. Records are expressed as a closed Value union instead
// of untyped blobs so that diffing is total.
package changes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// MaxDepth bounds recursion through nested arrays and objects. Values deeper
// than this (including cyclic graphs) are rejected with ErrTooDeep.
const MaxDepth = 64

var (
	ErrTooDeep     = errors.New("changes: value nesting exceeds max depth")
	ErrNotObject   = errors.New("changes: record must be an object")
	ErrUnsupported = errors.New("changes: unsupported value type")
)

type Kind uint8

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
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable JSON-shaped value. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	text    string
	items   []Value
	fields  map[string]Value
}

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, boolean: b} }
func Number(n float64) Value  { return Value{kind: KindNumber, number: n} }
func Int(n int64) Value       { return Value{kind: KindNumber, number: float64(n)} }
func String(s string) Value   { return Value{kind: KindString, text: s} }
func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Bool() bool    { return v.boolean }
func (v Value) Num() float64  { return v.number }
func (v Value) Str() string   { return v.text }
func (v Value) Len() int      { return len(v.items) + len(v.fields) }
func (v Value) Items() []Value {
	out := make([]Value, len(v.items))
	copy(out, v.items)
	return out
}

func Array(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindArray, items: copied}
}

func Object(fields map[string]Value) Value {
	copied := make(map[string]Value, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Value{kind: KindObject, fields: copied}
}

// Time renders t as an RFC 3339 string, or null for the zero time.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Null()
	}
	return String(t.UTC().Format(time.RFC3339Nano))
}

func TimePtr(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return Time(*t)
}

func Strings(values []string) Value {
	items := make([]Value, 0, len(values))
	for _, s := range values {
		items = append(items, String(s))
	}
	return Value{kind: KindArray, items: items}
}

func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	field, ok := v.fields[name]
	return field, ok
}

// Keys returns the object's field names in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep structural equality. Values nested beyond MaxDepth
// compare unequal.
func (v Value) Equal(other Value) bool {
	eq, err := equal(v, other, 0)
	return err == nil && eq
}

func equal(a, b Value, depth int) (bool, error) {
	if depth > MaxDepth {
		return false, ErrTooDeep
	}
	if a.kind != b.kind {
		return false, nil
	}
	switch a.kind {
	case KindNull:
		return true, nil
	case KindBool:
		return a.boolean == b.boolean, nil
	case KindNumber:
		return a.number == b.number || (math.IsNaN(a.number) && math.IsNaN(b.number)), nil
	case KindString:
		return a.text == b.text, nil
	case KindArray:
		if len(a.items) != len(b.items) {
			return false, nil
		}
		for i := range a.items {
			eq, err := equal(a.items[i], b.items[i], depth+1)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case KindObject:
		// absent and null are the same field value
		for k, av := range a.fields {
			eq, err := equal(av, b.fields[k], depth+1)
			if err != nil || !eq {
				return false, err
			}
		}
		for k, bv := range b.fields {
			if _, ok := a.fields[k]; ok {
				continue
			}
			if !bv.IsNull() {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

// FromAny converts Go values into a Value. Maps must be keyed by string.
// Structs and other named types go through their JSON encoding.
func FromAny(in any) (Value, error) {
	return fromAny(in, 0)
}

func fromAny(in any, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, ErrTooDeep
	}
	switch v := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return Value{}, fmt.Errorf("changes: number %q: %w", v, err)
		}
		return Number(f), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Number(float64(v)), nil
	case uint8:
		return Number(float64(v)), nil
	case uint16:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case time.Time:
		return Time(v), nil
	case *time.Time:
		return TimePtr(v), nil
	case []any:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			converted, err := fromAny(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, converted)
		}
		return Value{kind: KindArray, items: items}, nil
	case []string:
		return Strings(v), nil
	case map[string]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			converted, err := fromAny(item, depth+1)
			if err != nil {
				return Value{}, err
			}
			fields[k] = converted
		}
		return Value{kind: KindObject, fields: fields}, nil
	case map[string]Value:
		return Object(v), nil
	}
	return fromReflect(in, depth)
}

func fromReflect(in any, depth int) (Value, error) {
	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupported, in)
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return Value{}, fmt.Errorf("changes: encode %T: %w", in, err)
	}
	return decodeJSON(raw, depth)
}

func decodeJSON(raw []byte, depth int) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Value{}, fmt.Errorf("changes: decode: %w", err)
	}
	return fromAny(generic, depth)
}

// Snapshot converts a record (struct, map or Value) into an object Value.
func Snapshot(record any) (Value, error) {
	v, err := FromAny(record)
	if err != nil {
		return Value{}, err
	}
	if v.kind != KindObject && v.kind != KindNull {
		return Value{}, fmt.Errorf("%w: got %s", ErrNotObject, v.kind)
	}
	return v, nil
}

// ToAny converts back into plain Go values (map[string]any, []any, float64, ...).
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindNumber:
		return v.number
	case KindString:
		return v.text
	case KindArray:
		out := make([]any, 0, len(v.items))
		for _, item := range v.items {
			out = append(out, item.ToAny())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.fields))
		for k, field := range v.fields {
			out[k] = field.ToAny()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.number) || math.IsInf(v.number, 0)) {
		return json.Marshal(strconv.FormatFloat(v.number, 'g', -1, 64))
	}
	return json.Marshal(v.ToAny())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeJSON(data, 0)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
