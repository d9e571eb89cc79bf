// Package value implements the runtime datum shared by every operator of the
// execution core.
//
// A Value is a closed sum type: exactly one of Null, Boolean, Integer, Float,
// String, NodeRef, RelationshipRef, List or Map. The Kind fully determines
// which payload is meaningful. Values behave like Go value types: every
// constructor and accessor that hands out a List or Map payload deep-copies
// it, so two live Values never share mutable storage.
//
// Example:
//
//	v := value.NewMap(
//		value.P("name", value.String("Alice")),
//		value.P("tags", value.NewList(value.String("a"), value.String("b"))),
//	)
//	name, _ := v.Get("name")
//	fmt.Println(name) // Alice
//	fmt.Println(v.JSON()) // {"name":"Alice","tags":["a","b"]}
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the payload carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindNode
	KindRelationship
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNull:         "Null",
	KindBool:         "Boolean",
	KindInt:          "Integer",
	KindFloat:        "Float",
	KindString:       "String",
	KindNode:         "Node",
	KindRelationship: "Relationship",
	KindList:         "List",
	KindMap:          "Map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Pair is one ordered entry of a Map value.
type Pair struct {
	Key string
	Val Value
}

// P is shorthand for building a Pair.
func P(key string, v Value) Pair { return Pair{Key: key, Val: v} }

// Value is a tagged runtime datum. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64 // Integer payload, node id or relationship id
	f     float64
	s     string
	list  []Value
	pairs []Pair
}

// Null returns the Null value.
func Null() Value { return Value{} }

// Bool returns a Boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an Integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a String value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Node returns a reference to the node with the given id.
func Node(id int64) Value { return Value{kind: KindNode, i: id} }

// Rel returns a reference to the relationship with the given id.
func Rel(id int64) Value { return Value{kind: KindRelationship, i: id} }

// NewList returns a List holding deep copies of elems.
func NewList(elems ...Value) Value {
	return Value{kind: KindList, list: copyElems(elems)}
}

// NewMap returns a Map holding deep copies of pairs in the given order.
// A repeated key overwrites the earlier entry in place.
func NewMap(pairs ...Pair) Value {
	out := Value{kind: KindMap, pairs: make([]Pair, 0, len(pairs))}
	for _, p := range pairs {
		out.pairs = setPair(out.pairs, p.Key, p.Val.Copy())
	}
	return out
}

// Kind returns the kind tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v is an Integer or a Float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsBool returns the Boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the Integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the Float payload. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsString returns the String payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// ID returns the id of a NodeRef or RelationshipRef.
func (v Value) ID() (int64, bool) {
	return v.i, v.kind == KindNode || v.kind == KindRelationship
}

// Len returns the element count of a List or the entry count of a Map, and
// the byte length of a String. Other kinds report 0.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.pairs)
	case KindString:
		return len(v.s)
	}
	return 0
}

// Index returns a copy of the i-th List element.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null(), false
	}
	return v.list[i].Copy(), true
}

// Elems returns a deep copy of the List elements, or nil for other kinds.
func (v Value) Elems() []Value {
	if v.kind != KindList {
		return nil
	}
	return copyElems(v.list)
}

// Get returns a copy of the Map entry for key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	for _, p := range v.pairs {
		if p.Key == key {
			return p.Val.Copy(), true
		}
	}
	return Null(), false
}

// Keys returns the Map keys in order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, len(v.pairs))
	for i, p := range v.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a deep copy of the Map entries in order.
func (v Value) Pairs() []Pair {
	if v.kind != KindMap {
		return nil
	}
	out := make([]Pair, len(v.pairs))
	for i, p := range v.pairs {
		out[i] = Pair{Key: p.Key, Val: p.Val.Copy()}
	}
	return out
}

// With returns a copy of the Map with key set to val. Non-Map receivers are
// treated as an empty Map.
func (v Value) With(key string, val Value) Value {
	out := Value{kind: KindMap}
	if v.kind == KindMap {
		out.pairs = v.Pairs()
	}
	out.pairs = setPair(out.pairs, key, val.Copy())
	return out
}

// Append returns a copy of the List with elems appended.
func (v Value) Append(elems ...Value) Value {
	out := Value{kind: KindList}
	if v.kind == KindList {
		out.list = copyElems(v.list)
	}
	for _, e := range elems {
		out.list = append(out.list, e.Copy())
	}
	return out
}

// Copy returns a deep copy of v. String payloads are immutable in Go and are
// shared safely; List and Map payloads are copied recursively.
func (v Value) Copy() Value {
	switch v.kind {
	case KindList:
		return Value{kind: KindList, list: copyElems(v.list)}
	case KindMap:
		out := Value{kind: KindMap, pairs: make([]Pair, len(v.pairs))}
		for i, p := range v.pairs {
			out.pairs[i] = Pair{Key: p.Key, Val: p.Val.Copy()}
		}
		return out
	}
	return v
}

// Set replaces the receiver's payload with a deep copy of other. The old
// payload is dropped first.
func (v *Value) Set(other Value) {
	*v = Value{}
	*v = other.Copy()
}

// Reset sets the receiver to Null, releasing any payload.
func (v *Value) Reset() { *v = Value{} }

// Truthy reports whether v is Boolean true. Everything else, Null included,
// is not.
func (v Value) Truthy() bool { return v.kind == KindBool && v.b }

// String renders v for humans. Strings are printed without quotes at the top
// level and quoted inside containers.
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	var sb strings.Builder
	v.writeDisplay(&sb)
	return sb.String()
}

func (v Value) writeDisplay(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.f))
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindNode:
		fmt.Fprintf(sb, "Node(%d)", v.i)
	case KindRelationship:
		fmt.Fprintf(sb, "Relationship(%d)", v.i)
	case KindList:
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.writeDisplay(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, p := range v.pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Key)
			sb.WriteString(": ")
			p.Val.writeDisplay(sb)
		}
		sb.WriteByte('}')
	}
}

// FromGo converts a property value from the storage representation.
// Map keys are ordered lexically since Go maps carry no order.
func FromGo(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t.Copy(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []string:
		out := Value{kind: KindList, list: make([]Value, len(t))}
		for i, s := range t {
			out.list[i] = String(s)
		}
		return out, nil
	case []Value:
		return NewList(t...), nil
	case []any:
		out := Value{kind: KindList, list: make([]Value, 0, len(t))}
		for _, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Null(), err
			}
			out.list = append(out.list, ev)
		}
		return out, nil
	case map[string]any:
		if ref, ok := refFromGo(t); ok {
			return ref, nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := Value{kind: KindMap, pairs: make([]Pair, 0, len(t))}
		for _, k := range keys {
			ev, err := FromGo(t[k])
			if err != nil {
				return Null(), err
			}
			out.pairs = append(out.pairs, Pair{Key: k, Val: ev})
		}
		return out, nil
	}
	return Null(), fmt.Errorf("unsupported property type %T", x)
}

// ToGo converts v to the storage representation used for properties.
// References become {"_type": ..., "_id": ...} maps, matching their JSON form.
func (v Value) ToGo() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindNode:
		return map[string]any{"_type": "node", "_id": v.i}
	case KindRelationship:
		return map[string]any{"_type": "relationship", "_id": v.i}
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.pairs))
		for _, p := range v.pairs {
			out[p.Key] = p.Val.ToGo()
		}
		return out
	}
	return nil
}

func refFromGo(m map[string]any) (Value, bool) {
	if len(m) != 2 {
		return Value{}, false
	}
	typ, _ := m["_type"].(string)
	var id int64
	switch n := m["_id"].(type) {
	case int64:
		id = n
	case int:
		id = int64(n)
	default:
		return Value{}, false
	}
	switch typ {
	case "node":
		return Node(id), true
	case "relationship":
		return Rel(id), true
	}
	return Value{}, false
}

func copyElems(elems []Value) []Value {
	if elems == nil {
		return []Value{}
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = e.Copy()
	}
	return out
}

func setPair(pairs []Pair, key string, v Value) []Pair {
	for i := range pairs {
		if pairs[i].Key == key {
			pairs[i].Val = v
			return pairs
		}
	}
	return append(pairs, Pair{Key: key, Val: v})
}
