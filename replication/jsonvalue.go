package replication

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Kind discriminates the tagged union a JSONB blob decodes into. It
// mirrors the JSONB_* wire type tags one level up, after literals have
// been split into Null/Bool and opaque MySQL types have been reduced
// to their string or decimal renderings.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindDouble
	KindString
	KindArray
	KindObject
)

// Value is the decoded form of one JSONB node. Exactly one of the
// type-specific fields is meaningful, selected by Kind; callers should
// never read a field without checking Kind first.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Uint   uint64
	Double float64
	Str    string
	Array  []Value
	Object *OrderedObject
}

func NullValue() Value                { return Value{Kind: KindNull} }
func BoolValue(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func IntValue(v int64) Value          { return Value{Kind: KindInt, Int: v} }
func UintValue(v uint64) Value        { return Value{Kind: KindUint, Uint: v} }
func DoubleValue(v float64) Value     { return Value{Kind: KindDouble, Double: v} }
func StringValue(s string) Value      { return Value{Kind: KindString, Str: s} }
func ArrayValue(vs []Value) Value     { return Value{Kind: KindArray, Array: vs} }
func ObjectValue(o *OrderedObject) Value { return Value{Kind: KindObject, Object: o} }

// MarshalJSON renders a Value the way encoding/json would render the
// equivalent interface{} tree, except object key order is preserved
// rather than sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		if v.Bool {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindUint:
		return []byte(strconv.FormatUint(v.Uint, 10)), nil
	case KindDouble:
		return json.Marshal(v.Double)
	case KindString:
		return json.Marshal(v.Str)
	case KindArray:
		return json.Marshal(v.Array)
	case KindObject:
		return json.Marshal(v.Object)
	default:
		return []byte("null"), nil
	}
}

// orderedPair is one key/value entry of an OrderedObject.
type orderedPair struct {
	Key   string
	Value Value
}

// OrderedObject is a JSON object that remembers the insertion order of
// its members, so re-marshaling a decoded JSONB document reproduces
// the member order the original document was written with. A plain
// Go map cannot make that guarantee.
type OrderedObject struct {
	pairs []orderedPair
	index map[string]int
}

// NewOrderedObject returns an empty object sized to hold n members.
func NewOrderedObject(n int) *OrderedObject {
	return &OrderedObject{
		pairs: make([]orderedPair, 0, n),
		index: make(map[string]int, n),
	}
}

// Set appends key/value, or overwrites the value in place if key was
// already set (preserving its original position).
func (o *OrderedObject) Set(key string, value Value) {
	if i, ok := o.index[key]; ok {
		o.pairs[i].Value = value
		return
	}
	o.index[key] = len(o.pairs)
	o.pairs = append(o.pairs, orderedPair{Key: key, Value: value})
}

// Get looks up key, reporting whether it was present.
func (o *OrderedObject) Get(key string) (Value, bool) {
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.pairs[i].Value, true
}

// Len returns the number of members.
func (o *OrderedObject) Len() int {
	return len(o.pairs)
}

// Keys returns member names in insertion order.
func (o *OrderedObject) Keys() []string {
	keys := make([]string, len(o.pairs))
	for i, p := range o.pairs {
		keys[i] = p.Key
	}
	return keys
}

// MarshalJSON renders the object with members in insertion order.
func (o *OrderedObject) MarshalJSON() ([]byte, error) {
	if o == nil || len(o.pairs) == 0 {
		return []byte("{}"), nil
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, p := range o.pairs {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}
