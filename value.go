package streamcable

import "context"

// ValueKind identifies which alternative of the Value tagged sum is held.
// Unlike SchemaKind these numbers are not wire tags - the schema alone
// determines a value's shape on the wire, so a value never needs to
// identify its own kind in the encoding.
type ValueKind int

const (
	ValueBool ValueKind = iota + 1
	ValueUint8
	ValueUint
	ValueInt
	ValueFloat
	ValueString
	ValueBytes
	ValueArray
	ValueObject
	ValueMap
	ValueNull
	ValueDate
	ValueBigint
	ValueFuture
	ValueIterator
	ValueByteStream
)

// MapEntry is one (key, value) pair of a Map value, in iteration order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Future is a single-shot producer of a deferred value, the carrier for a
// Promise schema. Await may be called exactly once; its result (or error)
// becomes the sub-stream's single Data frame, or its Error frame.
type Future interface {
	Await(ctx context.Context) (Value, error)
}

// ValueIterator lazily produces a sequence of values, the carrier for an
// Iterator schema. Next returns ok=false once exhausted, with a nil error.
type ValueIterator interface {
	Next(ctx context.Context) (v Value, ok bool, err error)
}

// ByteStreamSource lazily produces byte chunks, the carrier for a
// ReadableStream schema. Next returns ok=false once exhausted, with a nil
// error. Empty chunks should be suppressed by the implementation.
type ByteStreamSource interface {
	Next(ctx context.Context) (chunk []byte, ok bool, err error)
}

// Value is a tagged sum parallel to Schema but carrying payloads. Values
// are owned by the caller during Serialize and by the callee after
// Deserialize. Construct one with the functions below; never populate this
// struct directly.
type Value struct {
	kind ValueKind

	b       bool
	u8      uint8
	u64     uint64
	i64     int64
	f64     float64
	str     string
	bytes   []byte
	arr     []Value
	obj     map[string]Value
	entries []MapEntry

	future Future
	iter   ValueIterator
	stream ByteStreamSource
}

// Kind reports which Value variant this is.
func (v Value) Kind() ValueKind { return v.kind }

func BoolValue(b bool) Value              { return Value{kind: ValueBool, b: b} }
func Uint8Value(u uint8) Value            { return Value{kind: ValueUint8, u8: u} }
func UintValue(u uint64) Value            { return Value{kind: ValueUint, u64: u} }
func IntValue(i int64) Value              { return Value{kind: ValueInt, i64: i} }
func FloatValue(f float64) Value          { return Value{kind: ValueFloat, f64: f} }
func StringValue(s string) Value          { return Value{kind: ValueString, str: s} }
func BytesValue(b []byte) Value           { return Value{kind: ValueBytes, bytes: b} }
func ArrayValue(items []Value) Value      { return Value{kind: ValueArray, arr: items} }
func ObjectValue(fields map[string]Value) Value {
	return Value{kind: ValueObject, obj: fields}
}
func MapValue(entries []MapEntry) Value { return Value{kind: ValueMap, entries: entries} }
func NullValue() Value                  { return Value{kind: ValueNull} }
func DateValue(iso8601 string) Value    { return Value{kind: ValueDate, str: iso8601} }
func BigintValue(u uint64) Value        { return Value{kind: ValueBigint, u64: u} }
func FutureValue(f Future) Value        { return Value{kind: ValueFuture, future: f} }
func IteratorValue(it ValueIterator) Value {
	return Value{kind: ValueIterator, iter: it}
}
func ByteStreamValue(s ByteStreamSource) Value {
	return Value{kind: ValueByteStream, stream: s}
}

// AsBool returns the boolean payload and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// AsUint8 returns the uint8 payload and whether v holds one.
func (v Value) AsUint8() (uint8, bool) { return v.u8, v.kind == ValueUint8 }

// AsUint returns the uint64 payload and whether v holds one.
func (v Value) AsUint() (uint64, bool) { return v.u64, v.kind == ValueUint }

// AsInt returns the int64 payload and whether v holds one.
func (v Value) AsInt() (int64, bool) { return v.i64, v.kind == ValueInt }

// AsFloat returns the float64 payload and whether v holds one.
func (v Value) AsFloat() (float64, bool) { return v.f64, v.kind == ValueFloat }

// AsString returns the string payload and whether v holds one.
func (v Value) AsString() (string, bool) { return v.str, v.kind == ValueString }

// AsBytes returns the byte-sequence payload and whether v holds one.
func (v Value) AsBytes() ([]byte, bool) { return v.bytes, v.kind == ValueBytes }

// AsArray returns the list payload and whether v holds one.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == ValueArray }

// AsObject returns the string-keyed mapping payload and whether v holds one.
func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == ValueObject }

// AsMap returns the ordered entry-list payload and whether v holds one.
func (v Value) AsMap() ([]MapEntry, bool) { return v.entries, v.kind == ValueMap }

// IsNull reports whether v is the null sentinel.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsDate returns the ISO-8601 date string payload and whether v holds one.
func (v Value) AsDate() (string, bool) { return v.str, v.kind == ValueDate }

// AsBigint returns the uint64 bigint payload and whether v holds one.
func (v Value) AsBigint() (uint64, bool) { return v.u64, v.kind == ValueBigint }

// AsFuture returns the deferred producer and whether v holds one.
func (v Value) AsFuture() (Future, bool) { return v.future, v.kind == ValueFuture }

// AsIterator returns the lazy sequence producer and whether v holds one.
func (v Value) AsIterator() (ValueIterator, bool) { return v.iter, v.kind == ValueIterator }

// AsByteStream returns the lazy byte-chunk producer and whether v holds one.
func (v Value) AsByteStream() (ByteStreamSource, bool) {
	return v.stream, v.kind == ValueByteStream
}
