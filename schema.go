package streamcable

import "sort"

// SchemaKind identifies one variant of the schema algebra. The numeric
// values are the wire tag bytes used by EncodeSchema/DecodeSchema; 0x00 is
// reserved and never assigned to a variant.
type SchemaKind byte

const (
	KindArray          SchemaKind = 0x01
	KindObject         SchemaKind = 0x02
	KindString         SchemaKind = 0x03
	KindU8Array        SchemaKind = 0x04 // synonym of Buffer; both decode to []byte
	KindBuffer         SchemaKind = 0x05
	KindPromise        SchemaKind = 0x06
	KindIterator       SchemaKind = 0x07
	KindBoolean        SchemaKind = 0x08
	KindUint8          SchemaKind = 0x09
	KindUint           SchemaKind = 0x0a
	KindUnion          SchemaKind = 0x0b
	KindDate           SchemaKind = 0x0c
	KindInt            SchemaKind = 0x0d
	KindFloat          SchemaKind = 0x0e
	KindNullable       SchemaKind = 0x0f
	KindOptional       SchemaKind = 0x10
	KindBigint         SchemaKind = 0x11
	KindReadableStream SchemaKind = 0x12
	KindRecord         SchemaKind = 0x13 // synonym-pair with Map for implementations without ordered keys
	KindMap            SchemaKind = 0x14
	KindAny            SchemaKind = 0x15
)

func (k SchemaKind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindString:
		return "string"
	case KindU8Array:
		return "u8array"
	case KindBuffer:
		return "buffer"
	case KindPromise:
		return "promise"
	case KindIterator:
		return "iterator"
	case KindBoolean:
		return "boolean"
	case KindUint8:
		return "uint8"
	case KindUint:
		return "uint"
	case KindUnion:
		return "union"
	case KindDate:
		return "date"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindNullable:
		return "nullable"
	case KindOptional:
		return "optional"
	case KindBigint:
		return "bigint"
	case KindReadableStream:
		return "readablestream"
	case KindRecord:
		return "record"
	case KindMap:
		return "map"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// ObjectField is one (name, schema) pair of an Object schema.
type ObjectField struct {
	Name   string
	Schema Schema
}

// Schema is a closed, recursively-defined tagged sum describing the shape
// of a value. Schemas are immutable once built; always construct one
// through the functions below, never by populating this struct directly.
type Schema struct {
	kind SchemaKind

	elem   *Schema // Array element / Promise resolved-value / Iterator item / Optional inner / Record value / Nullable inner (nil means "no inner")
	fields []ObjectField // Object, kept sorted ascending by Name
	key    *Schema // Map key
	value  *Schema // Map value
	alts   []Schema // Union alternatives, declaration order preserved
}

// Kind reports which schema variant this is.
func (s Schema) Kind() SchemaKind { return s.kind }

// Elem returns the element/inner schema for Array, Promise, Iterator,
// Optional, and Record, and the inner schema for Nullable (nil if the
// Nullable has no inner schema, i.e. it is null-only).
func (s Schema) Elem() *Schema { return s.elem }

// Fields returns the sorted (name, schema) pairs of an Object schema.
func (s Schema) Fields() []ObjectField { return s.fields }

// MapKey and MapValue return the key/value schemas of a Map schema.
func (s Schema) MapKey() *Schema   { return s.key }
func (s Schema) MapValue() *Schema { return s.value }

// Alternatives returns a Union schema's alternatives in declaration order.
func (s Schema) Alternatives() []Schema { return s.alts }

func leaf(k SchemaKind) Schema { return Schema{kind: k} }

func Boolean() Schema        { return leaf(KindBoolean) }
func Uint8Schema() Schema    { return leaf(KindUint8) }
func Uint() Schema           { return leaf(KindUint) }
func Int() Schema            { return leaf(KindInt) }
func Float() Schema          { return leaf(KindFloat) }
func StringSchema() Schema   { return leaf(KindString) }
func U8Array() Schema        { return leaf(KindU8Array) }
func Buffer() Schema         { return leaf(KindBuffer) }
func Date() Schema           { return leaf(KindDate) }
func Bigint() Schema         { return leaf(KindBigint) }
func ReadableStream() Schema { return leaf(KindReadableStream) }
func Any() Schema            { return leaf(KindAny) }

// Array builds an Array schema over elem.
func Array(elem Schema) Schema {
	e := elem
	return Schema{kind: KindArray, elem: &e}
}

// Object builds an Object schema, sorting fields ascending by name so
// encode and decode always walk them in the same fixed order.
func Object(fields ...ObjectField) Schema {
	sorted := make([]ObjectField, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return Schema{kind: KindObject, fields: sorted}
}

// Field is a convenience constructor for an ObjectField.
func Field(name string, schema Schema) ObjectField {
	return ObjectField{Name: name, Schema: schema}
}

// MapSchema builds a Map schema from a key and value schema.
func MapSchema(key, value Schema) Schema {
	k, v := key, value
	return Schema{kind: KindMap, key: &k, value: &v}
}

// Nullable builds a Nullable schema. Pass nil for inner to model "must be
// null"; the null flag byte is always present on the wire either way.
func Nullable(inner *Schema) Schema {
	if inner == nil {
		return Schema{kind: KindNullable}
	}
	e := *inner
	return Schema{kind: KindNullable, elem: &e}
}

// Optional builds an Optional schema wrapping inner.
func Optional(inner Schema) Schema {
	e := inner
	return Schema{kind: KindOptional, elem: &e}
}

// Union builds a Union schema. Declaration order is semantically
// significant: it is the order alternatives are tried during validation
// and encoding, and is preserved as given (never reordered).
func Union(alts ...Schema) Schema {
	cp := make([]Schema, len(alts))
	copy(cp, alts)
	return Schema{kind: KindUnion, alts: cp}
}

// Promise builds a Promise schema over the resolved value's schema.
func Promise(resolved Schema) Schema {
	e := resolved
	return Schema{kind: KindPromise, elem: &e}
}

// Iterator builds an Iterator schema over its item schema.
func Iterator(item Schema) Schema {
	e := item
	return Schema{kind: KindIterator, elem: &e}
}

// Record builds a Record schema: a dynamic string-keyed mapping whose
// values all conform to value.
func Record(value Schema) Schema {
	e := value
	return Schema{kind: KindRecord, elem: &e}
}
