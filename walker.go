package streamcable

import (
	"errors"
	"strconv"
)

// ErrSkipVisit is returned by VisitArrayStart or VisitObjectStart to tell
// Walk not to descend into that compound's children. Walk still consumes
// the compound's bytes so a sibling that follows decodes correctly; it
// just withholds the per-child callbacks.
var ErrSkipVisit = errors.New("streamcable: skip visit")

// Visitor receives callbacks as Walk traverses a document's schema and
// value bytes together, without ever materializing the whole value as one
// in-memory Value tree. path is a dotted field path from the document
// root (array indices rendered as "[i]"), empty at the root itself.
type Visitor interface {
	// VisitScalar is called for every atomic kind, for a null
	// Nullable/Optional, and for Map and Record, which are decoded whole and
	// passed in as one Value. Promise/Iterator/ReadableStream are not
	// visited: Walk has no demultiplexer, so it returns a KindUnsupported
	// error when it reaches one.
	VisitScalar(path string, schema Schema, value Value) error

	// VisitArrayStart/VisitArrayEnd bracket an Array's elements. Returning
	// ErrSkipVisit from VisitArrayStart skips straight to VisitArrayEnd.
	VisitArrayStart(path string, schema Schema, length int) error
	VisitArrayEnd(path string) error

	// VisitObjectStart/VisitObjectEnd bracket an Object's fields.
	// Returning ErrSkipVisit from VisitObjectStart skips straight to
	// VisitObjectEnd.
	VisitObjectStart(path string, schema Schema) error
	VisitObjectEnd(path string) error
}

// Walk decodes data field by field, calling back into v as it goes. If
// data's header byte embeds a schema, that schema is used and also
// returned; otherwise expected is used (and must be non-nil). Unlike
// Deserialize, Walk builds no aggregate Value for an Array or Object - only
// for the scalars it bottoms out at, and for Map and Record, which it
// decodes whole.
func Walk(data []byte, expected *Schema, v Visitor) (Schema, error) {
	c := newCursor(NewSliceSource(data))

	header, err := c.readByte()
	if err != nil {
		return Schema{}, err
	}

	var schema Schema
	switch header {
	case 1:
		schema, err = c.readSchema()
		if err != nil {
			return Schema{}, err
		}
	case 0:
		if expected == nil {
			return Schema{}, ErrNoSchema
		}
		schema = *expected
	default:
		return Schema{}, invalidDataErr("invalid header byte %d", header)
	}

	if err := walkValue(c, schema, "", v); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

func walkValue(c *cursor, schema Schema, path string, v Visitor) error {
	switch schema.kind {
	case KindArray:
		n, err := c.readRollingUint()
		if err != nil {
			return err
		}
		if err := checkLength(n, c.limits.MaxCollectionLen, "array"); err != nil {
			return err
		}
		length := int(n)
		err = v.VisitArrayStart(path, schema, length)
		if errors.Is(err, ErrSkipVisit) {
			for i := 0; i < length; i++ {
				if err := skipValue(c, *schema.elem); err != nil {
					return err
				}
			}
			return v.VisitArrayEnd(path)
		}
		if err != nil {
			return err
		}
		for i := 0; i < length; i++ {
			if err := walkValue(c, *schema.elem, arrayPath(path, i), v); err != nil {
				return err
			}
		}
		return v.VisitArrayEnd(path)

	case KindObject:
		err := v.VisitObjectStart(path, schema)
		if errors.Is(err, ErrSkipVisit) {
			for _, f := range schema.fields {
				if err := skipValue(c, f.Schema); err != nil {
					return err
				}
			}
			return v.VisitObjectEnd(path)
		}
		if err != nil {
			return err
		}
		for _, f := range schema.fields {
			if err := walkValue(c, f.Schema, fieldPath(path, f.Name), v); err != nil {
				return err
			}
		}
		return v.VisitObjectEnd(path)

	case KindNullable, KindOptional:
		flag, err := c.readByte()
		if err != nil {
			return err
		}
		switch flag {
		case 0:
			return v.VisitScalar(path, schema, NullValue())
		case 1:
			return walkValue(c, *schema.elem, path, v)
		default:
			return invalidDataErr("invalid nullable/optional flag byte %d", flag)
		}

	case KindUnion:
		idx, err := c.readRollingUint()
		if err != nil {
			return err
		}
		if idx >= uint64(len(schema.alts)) {
			return invalidDataErr("union index %d out of range for %d alternatives", idx, len(schema.alts))
		}
		return walkValue(c, schema.alts[idx], path, v)

	case KindMap, KindRecord, KindPromise, KindIterator:
		value, err := readValue(nil, c, schema)
		if err != nil {
			return err
		}
		return v.VisitScalar(path, schema, value)

	default:
		value, err := readValue(nil, c, schema)
		if err != nil {
			return err
		}
		return v.VisitScalar(path, schema, value)
	}
}

// skipValue consumes one value's bytes by decoding it with readValue and
// discarding the result.
func skipValue(c *cursor, schema Schema) error {
	_, err := readValue(nil, c, schema)
	return err
}

func fieldPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func arrayPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
