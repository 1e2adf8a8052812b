package streamcable

import "math"

// decodeState carries the demultiplexer (if any) through a decode pass, so
// Promise/Iterator/ReadableStream nodes can attach adapters bound to the
// inbound sub-stream ID they read off the wire.
type decodeState struct {
	demux *Demultiplexer
}

// Deserialize reads one value from source. If the header byte read off the
// wire is 1, the schema is decoded from the stream itself and the decoded
// Schema is returned alongside the Value; if it is 0, expected must be
// non-nil and is used as the schema, since the peer is assumed to already
// know it.
//
// demux is required whenever the decoded schema contains a Promise,
// Iterator, or ReadableStream; it supplies the Future/ValueIterator/
// ByteStreamSource adapters bound to the sub-stream ID embedded at that
// point in the value. Pass nil when no deferred kind is expected.
func Deserialize(source Source, expected *Schema, demux *Demultiplexer) (Schema, Value, error) {
	c := newCursor(source)

	header, err := c.readByte()
	if err != nil {
		return Schema{}, Value{}, err
	}

	var schema Schema
	switch header {
	case 1:
		schema, err = c.readSchema()
		if err != nil {
			return Schema{}, Value{}, err
		}
	case 0:
		if expected == nil {
			return Schema{}, Value{}, ErrNoSchema
		}
		schema = *expected
	default:
		return Schema{}, Value{}, invalidDataErr("invalid header byte %d", header)
	}

	state := &decodeState{demux: demux}
	value, err := readValue(state, c, schema)
	if err != nil {
		return Schema{}, Value{}, err
	}
	return schema, value, nil
}

// readValue decodes one value of the given schema from c. It is the
// inverse of writeValue: every branch below reads exactly the bytes the
// corresponding writeValue branch produced.
func readValue(state *decodeState, c *cursor, schema Schema) (Value, error) {
	switch schema.kind {
	case KindBoolean:
		b, err := c.readBool()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil

	case KindUint8:
		u, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		return Uint8Value(u), nil

	case KindUint:
		u, err := c.readRollingUint()
		if err != nil {
			return Value{}, err
		}
		return UintValue(u), nil

	case KindInt:
		i, err := c.readZigzag()
		if err != nil {
			return Value{}, err
		}
		return IntValue(i), nil

	case KindFloat:
		bits, err := c.readFloat64Bits()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(math.Float64frombits(bits)), nil

	case KindBigint:
		u, err := c.readFloat64Bits()
		if err != nil {
			return Value{}, err
		}
		return BigintValue(u), nil

	case KindString:
		s, err := c.readString()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil

	case KindDate:
		s, err := c.readString()
		if err != nil {
			return Value{}, err
		}
		return DateValue(s), nil

	case KindU8Array, KindBuffer:
		b, err := c.readRaw(c.limits.MaxBytesLen)
		if err != nil {
			return Value{}, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return BytesValue(out), nil

	case KindArray:
		n, err := c.readRollingUint()
		if err != nil {
			return Value{}, err
		}
		if err := checkLength(n, c.limits.MaxCollectionLen, "array"); err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := readValue(state, c, *schema.elem)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ArrayValue(items), nil

	case KindObject:
		fields := make(map[string]Value, len(schema.fields))
		for _, f := range schema.fields {
			fv, err := readValue(state, c, f.Schema)
			if err != nil {
				return Value{}, err
			}
			fields[f.Name] = fv
		}
		return ObjectValue(fields), nil

	case KindMap:
		n, err := c.readRollingUint()
		if err != nil {
			return Value{}, err
		}
		if err := checkLength(n, c.limits.MaxCollectionLen, "map"); err != nil {
			return Value{}, err
		}
		entries := make([]MapEntry, 0, n)
		for i := uint64(0); i < n; i++ {
			k, err := readValue(state, c, *schema.key)
			if err != nil {
				return Value{}, err
			}
			v, err := readValue(state, c, *schema.value)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
		}
		return MapValue(entries), nil

	case KindNullable, KindOptional:
		flag, err := c.readByte()
		if err != nil {
			return Value{}, err
		}
		switch flag {
		case 0:
			return NullValue(), nil
		case 1:
			return readValue(state, c, *schema.elem)
		default:
			return Value{}, invalidDataErr("invalid nullable/optional flag byte %d", flag)
		}

	case KindUnion:
		idx, err := c.readRollingUint()
		if err != nil {
			return Value{}, err
		}
		if idx >= uint64(len(schema.alts)) {
			return Value{}, invalidDataErr("union index %d out of range for %d alternatives", idx, len(schema.alts))
		}
		return readValue(state, c, schema.alts[idx])

	case KindRecord:
		n, err := c.readRollingUint()
		if err != nil {
			return Value{}, err
		}
		if err := checkLength(n, c.limits.MaxCollectionLen, "record"); err != nil {
			return Value{}, err
		}
		fields := make(map[string]Value, n)
		for i := uint64(0); i < n; i++ {
			k, err := c.readString()
			if err != nil {
				return Value{}, err
			}
			v, err := readValue(state, c, *schema.elem)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return ObjectValue(fields), nil

	case KindPromise:
		id, err := readStreamID(c)
		if err != nil {
			return Value{}, err
		}
		if state == nil || state.demux == nil {
			return Value{}, unsupportedErr("decoding a promise requires a demultiplexer")
		}
		return FutureValue(&demuxFuture{d: state.demux, id: id, schema: *schema.elem}), nil

	case KindIterator:
		id, err := readStreamID(c)
		if err != nil {
			return Value{}, err
		}
		if state == nil || state.demux == nil {
			return Value{}, unsupportedErr("decoding an iterator requires a demultiplexer")
		}
		return IteratorValue(&demuxIterator{d: state.demux, id: id, schema: *schema.elem}), nil

	case KindReadableStream:
		id, err := readStreamID(c)
		if err != nil {
			return Value{}, err
		}
		if state == nil || state.demux == nil {
			return Value{}, unsupportedErr("decoding a readable stream requires a demultiplexer")
		}
		return ByteStreamValue(&demuxByteStream{d: state.demux, id: id}), nil

	case KindAny:
		return Value{}, unsupportedErr("Any has no canonical wire representation; decode a concrete schema instead")

	default:
		return Value{}, unsupportedErr("unknown schema kind %v", schema.kind)
	}
}

// readStreamID reads the inline rolling-uint sub-stream ID that stands in
// for a deferred value on the wire.
func readStreamID(c *cursor) (StreamID, error) {
	u, err := c.readRollingUint()
	if err != nil {
		return 0, err
	}
	if u == 0 || u > 0xFFFF {
		return 0, invalidDataErr("invalid sub-stream id %d", u)
	}
	return StreamID(u), nil
}
