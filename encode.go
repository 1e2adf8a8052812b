package streamcable

import (
	"math"
	"sort"
)

// encodeState threads the multiplexer (if any) through the two traversal
// passes of Serialize. Deferred schema kinds (Promise, Iterator,
// ReadableStream) allocate their sub-stream ID during the valueSize pass
// and record it here; the writeValue pass - which walks the exact same
// (schema, value) tree in the exact same order - consumes those IDs back
// out in FIFO order rather than re-deriving them.
type encodeState struct {
	mux *Multiplexer
	ids []StreamID
	pos int
}

// Serialize encodes value according to schema and writes it to sink. If
// embedSchema is true the header byte is 1 and the canonical schema
// encoding is embedded before the value; otherwise the header byte is 0
// and the peer is expected to already know the schema.
//
// Serialize validates before computing any size or writing any byte: a
// Validation failure means nothing reaches sink. Once validation succeeds,
// the whole value is assembled into one contiguous buffer (sized exactly
// by valueSize) before the single Write + Flush call against sink.
//
// mux is required whenever the value tree contains a Promise, Iterator, or
// ReadableStream; it supplies the sub-stream IDs inlined for those nodes
// and owns the producer tasks that drive their frames. Pass nil for a
// value tree with no deferred members.
func Serialize(schema Schema, value Value, sink Sink, embedSchema bool, mux *Multiplexer) error {
	if err := schema.Validate(value); err != nil {
		return err
	}

	var schemaBytes []byte
	if embedSchema {
		schemaBytes = EncodeSchema(schema)
	}

	state := &encodeState{mux: mux}
	size, err := valueSize(state, schema, value)
	if err != nil {
		return err
	}

	buf := GetBufferWithCap(1 + len(schemaBytes) + size)
	defer PutBuffer(buf)

	if embedSchema {
		buf.AppendByte(1)
		buf.Bytes = append(buf.Bytes, schemaBytes...)
	} else {
		buf.AppendByte(0)
	}

	state.pos = 0
	if err := writeValue(state, buf, schema, value); err != nil {
		return err
	}

	if _, err := sink.Write(buf.Bytes); err != nil {
		return wrapErr(KindIO, "write to sink", err)
	}
	if err := sink.Flush(); err != nil {
		return wrapErr(KindIO, "flush sink", err)
	}
	return nil
}

// valueSize computes the exact number of bytes writeValue will produce for
// (schema, value), so Serialize can allocate its buffer in one shot.
func valueSize(state *encodeState, schema Schema, value Value) (int, error) {
	switch schema.kind {
	case KindBoolean, KindUint8:
		return 1, nil

	case KindUint:
		u, _ := value.AsUint()
		return SizeOfRollingUint(u), nil

	case KindInt:
		i, _ := value.AsInt()
		return SizeOfRollingUint(zigzagEncode(i)), nil

	case KindFloat:
		return 8, nil

	case KindBigint:
		return 8, nil

	case KindString:
		s, _ := value.AsString()
		return SizeOfRollingUint(uint64(len(s))) + len(s), nil

	case KindDate:
		d, _ := value.AsDate()
		return SizeOfRollingUint(uint64(len(d))) + len(d), nil

	case KindU8Array, KindBuffer:
		b, _ := value.AsBytes()
		return SizeOfRollingUint(uint64(len(b))) + len(b), nil

	case KindArray:
		items, _ := value.AsArray()
		total := SizeOfRollingUint(uint64(len(items)))
		for _, item := range items {
			n, err := valueSize(state, *schema.elem, item)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil

	case KindObject:
		obj, _ := value.AsObject()
		total := 0
		for _, f := range schema.fields {
			n, err := valueSize(state, f.Schema, obj[f.Name])
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil

	case KindMap:
		entries, _ := value.AsMap()
		total := SizeOfRollingUint(uint64(len(entries)))
		for _, e := range entries {
			nk, err := valueSize(state, *schema.key, e.Key)
			if err != nil {
				return 0, err
			}
			nv, err := valueSize(state, *schema.value, e.Value)
			if err != nil {
				return 0, err
			}
			total += nk + nv
		}
		return total, nil

	case KindNullable, KindOptional:
		if value.IsNull() {
			return 1, nil
		}
		n, err := valueSize(state, *schema.elem, value)
		if err != nil {
			return 0, err
		}
		return 1 + n, nil

	case KindUnion:
		idx, err := schema.matchUnion(value)
		if err != nil {
			return 0, err
		}
		n, err := valueSize(state, schema.alts[idx], value)
		if err != nil {
			return 0, err
		}
		return SizeOfRollingUint(uint64(idx)) + n, nil

	case KindRecord:
		obj, _ := value.AsObject()
		keys := sortedObjectKeys(obj)
		total := SizeOfRollingUint(uint64(len(obj)))
		for _, k := range keys {
			n, err := valueSize(state, *schema.elem, obj[k])
			if err != nil {
				return 0, err
			}
			total += SizeOfRollingUint(uint64(len(k))) + len(k) + n
		}
		return total, nil

	case KindPromise:
		id, writer, err := allocDeferredStream(state)
		if err != nil {
			return 0, err
		}
		future, _ := value.AsFuture()
		serializePromise(state.mux, id, writer, *schema.elem, future)
		return SizeOfRollingUint(uint64(id)), nil

	case KindIterator:
		id, writer, err := allocDeferredStream(state)
		if err != nil {
			return 0, err
		}
		it, _ := value.AsIterator()
		serializeIterator(state.mux, id, writer, *schema.elem, it)
		return SizeOfRollingUint(uint64(id)), nil

	case KindReadableStream:
		id, writer, err := allocDeferredStream(state)
		if err != nil {
			return 0, err
		}
		src, _ := value.AsByteStream()
		serializeByteStream(state.mux, id, writer, src)
		return SizeOfRollingUint(uint64(id)), nil

	case KindAny:
		return 0, unsupportedErr("Any has no canonical wire representation; encode a concrete schema instead")

	default:
		return 0, unsupportedErr("unknown schema kind %v", schema.kind)
	}
}

// sortedObjectKeys returns obj's keys in a fixed, deterministic order.
// Record drives both the valueSize and writeValue passes off this same
// slice (computed independently in each, but identically ordered)
// instead of ranging over obj directly: two bare `range obj` loops over
// the same map are not guaranteed to visit entries in the same order,
// which would attach a deferred value's sub-stream ID (allocated during
// valueSize) to the wrong key's wire position during writeValue.
func sortedObjectKeys(obj map[string]Value) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// allocDeferredStream allocates one sub-stream ID for a deferred value
// node and records it in state, in the order valueSize visits the tree.
func allocDeferredStream(state *encodeState) (StreamID, *StreamWriter, error) {
	if state == nil || state.mux == nil {
		return 0, nil, unsupportedErr("encoding a deferred value requires a multiplexer")
	}
	id, writer, err := state.mux.CreateStream()
	if err != nil {
		return 0, nil, err
	}
	state.ids = append(state.ids, id)
	return id, writer, nil
}

// nextDeferredStream returns the next sub-stream ID recorded during the
// valueSize pass, in the same order writeValue now revisits the tree.
func nextDeferredStream(state *encodeState) StreamID {
	id := state.ids[state.pos]
	state.pos++
	return id
}

// writeValue appends value's encoding under schema to buf. Callers must
// have already validated value against schema.
func writeValue(state *encodeState, buf *Buffer, schema Schema, value Value) error {
	switch schema.kind {
	case KindBoolean:
		b, _ := value.AsBool()
		buf.AppendBool(b)

	case KindUint8:
		u, _ := value.AsUint8()
		buf.AppendByte(u)

	case KindUint:
		u, _ := value.AsUint()
		buf.AppendRollingUint(u)

	case KindInt:
		i, _ := value.AsInt()
		buf.AppendZigzag(i)

	case KindFloat:
		f, _ := value.AsFloat()
		buf.AppendFloat64Bits(math.Float64bits(f))

	case KindBigint:
		u, _ := value.AsBigint()
		buf.AppendFixed([]byte{
			byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24),
			byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56),
		})

	case KindString:
		s, _ := value.AsString()
		buf.AppendRaw([]byte(s))

	case KindDate:
		d, _ := value.AsDate()
		buf.AppendRaw([]byte(d))

	case KindU8Array, KindBuffer:
		b, _ := value.AsBytes()
		buf.AppendRaw(b)

	case KindArray:
		items, _ := value.AsArray()
		buf.AppendRollingUint(uint64(len(items)))
		for _, item := range items {
			if err := writeValue(state, buf, *schema.elem, item); err != nil {
				return err
			}
		}

	case KindObject:
		obj, _ := value.AsObject()
		for _, f := range schema.fields {
			if err := writeValue(state, buf, f.Schema, obj[f.Name]); err != nil {
				return err
			}
		}

	case KindMap:
		entries, _ := value.AsMap()
		buf.AppendRollingUint(uint64(len(entries)))
		for _, e := range entries {
			if err := writeValue(state, buf, *schema.key, e.Key); err != nil {
				return err
			}
			if err := writeValue(state, buf, *schema.value, e.Value); err != nil {
				return err
			}
		}

	case KindNullable, KindOptional:
		if value.IsNull() {
			buf.AppendByte(0)
			return nil
		}
		buf.AppendByte(1)
		return writeValue(state, buf, *schema.elem, value)

	case KindUnion:
		idx, err := schema.matchUnion(value)
		if err != nil {
			return err
		}
		buf.AppendRollingUint(uint64(idx))
		return writeValue(state, buf, schema.alts[idx], value)

	case KindRecord:
		obj, _ := value.AsObject()
		buf.AppendRollingUint(uint64(len(obj)))
		for _, k := range sortedObjectKeys(obj) {
			buf.AppendRaw([]byte(k))
			if err := writeValue(state, buf, *schema.elem, obj[k]); err != nil {
				return err
			}
		}

	case KindPromise, KindIterator, KindReadableStream:
		buf.AppendRollingUint(uint64(nextDeferredStream(state)))

	default:
		return unsupportedErr("unknown schema kind %v", schema.kind)
	}
	return nil
}
