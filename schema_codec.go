package streamcable

// EncodeSchema produces the canonical binary encoding of s: a pure
// function of s alone, used to embed a schema in self-describing mode and
// to compute trust hashes externally if a caller wants them.
func EncodeSchema(s Schema) []byte {
	buf := GetBuffer()
	defer PutBuffer(buf)
	appendSchema(buf, s)
	out := make([]byte, len(buf.Bytes))
	copy(out, buf.Bytes)
	return out
}

func appendSchema(buf *Buffer, s Schema) {
	switch s.kind {
	case KindBoolean, KindUint8, KindUint, KindInt, KindFloat, KindString,
		KindU8Array, KindBuffer, KindDate, KindBigint, KindReadableStream, KindAny:
		buf.AppendByte(byte(s.kind))

	case KindArray:
		buf.AppendByte(byte(KindArray))
		appendSchema(buf, *s.elem)

	case KindObject:
		buf.AppendByte(byte(KindObject))
		buf.AppendRollingUint(uint64(len(s.fields)))
		for _, f := range s.fields {
			buf.AppendRaw([]byte(f.Name))
			appendSchema(buf, f.Schema)
		}

	case KindMap:
		buf.AppendByte(byte(KindMap))
		appendSchema(buf, *s.key)
		appendSchema(buf, *s.value)

	case KindNullable:
		buf.AppendByte(byte(KindNullable))
		if s.elem == nil {
			buf.AppendByte(0x00)
		} else {
			appendSchema(buf, *s.elem)
		}

	case KindOptional:
		buf.AppendByte(byte(KindOptional))
		appendSchema(buf, *s.elem)

	case KindUnion:
		buf.AppendByte(byte(KindUnion))
		buf.AppendRollingUint(uint64(len(s.alts) - 1))
		for _, alt := range s.alts {
			appendSchema(buf, alt)
		}

	case KindPromise:
		buf.AppendByte(byte(KindPromise))
		appendSchema(buf, *s.elem)

	case KindIterator:
		buf.AppendByte(byte(KindIterator))
		appendSchema(buf, *s.elem)

	case KindRecord:
		buf.AppendByte(byte(KindRecord))
		appendSchema(buf, *s.elem)
	}
}

// DecodeSchema reads one schema back from src, the inverse of EncodeSchema.
func DecodeSchema(src Source) (Schema, error) {
	c := newCursor(src)
	return c.readSchema()
}

func (c *cursor) readSchema() (Schema, error) {
	tagByte, err := c.readByte()
	if err != nil {
		return Schema{}, err
	}
	return c.readSchemaBody(SchemaKind(tagByte))
}

// readSchemaBody parses everything after the tag byte for tag. It is split
// out from readSchema so Nullable decoding, which has already consumed one
// byte to check for the 0x00 null-only marker, can hand that byte's value
// in here directly instead of needing to push it back onto the source.
func (c *cursor) readSchemaBody(tag SchemaKind) (Schema, error) {
	switch tag {
	case KindBoolean:
		return Boolean(), nil
	case KindUint8:
		return Uint8Schema(), nil
	case KindUint:
		return Uint(), nil
	case KindInt:
		return Int(), nil
	case KindFloat:
		return Float(), nil
	case KindString:
		return StringSchema(), nil
	case KindU8Array:
		return U8Array(), nil
	case KindBuffer:
		return Buffer(), nil
	case KindDate:
		return Date(), nil
	case KindBigint:
		return Bigint(), nil
	case KindReadableStream:
		return ReadableStream(), nil
	case KindAny:
		return Any(), nil

	case KindArray:
		elem, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return Array(elem), nil

	case KindObject:
		n, err := c.readRollingUint()
		if err != nil {
			return Schema{}, err
		}
		if err := checkLength(n, c.limits.MaxCollectionLen, "object schema"); err != nil {
			return Schema{}, err
		}
		fields := make([]ObjectField, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := c.readString()
			if err != nil {
				return Schema{}, err
			}
			fs, err := c.readSchema()
			if err != nil {
				return Schema{}, err
			}
			fields = append(fields, Field(name, fs))
		}
		return Object(fields...), nil

	case KindMap:
		key, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		value, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return MapSchema(key, value), nil

	case KindNullable:
		marker, err := c.readByte()
		if err != nil {
			return Schema{}, err
		}
		if marker == 0x00 {
			return Nullable(nil), nil
		}
		inner, err := c.readSchemaBody(SchemaKind(marker))
		if err != nil {
			return Schema{}, err
		}
		return Nullable(&inner), nil

	case KindOptional:
		inner, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return Optional(inner), nil

	case KindUnion:
		n, err := c.readRollingUint()
		if err != nil {
			return Schema{}, err
		}
		// Checked before the +1 below so n == ^uint64(0) can never wrap
		// count back around to 0 and bypass the limit entirely.
		if err := checkLength(n, c.limits.MaxCollectionLen, "union schema"); err != nil {
			return Schema{}, err
		}
		count := n + 1
		alts := make([]Schema, 0, count)
		for i := uint64(0); i < count; i++ {
			alt, err := c.readSchema()
			if err != nil {
				return Schema{}, err
			}
			alts = append(alts, alt)
		}
		return Union(alts...), nil

	case KindPromise:
		resolved, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return Promise(resolved), nil

	case KindIterator:
		item, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return Iterator(item), nil

	case KindRecord:
		value, err := c.readSchema()
		if err != nil {
			return Schema{}, err
		}
		return Record(value), nil

	case 0x00:
		return Schema{}, invalidDataErr("schema tag 0x00 is reserved")
	default:
		return Schema{}, invalidDataErr("unknown schema tag 0x%02x", byte(tag))
	}
}
