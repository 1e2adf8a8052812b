package streamcable

import (
	"fmt"
	"strconv"
	"strings"
)

// maxPrintedBytes bounds how much of a string/byte payload String() renders
// before truncating, so printing a large document stays readable.
const maxPrintedBytes = 64

// String renders a short type expression for s, e.g.
// "object{age:uint,name:string}" or "nullable(array<buffer>)". It is meant for debugging and
// log lines, not for the wire: it is never parsed back.
func (s Schema) String() string {
	var b strings.Builder
	writeSchemaString(&b, s)
	return b.String()
}

func writeSchemaString(b *strings.Builder, s Schema) {
	switch s.kind {
	case KindArray:
		b.WriteString("array<")
		writeSchemaString(b, *s.elem)
		b.WriteByte('>')

	case KindObject:
		b.WriteString("object{")
		for i, f := range s.fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Name)
			b.WriteByte(':')
			writeSchemaString(b, f.Schema)
		}
		b.WriteByte('}')

	case KindMap:
		b.WriteString("map<")
		writeSchemaString(b, *s.key)
		b.WriteByte(',')
		writeSchemaString(b, *s.value)
		b.WriteByte('>')

	case KindNullable:
		if s.elem == nil {
			b.WriteString("nullable(null)")
			return
		}
		b.WriteString("nullable(")
		writeSchemaString(b, *s.elem)
		b.WriteByte(')')

	case KindOptional:
		b.WriteString("optional(")
		writeSchemaString(b, *s.elem)
		b.WriteByte(')')

	case KindUnion:
		b.WriteString("union<")
		for i, alt := range s.alts {
			if i > 0 {
				b.WriteByte(',')
			}
			writeSchemaString(b, alt)
		}
		b.WriteByte('>')

	case KindPromise:
		b.WriteString("promise<")
		writeSchemaString(b, *s.elem)
		b.WriteByte('>')

	case KindIterator:
		b.WriteString("iterator<")
		writeSchemaString(b, *s.elem)
		b.WriteByte('>')

	case KindRecord:
		b.WriteString("record<")
		writeSchemaString(b, *s.elem)
		b.WriteByte('>')

	default:
		b.WriteString(s.kind.String())
	}
}

// String renders a short debug form of v. Long string/byte payloads are
// truncated; it is meant for logs, not round-tripping.
func (v Value) String() string {
	switch v.kind {
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueUint8:
		return strconv.FormatUint(uint64(v.u8), 10)
	case ValueUint:
		return strconv.FormatUint(v.u64, 10)
	case ValueInt:
		return strconv.FormatInt(v.i64, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.f64, 'g', -1, 64)
	case ValueString:
		return quoteTruncated(v.str)
	case ValueBytes:
		return truncatedHex(v.bytes)
	case ValueArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case ValueObject:
		parts := make([]string, 0, len(v.obj))
		for k, fv := range v.obj {
			parts = append(parts, k+":"+fv.String())
		}
		return "{" + strings.Join(parts, ",") + "}"
	case ValueMap:
		parts := make([]string, len(v.entries))
		for i, e := range v.entries {
			parts[i] = e.Key.String() + "=>" + e.Value.String()
		}
		return "map{" + strings.Join(parts, ",") + "}"
	case ValueNull:
		return "null"
	case ValueDate:
		return v.str
	case ValueBigint:
		return strconv.FormatUint(v.u64, 10) + "n"
	case ValueFuture:
		return "<future>"
	case ValueIterator:
		return "<iterator>"
	case ValueByteStream:
		return "<bytestream>"
	default:
		return fmt.Sprintf("<unknown value kind %d>", v.kind)
	}
}

func quoteTruncated(s string) string {
	if len(s) <= maxPrintedBytes {
		return strconv.Quote(s)
	}
	return strconv.Quote(s[:maxPrintedBytes]) + "..."
}

func truncatedHex(b []byte) string {
	n := len(b)
	truncated := n > maxPrintedBytes
	if truncated {
		b = b[:maxPrintedBytes]
	}
	var sb strings.Builder
	sb.WriteString("0x")
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	if truncated {
		sb.WriteString("...")
	}
	return sb.String()
}
