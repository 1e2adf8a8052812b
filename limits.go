package streamcable

// Limits bounds the sizes a decode pass will trust off the wire, in the
// same "0 means unlimited" shape as the teacher's DecodeLimits. Every
// rolling-uint length prefix a decoder reads - a string/bytes length, or
// an Array/Map/Record element count - is attacker-controlled: without a
// cap, a single crafted length can drive an allocation far larger than
// the document that follows it ever will, or overflow int on truncation.
type Limits struct {
	MaxStringLen     uint64 // max readString payload, in bytes
	MaxBytesLen      uint64 // max U8Array/Buffer payload, in bytes
	MaxCollectionLen uint64 // max Array/Map/Record/Object/Union element count
}

// DefaultLimits is applied by every cursor; there is no per-call Limits
// parameter, so changing the bounds means assigning to DefaultLimits. The
// bounds are generous for ordinary documents while capping what a length
// prefix alone can dictate: 64 MiB for a string or byte payload, and
// 10,000,000 elements for a collection.
var DefaultLimits = Limits{
	MaxStringLen:     64 * 1024 * 1024,
	MaxBytesLen:      64 * 1024 * 1024,
	MaxCollectionLen: 10_000_000,
}

// absoluteMaxReadLen is a hard ceiling enforced regardless of the
// configured Limits (even a caller-supplied Limits{} "unlimited" value),
// so a rolling-uint length prefix can never be narrowed to a negative or
// out-of-range int before being handed to ReadExact or make.
const absoluteMaxReadLen = 1<<31 - 1

// checkLength rejects n if it exceeds limit, unless limit is 0 (unlimited).
// It always enforces absoluteMaxReadLen first, independent of limit.
func checkLength(n uint64, limit uint64, what string) error {
	if n > absoluteMaxReadLen {
		return invalidDataErr("%s length %d exceeds the maximum supported size %d", what, n, uint64(absoluteMaxReadLen))
	}
	if limit > 0 && n > limit {
		return invalidDataErr("%s length %d exceeds configured limit %d", what, n, limit)
	}
	return nil
}
