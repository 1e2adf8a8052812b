package streamcable

import "sync"

// Buffer accumulates encoded bytes. Supports only append operations, and is
// reused through a sync.Pool since Serialize allocates exactly one per call.
type Buffer struct {
	Bytes []byte
}

// Reset clears the buffer's contents but keeps its allocated memory.
func (b *Buffer) Reset() {
	b.Bytes = b.Bytes[:0]
}

var bufferPool = sync.Pool{
	New: func() any { return &Buffer{} },
}

// GetBuffer obtains a reset Buffer from the pool. Call PutBuffer when done.
func GetBuffer() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.Reset()
	return b
}

// GetBufferWithCap obtains a pooled Buffer guaranteed to have at least size
// bytes of capacity.
func GetBufferWithCap(size int) *Buffer {
	b := bufferPool.Get().(*Buffer)
	if cap(b.Bytes) < size {
		b.Bytes = make([]byte, 0, size)
	} else {
		b.Reset()
	}
	return b
}

// PutBuffer releases the buffer back to the pool. Using it afterward is
// undefined behavior.
func PutBuffer(b *Buffer) {
	bufferPool.Put(b)
}

// AppendRollingUint appends n as a rolling uint.
func (b *Buffer) AppendRollingUint(n uint64) {
	b.Bytes = AppendRollingUint(b.Bytes, n)
}

// AppendZigzag zigzag-encodes n, then appends it as a rolling uint.
func (b *Buffer) AppendZigzag(n int64) {
	b.Bytes = AppendRollingUint(b.Bytes, zigzagEncode(n))
}

// AppendByte appends a single raw byte.
func (b *Buffer) AppendByte(v byte) {
	b.Bytes = append(b.Bytes, v)
}

// AppendBool appends a boolean as a single byte: 1 for true, 0 for false.
func (b *Buffer) AppendBool(v bool) {
	if v {
		b.Bytes = append(b.Bytes, 1)
	} else {
		b.Bytes = append(b.Bytes, 0)
	}
}

// AppendFloat64Bits appends the 8 little-endian bytes of an IEEE-754 double
// already converted to its bit pattern.
func (b *Buffer) AppendFloat64Bits(bits uint64) {
	b.Bytes = append(b.Bytes,
		byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24),
		byte(bits>>32), byte(bits>>40), byte(bits>>48), byte(bits>>56))
}

// AppendRaw appends a length-prefixed chunk of raw bytes (used for strings,
// byte sequences, and dates).
func (b *Buffer) AppendRaw(v []byte) {
	b.AppendRollingUint(uint64(len(v)))
	b.Bytes = append(b.Bytes, v...)
}

// AppendFixed appends v without any length prefix, for fields whose length
// is implied by the schema (the 8 raw bytes of a bigint, for instance).
func (b *Buffer) AppendFixed(v []byte) {
	b.Bytes = append(b.Bytes, v...)
}

// Sink is the byte-sink abstraction the encode path writes to. Callers
// supply their own: a Buffer-backed in-memory sink, a bufio.Writer wrapper
// over a socket, or anything else that can accept a contiguous write and be
// flushed afterward. Transport selection is not part of this package.
type Sink interface {
	Write(p []byte) (int, error)
	Flush() error
}

// bufferSink adapts a *Buffer into a Sink for in-memory encoding.
type bufferSink struct {
	buf *Buffer
}

// NewBufferSink returns a Sink that appends every write to buf. Flush is a
// no-op; callers read buf.Bytes once encoding completes.
func NewBufferSink(buf *Buffer) Sink {
	return &bufferSink{buf: buf}
}

func (s *bufferSink) Write(p []byte) (int, error) {
	s.buf.Bytes = append(s.buf.Bytes, p...)
	return len(p), nil
}

func (s *bufferSink) Flush() error { return nil }

// flusher is implemented by writers (e.g. *bufio.Writer) that buffer writes
// and need an explicit flush.
type flusher interface {
	Flush() error
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

// writerSink adapts any writer into a Sink. If it also implements
// Flush() error (as *bufio.Writer does), that is called on Flush;
// otherwise Flush is a no-op.
type writerSink struct {
	w byteWriter
}

// NewWriterSink adapts an io.Writer (or anything implementing just Write)
// into a Sink suitable for Serialize.
func NewWriterSink(w byteWriter) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *writerSink) Flush() error {
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
