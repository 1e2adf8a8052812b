package streamcable

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StreamID identifies one logical sub-stream multiplexed over a shared byte
// sink. 0 is reserved and never allocated.
type StreamID uint16

// maxActiveStreams is the active-set cap: the allocator refuses once this
// many sub-streams are simultaneously open, reserving id 0.
const maxActiveStreams = 65534

// FrameKind distinguishes the three frame shapes a sub-stream can emit.
type FrameKind int

const (
	FrameData FrameKind = iota + 1
	FrameClose
	FrameError
)

// Frame is one atomic unit on the wire for a given sub-stream: a Data
// chunk, a normal Close, or an Error with a message. Close and Error are
// terminal; no further frame for the same ID may follow either.
type Frame struct {
	ID      StreamID
	Kind    FrameKind
	Payload []byte // set for FrameData
	ErrMsg  string // set for FrameError
}

// StreamWriter is the producer-facing handle for one sub-stream. All three
// operations are non-blocking enqueues onto an unbounded, per-multiplexer
// FIFO; a single serializer task drains that FIFO in order (see
// RunSerializer). After Close or Error, further calls return
// ErrWriterClosed.
type StreamWriter struct {
	id     StreamID
	mux    *Multiplexer
	mu     sync.Mutex
	closed bool
}

// Write enqueues a data chunk for this sub-stream. Empty chunks are
// suppressed rather than sent: a Data frame with no payload carries no
// information a reader needs.
func (w *StreamWriter) Write(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if len(b) == 0 {
		return nil
	}
	w.mux.enqueue(Frame{ID: w.id, Kind: FrameData, Payload: b})
	return nil
}

// Close enqueues a normal end-of-stream frame and retires the sub-stream.
func (w *StreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	w.mux.enqueue(Frame{ID: w.id, Kind: FrameClose})
	w.mux.closeStream(w.id)
	return nil
}

// Error enqueues a failure frame and retires the sub-stream.
func (w *StreamWriter) Error(message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	w.mux.enqueue(Frame{ID: w.id, Kind: FrameError, ErrMsg: message})
	w.mux.closeStream(w.id)
	return nil
}

// Multiplexer allocates sub-stream IDs and serializes concurrent
// data/close/error frames from them into one FIFO. It owns the ID
// allocator, the active-set, and the lifecycle of producer tasks spawned
// for deferred values (Promise, Iterator, ReadableStream).
type Multiplexer struct {
	mu      sync.Mutex
	counter uint32
	active  map[StreamID]struct{}

	queueMu sync.Mutex
	cond    *sync.Cond
	queue   []Frame
	closed  bool
	out     chan Frame

	group  *errgroup.Group
	groupCtx context.Context
}

// NewMultiplexer creates a multiplexer and starts its internal forwarder
// goroutine, which drains the producer-facing FIFO into the returned Frame
// channel. Callers pass that channel to RunSerializer (or their own loop)
// to write wire bytes; ctx bounds the lifetime of every producer task
// spawned for a deferred value.
func NewMultiplexer(ctx context.Context) (*Multiplexer, <-chan Frame) {
	group, groupCtx := errgroup.WithContext(ctx)
	m := &Multiplexer{
		active:   make(map[StreamID]struct{}),
		out:      make(chan Frame),
		group:    group,
		groupCtx: groupCtx,
	}
	m.cond = sync.NewCond(&m.queueMu)

	go m.forward(ctx)
	go func() {
		<-ctx.Done()
		m.queueMu.Lock()
		m.closed = true
		m.cond.Broadcast()
		m.queueMu.Unlock()
	}()

	return m, m.out
}

// enqueue appends a frame to the unbounded FIFO. Never blocks the caller.
func (m *Multiplexer) enqueue(f Frame) {
	m.queueMu.Lock()
	m.queue = append(m.queue, f)
	m.cond.Signal()
	m.queueMu.Unlock()
}

func (m *Multiplexer) forward(ctx context.Context) {
	defer close(m.out)
	for {
		m.queueMu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.queueMu.Unlock()
			return
		}
		f := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		select {
		case m.out <- f:
		case <-ctx.Done():
			return
		}
	}
}

// CreateStream allocates a fresh sub-stream ID and its writer handle. IDs
// are assigned monotonically with wraparound, always skipping 0;
// allocation is refused once the active set has reached the 65534 cap.
func (m *Multiplexer) CreateStream() (StreamID, *StreamWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.active) >= maxActiveStreams {
		return 0, nil, ErrStreamCapacityExceeded
	}

	var id StreamID
	for {
		m.counter++
		if m.counter > 0xFFFF {
			m.counter = 1
		}
		candidate := StreamID(m.counter)
		if candidate == 0 {
			continue
		}
		if _, taken := m.active[candidate]; !taken {
			id = candidate
			break
		}
	}
	m.active[id] = struct{}{}
	return id, &StreamWriter{id: id, mux: m}, nil
}

// closeStream removes id from the active set. Writers call this once they
// reach a terminal state (Close or Error).
func (m *Multiplexer) closeStream(id StreamID) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

// CloseStream closes a sub-stream from outside its StreamWriter: it
// enqueues a normal end-of-stream frame and retires id from the active
// set. This is the caller-facing counterpart to StreamWriter.Close for
// callers holding only the ID - for example, external cancellation of a
// sub-stream whose writer has already been handed off to a producer task.
// Closing an id that is no longer active is a no-op.
func (m *Multiplexer) CloseStream(id StreamID) {
	m.mu.Lock()
	_, active := m.active[id]
	delete(m.active, id)
	m.mu.Unlock()
	if !active {
		return
	}
	m.enqueue(Frame{ID: id, Kind: FrameClose})
}

// ActiveCount reports how many sub-streams are currently open.
func (m *Multiplexer) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Wait blocks until every producer task spawned via spawn has returned. A
// producer's own failure never reaches Wait - it is reported inband as an
// Error frame on that sub-stream instead, since a sub-stream failure must
// not terminate the carrier it shares with every other sub-stream. Since
// every task spawn starts returns nil to the errgroup, Wait returns nil.
func (m *Multiplexer) Wait() error {
	return m.group.Wait()
}

// spawn runs fn as a tracked producer task. fn returns nothing: it reports
// its own failure as an Error frame on its sub-stream, and the task always
// returns nil to the errgroup, so one failing sub-stream never cancels its
// siblings.
func (m *Multiplexer) spawn(fn func(ctx context.Context)) {
	m.group.Go(func() error {
		fn(m.groupCtx)
		return nil
	})
}

// RunSerializer drains frames (as produced by NewMultiplexer) and writes
// them to sink using the following wire layout:
//
//	Data:  [id:2 big-endian] [varint(len)>0] [payload]
//	Close: [id:2] [0x00]
//	Error: [id:2] [0xFF] [varint(len)] [utf8 message]
//
// Each frame is flushed individually, so a frame is atomic with respect to
// any other frame even when they belong to different sub-streams.
func RunSerializer(ctx context.Context, frames <-chan Frame, sink Sink) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	for {
		select {
		case <-ctx.Done():
			return wrapErr(KindIO, "serializer cancelled", ctx.Err())
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			buf.Reset()
			buf.Bytes = append(buf.Bytes, byte(f.ID>>8), byte(f.ID))

			switch f.Kind {
			case FrameData:
				buf.AppendRaw(f.Payload)
			case FrameClose:
				buf.AppendByte(0x00)
			case FrameError:
				buf.AppendByte(0xFF)
				buf.AppendRaw([]byte(f.ErrMsg))
			}

			if _, err := sink.Write(buf.Bytes); err != nil {
				return wrapErr(KindIO, "write frame", err)
			}
			if err := sink.Flush(); err != nil {
				return wrapErr(KindIO, "flush frame", err)
			}
		}
	}
}

// serializePromise spawns the producer task for a Promise value: it awaits
// the future exactly once, then emits a single Data frame containing
// [1]++encode(innerSchema, value) on success, or an Error frame on
// rejection, followed by Close in the success case.
func serializePromise(m *Multiplexer, id StreamID, w *StreamWriter, innerSchema Schema, future Future) {
	m.spawn(func(ctx context.Context) {
		value, err := future.Await(ctx)
		if err != nil {
			_ = w.Error(err.Error())
			return
		}
		if err := innerSchema.Validate(value); err != nil {
			_ = w.Error(err.Error())
			return
		}
		size, err := valueSize(nil, innerSchema, value)
		if err != nil {
			_ = w.Error(err.Error())
			return
		}
		payload := GetBufferWithCap(1 + size)
		defer PutBuffer(payload)
		payload.AppendByte(1)
		if err := writeValue(nil, payload, innerSchema, value); err != nil {
			_ = w.Error(err.Error())
			return
		}
		_ = w.Write(append([]byte(nil), payload.Bytes...))
		_ = w.Close()
	})
}

// serializeIterator spawns the producer task for an Iterator value: each
// item is emitted as a Data frame of [1]++encode(itemSchema, item); the
// end of the sequence is a final Data frame containing just [0], followed
// by Close.
func serializeIterator(m *Multiplexer, id StreamID, w *StreamWriter, itemSchema Schema, it ValueIterator) {
	m.spawn(func(ctx context.Context) {
		for {
			item, ok, err := it.Next(ctx)
			if err != nil {
				_ = w.Error(err.Error())
				return
			}
			if !ok {
				_ = w.Write([]byte{0})
				_ = w.Close()
				return
			}
			if err := itemSchema.Validate(item); err != nil {
				_ = w.Error(err.Error())
				return
			}
			size, err := valueSize(nil, itemSchema, item)
			if err != nil {
				_ = w.Error(err.Error())
				return
			}
			payload := GetBufferWithCap(1 + size)
			payload.AppendByte(1)
			if err := writeValue(nil, payload, itemSchema, item); err != nil {
				PutBuffer(payload)
				_ = w.Error(err.Error())
				return
			}
			_ = w.Write(append([]byte(nil), payload.Bytes...))
			PutBuffer(payload)
		}
	})
}

// serializeByteStream spawns the producer task for a ReadableStream value:
// each non-empty chunk is forwarded verbatim as a Data frame.
func serializeByteStream(m *Multiplexer, id StreamID, w *StreamWriter, src ByteStreamSource) {
	m.spawn(func(ctx context.Context) {
		for {
			chunk, ok, err := src.Next(ctx)
			if err != nil {
				_ = w.Error(err.Error())
				return
			}
			if !ok {
				_ = w.Close()
				return
			}
			if len(chunk) == 0 {
				continue
			}
			_ = w.Write(chunk)
		}
	})
}
