package streamcable

import (
	"context"
	"sync"
)

// subStreamBuffer is the bounded per-ID mailbox a Demultiplexer feeds and a
// deferred Value's adapter drains. A bound keeps one stalled consumer from
// growing memory without limit; Dispatch reports a KindIO error if a
// sub-stream's producer outruns its consumer past that bound.
const subStreamBufferSize = 256

type subStreamBuffer struct {
	ch       chan Frame
	terminal bool // guarded by the owning Demultiplexer's mutex
}

// Demultiplexer routes inbound frames (as read off a shared transport by
// the caller) to the deferred value that owns each sub-stream ID. It is
// the decode-side counterpart of Multiplexer: callers feed it frames via
// Dispatch, and Deserialize attaches the Future/ValueIterator/
// ByteStreamSource adapters that pull from it to decoded Promise/Iterator/
// ReadableStream values.
type Demultiplexer struct {
	mu      sync.Mutex
	streams map[StreamID]*subStreamBuffer
}

// NewDemultiplexer creates an empty demultiplexer. Sub-stream buffers are
// created lazily, on first Dispatch or first read, whichever comes first.
func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{streams: make(map[StreamID]*subStreamBuffer)}
}

func (d *Demultiplexer) bufferFor(id StreamID) *subStreamBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.streams[id]
	if !ok {
		b = &subStreamBuffer{ch: make(chan Frame, subStreamBufferSize)}
		d.streams[id] = b
	}
	return b
}

// Dispatch delivers one inbound frame to its sub-stream. It is an error
// (KindInvalidData) to dispatch any frame for a sub-stream that has
// already received a Close or Error frame.
func (d *Demultiplexer) Dispatch(f Frame) error {
	b := d.bufferFor(f.ID)

	d.mu.Lock()
	if b.terminal {
		d.mu.Unlock()
		return invalidDataErr("frame received for closed sub-stream %d", f.ID)
	}
	if f.Kind != FrameData {
		b.terminal = true
	}
	d.mu.Unlock()

	select {
	case b.ch <- f:
	default:
		return wrapErr(KindIO, "sub-stream buffer full", nil)
	}
	if f.Kind != FrameData {
		close(b.ch)
	}
	return nil
}

// next blocks for the next frame belonging to id, or returns an error if
// ctx is cancelled first.
func (d *Demultiplexer) next(ctx context.Context, id StreamID) (Frame, error) {
	b := d.bufferFor(id)
	select {
	case f, ok := <-b.ch:
		if !ok {
			return Frame{}, invalidDataErr("sub-stream %d closed without a terminal frame", id)
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, wrapErr(KindIO, "await cancelled", ctx.Err())
	}
}

// demuxFuture adapts one Promise sub-stream into a Future.
type demuxFuture struct {
	d      *Demultiplexer
	id     StreamID
	schema Schema
}

func (f *demuxFuture) Await(ctx context.Context) (Value, error) {
	frame, err := f.d.next(ctx, f.id)
	if err != nil {
		return Value{}, err
	}
	switch frame.Kind {
	case FrameError:
		return Value{}, invalidDataErr("promise rejected: %s", frame.ErrMsg)
	case FrameClose:
		return Value{}, invalidDataErr("promise closed with no resolved value")
	case FrameData:
		if len(frame.Payload) < 1 || frame.Payload[0] != 1 {
			return Value{}, invalidDataErr("invalid promise success marker")
		}
		c := newCursor(NewSliceSource(frame.Payload[1:]))
		v, err := readValue(&decodeState{demux: f.d}, c, f.schema)
		if err != nil {
			return Value{}, err
		}
		closeFrame, err := f.d.next(ctx, f.id)
		if err != nil {
			return Value{}, err
		}
		if closeFrame.Kind != FrameClose {
			return Value{}, invalidDataErr("expected close frame to terminate promise %d", f.id)
		}
		return v, nil
	default:
		return Value{}, invalidDataErr("unexpected frame kind on promise %d", f.id)
	}
}

// demuxIterator adapts one Iterator sub-stream into a ValueIterator.
type demuxIterator struct {
	d      *Demultiplexer
	id     StreamID
	schema Schema
	done   bool
}

func (it *demuxIterator) Next(ctx context.Context) (Value, bool, error) {
	if it.done {
		return Value{}, false, nil
	}
	frame, err := it.d.next(ctx, it.id)
	if err != nil {
		return Value{}, false, err
	}
	switch frame.Kind {
	case FrameError:
		it.done = true
		return Value{}, false, invalidDataErr("iterator %d errored: %s", it.id, frame.ErrMsg)
	case FrameClose:
		it.done = true
		return Value{}, false, nil
	case FrameData:
		if len(frame.Payload) < 1 {
			return Value{}, false, invalidDataErr("empty iterator frame on %d", it.id)
		}
		if frame.Payload[0] == 0 {
			it.done = true
			closeFrame, err := it.d.next(ctx, it.id)
			if err != nil {
				return Value{}, false, err
			}
			if closeFrame.Kind != FrameClose {
				return Value{}, false, invalidDataErr("expected close frame to terminate iterator %d", it.id)
			}
			return Value{}, false, nil
		}
		if frame.Payload[0] != 1 {
			return Value{}, false, invalidDataErr("invalid iterator continuation byte on %d", it.id)
		}
		c := newCursor(NewSliceSource(frame.Payload[1:]))
		v, err := readValue(&decodeState{demux: it.d}, c, it.schema)
		if err != nil {
			return Value{}, false, err
		}
		return v, true, nil
	default:
		return Value{}, false, invalidDataErr("unexpected frame kind on iterator %d", it.id)
	}
}

// demuxByteStream adapts one ReadableStream sub-stream into a
// ByteStreamSource.
type demuxByteStream struct {
	d    *Demultiplexer
	id   StreamID
	done bool
}

func (s *demuxByteStream) Next(ctx context.Context) ([]byte, bool, error) {
	if s.done {
		return nil, false, nil
	}
	frame, err := s.d.next(ctx, s.id)
	if err != nil {
		return nil, false, err
	}
	switch frame.Kind {
	case FrameError:
		s.done = true
		return nil, false, invalidDataErr("byte stream %d errored: %s", s.id, frame.ErrMsg)
	case FrameClose:
		s.done = true
		return nil, false, nil
	case FrameData:
		return frame.Payload, true, nil
	default:
		return nil, false, invalidDataErr("unexpected frame kind on byte stream %d", s.id)
	}
}
