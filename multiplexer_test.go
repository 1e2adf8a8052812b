package streamcable

import (
	"context"
	"sync"
	"testing"
	"time"
)

// loopback wires a Multiplexer's frame output directly into a
// Demultiplexer, in-process, standing in for a real transport.
func loopback(t *testing.T, ctx context.Context, mux *Multiplexer, frames <-chan Frame) *Demultiplexer {
	t.Helper()
	demux := NewDemultiplexer()
	go func() {
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return
				}
				_ = demux.Dispatch(f)
			case <-ctx.Done():
				return
			}
		}
	}()
	return demux
}

type readyFuture struct {
	value Value
	err   error
}

func (f *readyFuture) Await(ctx context.Context) (Value, error) { return f.value, f.err }

func TestMultiplexerPromiseRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	mux, frames := NewMultiplexer(ctx)
	demux := loopback(t, ctx, mux, frames)

	schema := Promise(StringSchema())
	value := FutureValue(&readyFuture{value: StringValue("done")})

	buf := &Buffer{}
	if err := Serialize(schema, value, NewBufferSink(buf), true, mux); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	gotSchema, gotValue, err := Deserialize(NewSliceSource(buf.Bytes), nil, demux)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if gotSchema.Kind() != KindPromise {
		t.Fatalf("decoded schema kind = %v", gotSchema.Kind())
	}
	future, ok := gotValue.AsFuture()
	if !ok {
		t.Fatalf("expected future value")
	}
	resolved, err := future.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	s, ok := resolved.AsString()
	if !ok || s != "done" {
		t.Fatalf("resolved = %v", resolved)
	}
}

type sliceIterator struct {
	items []Value
	pos   int
}

func (it *sliceIterator) Next(ctx context.Context) (Value, bool, error) {
	if it.pos >= len(it.items) {
		return Value{}, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

func TestMultiplexerIteratorRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	mux, frames := NewMultiplexer(ctx)
	demux := loopback(t, ctx, mux, frames)

	schema := Iterator(Uint())
	src := &sliceIterator{items: []Value{UintValue(1), UintValue(2), UintValue(3)}}
	value := IteratorValue(src)

	buf := &Buffer{}
	if err := Serialize(schema, value, NewBufferSink(buf), true, mux); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	_, gotValue, err := Deserialize(NewSliceSource(buf.Bytes), nil, demux)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	it, ok := gotValue.AsIterator()
	if !ok {
		t.Fatalf("expected iterator value")
	}

	var got []uint64
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		n, _ := v.AsUint()
		got = append(got, n)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestMultiplexerIDAllocatorSkipsZeroAndAvoidsReuse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux, _ := NewMultiplexer(ctx)

	seen := make(map[StreamID]bool)
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		id, _, err := mux.CreateStream()
		if err != nil {
			t.Fatalf("CreateStream: %v", err)
		}
		if id == 0 {
			t.Fatal("allocator returned reserved id 0")
		}
		mu.Lock()
		if seen[id] {
			t.Fatalf("id %d allocated twice while still active", id)
		}
		seen[id] = true
		mu.Unlock()
	}
	if mux.ActiveCount() != 100 {
		t.Fatalf("ActiveCount() = %d, want 100", mux.ActiveCount())
	}
}

func TestCreateStreamRejectsOnceActiveCapReached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux, _ := NewMultiplexer(ctx)
	mux.counter = 0
	for i := 0; i < maxActiveStreams; i++ {
		if _, _, err := mux.CreateStream(); err != nil {
			t.Fatalf("CreateStream %d: %v", i, err)
		}
	}
	if _, _, err := mux.CreateStream(); err != ErrStreamCapacityExceeded {
		t.Fatalf("got %v, want ErrStreamCapacityExceeded", err)
	}
}

func TestRunSerializerFrameWireLayout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan Frame, 3)
	frames <- Frame{ID: 1, Kind: FrameData, Payload: []byte("hi")}
	frames <- Frame{ID: 1, Kind: FrameClose}
	close(frames)

	buf := &Buffer{}
	if err := RunSerializer(ctx, frames, NewBufferSink(buf)); err != nil {
		t.Fatalf("RunSerializer: %v", err)
	}

	want := []byte{
		0x00, 0x01, 0x02, 'h', 'i', // Data: id=1, varint(len)=2, payload
		0x00, 0x01, 0x00, // Close: id=1, 0x00
	}
	if len(buf.Bytes) != len(want) {
		t.Fatalf("got % x want % x", buf.Bytes, want)
	}
	for i := range want {
		if buf.Bytes[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x (full: % x)", i, buf.Bytes[i], want[i], buf.Bytes)
		}
	}
}

func TestCloseStreamIsCallableWithoutTheWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux, frames := NewMultiplexer(ctx)

	var got []Frame
	firstFrame := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range frames {
			got = append(got, f)
			if len(got) == 1 {
				close(firstFrame)
			}
		}
	}()

	id, _, err := mux.CreateStream()
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if mux.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", mux.ActiveCount())
	}

	mux.CloseStream(id)
	if mux.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d after CloseStream, want 0", mux.ActiveCount())
	}

	// Closing again is a no-op, not a second Close frame.
	mux.CloseStream(id)

	// Wait for the Close frame to reach the reader before cancelling: once
	// ctx is done, the multiplexer may drop frames still in its queue.
	select {
	case <-firstFrame:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame forwarded after CloseStream")
	}
	cancel()
	wg.Wait()

	if len(got) != 1 || got[0].ID != id || got[0].Kind != FrameClose {
		t.Fatalf("frames = %v, want exactly one Close frame for id %d", got, id)
	}
}

func TestStreamWriterRejectsUseAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mux, frames := NewMultiplexer(ctx)
	go func() {
		for range frames {
		}
	}()

	_, w, err := mux.CreateStream()
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write([]byte("late")); err == nil {
		t.Fatal("expected error writing to a closed stream")
	}
	if err := w.Close(); err == nil {
		t.Fatal("expected error closing an already-closed stream")
	}
}
