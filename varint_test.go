package streamcable

import (
	"bytes"
	"testing"
)

func TestRollingUintRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 0xFC, 0xFD, 0xFE, 0xFF,
		0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000,
		1 << 40, ^uint64(0),
	}
	for _, n := range cases {
		b := AppendRollingUint(nil, n)
		if len(b) != SizeOfRollingUint(n) {
			t.Fatalf("n=%d: SizeOfRollingUint=%d but appended %d bytes", n, SizeOfRollingUint(n), len(b))
		}
		c := newCursor(NewSliceSource(b))
		got, err := c.readRollingUint()
		if err != nil {
			t.Fatalf("n=%d: readRollingUint: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: round-tripped as %d", n, got)
		}
	}
}

func TestRollingUintBoundaryEncoding(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{0xFC, []byte{0xFC}},
		{0xFD, []byte{0xFD, 0xFD, 0x00}},
		{0xFFFF, []byte{0xFD, 0xFF, 0xFF}},
		{0x10000, []byte{0xFE, 0x00, 0x00, 0x01, 0x00}},
		{0xFFFFFFFF, []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF}},
		{0x100000000, []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		got := AppendRollingUint(nil, c.n)
		if !bytes.Equal(got, c.want) {
			t.Fatalf("n=%#x: got % x want % x", c.n, got, c.want)
		}
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	cases := []int64{
		0, 1, -1, 2, -2, 1<<62 - 1, -(1 << 62),
		9223372036854775807,  // i64::MAX
		-9223372036854775808, // i64::MIN
	}
	for _, n := range cases {
		got := zigzagDecode(zigzagEncode(n))
		if got != n {
			t.Fatalf("n=%d: round-tripped as %d", n, got)
		}
	}
}

func TestZigzagEncodingIsCompact(t *testing.T) {
	// Small-magnitude values must fit in one varint byte regardless of sign.
	for _, n := range []int64{0, -1, 1, -2, 2, 63, -63} {
		u := zigzagEncode(n)
		if u > 0xFC {
			t.Fatalf("zigzagEncode(%d)=%d too large for a single byte", n, u)
		}
	}
}

func FuzzRollingUintRoundTrip(f *testing.F) {
	f.Add(uint64(0))
	f.Add(uint64(0xFD))
	f.Add(uint64(0x10000))
	f.Add(^uint64(0))
	f.Fuzz(func(t *testing.T, n uint64) {
		b := AppendRollingUint(nil, n)
		c := newCursor(NewSliceSource(b))
		got, err := c.readRollingUint()
		if err != nil {
			t.Fatalf("readRollingUint: %v", err)
		}
		if got != n {
			t.Fatalf("round-tripped %d as %d", n, got)
		}
	})
}

func FuzzZigzagRoundTrip(f *testing.F) {
	f.Add(int64(0))
	f.Add(int64(-1))
	f.Add(int64(1))
	f.Fuzz(func(t *testing.T, n int64) {
		if got := zigzagDecode(zigzagEncode(n)); got != n {
			t.Fatalf("round-tripped %d as %d", n, got)
		}
	})
}
