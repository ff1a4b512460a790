package main

import "testing"

func TestUint16RoundTrip(t *testing.T) {
	vals := []uint16{0, 1, 0xFF, 0x1234, 0xFFFF}
	for _, v := range vals {
		be := make([]byte, 2)
		PutUint16BE(be, v)
		if got := GetUint16BE(be); got != v {
			t.Errorf("GetUint16BE(PutUint16BE(%d)) = %d", v, got)
		}

		le := make([]byte, 2)
		PutUint16LE(le, v)
		if got := GetUint16LE(le); got != v {
			t.Errorf("GetUint16LE(PutUint16LE(%d)) = %d", v, got)
		}
	}
}

func TestUint24RoundTrip(t *testing.T) {
	vals := []uint32{0, 1, 0xFF, 0xFFFF, 0xFFFFFF, 0xABCDEF}
	for _, v := range vals {
		be := make([]byte, 3)
		PutUint24BE(be, v)
		if got := GetUint24BE(be); got != v {
			t.Errorf("GetUint24BE(PutUint24BE(%d)) = %d", v, got)
		}

		le := make([]byte, 3)
		PutUint24LE(le, v)
		if got := GetUint24LE(le); got != v {
			t.Errorf("GetUint24LE(PutUint24LE(%d)) = %d", v, got)
		}
	}
}

func TestUint32RoundTrip(t *testing.T) {
	vals := []uint32{0, 1, 0xFFFFFFFF, 0x12345678}
	for _, v := range vals {
		be := make([]byte, 4)
		PutUint32BE(be, v)
		if got := GetUint32BE(be); got != v {
			t.Errorf("GetUint32BE(PutUint32BE(%d)) = %d", v, got)
		}

		le := make([]byte, 4)
		PutUint32LE(le, v)
		if got := GetUint32LE(le); got != v {
			t.Errorf("GetUint32LE(PutUint32LE(%d)) = %d", v, got)
		}
	}
}

func TestUint64BERoundTrip(t *testing.T) {
	vals := []uint64{0, 1, 0xFFFFFFFFFFFFFFFF, 0x0123456789ABCDEF}
	for _, v := range vals {
		b := make([]byte, 8)
		PutUint64BE(b, v)
		if got := GetUint64BE(b); got != v {
			t.Errorf("GetUint64BE(PutUint64BE(%d)) = %d", v, got)
		}
	}
}

func TestFloat64BERoundTrip(t *testing.T) {
	vals := []float64{0, 1, -1, 3.14159265358979, 1e300, -1e-300}
	for _, v := range vals {
		b := make([]byte, 8)
		PutFloat64BE(b, v)
		if got := GetFloat64BE(b); got != v {
			t.Errorf("GetFloat64BE(PutFloat64BE(%v)) = %v", v, got)
		}
	}
}

// The RTMP chunk header mixes byte orders (big-endian 24-bit timestamp/length,
// little-endian stream ID); decode one known byte sequence as both 24-bit
// big-endian and 24-bit little-endian to pin each byte order down.
func TestUint24KnownVectors(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	if got := GetUint24BE(b); got != 0x010203 {
		t.Errorf("GetUint24BE(%v) = %#x, want 0x010203", b, got)
	}
	if got := GetUint24LE(b); got != 0x030201 {
		t.Errorf("GetUint24LE(%v) = %#x, want 0x030201", b, got)
	}
}
