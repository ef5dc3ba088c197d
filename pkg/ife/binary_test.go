package ife

import (
	"math"
	"testing"
)

func TestIntegerCodecLittleEndian(t *testing.T) {
	t.Parallel()

	var b [8]byte
	storeU16(b[:], 0x1122)
	if b[0] != 0x22 || b[1] != 0x11 {
		t.Fatalf("u16 is not little-endian: % X", b[:2])
	}
	storeU24(b[:], 0x112233)
	if b[0] != 0x33 || b[1] != 0x22 || b[2] != 0x11 {
		t.Fatalf("u24 is not little-endian: % X", b[:3])
	}
	if got := loadU24(b[:]); got != 0x112233 {
		t.Fatalf("u24 round trip: got 0x%06X", got)
	}
	storeU40(b[:], 0x1122334455)
	if b[0] != 0x55 || b[4] != 0x11 {
		t.Fatalf("u40 is not little-endian: % X", b[:5])
	}
	if got := loadU40(b[:]); got != 0x1122334455 {
		t.Fatalf("u40 round trip: got 0x%010X", got)
	}
	storeU64(b[:], 0x0102030405060708)
	if b[0] != 0x08 || b[7] != 0x01 {
		t.Fatalf("u64 is not little-endian: % X", b[:])
	}
}

// u24 and u40 must be safe flush against the end of a buffer.
func TestNarrowLoadsAtBufferEnd(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 8)
	storeU24(buf[5:], 0xABCDEF)
	if got := loadU24(buf[5:]); got != 0xABCDEF {
		t.Fatalf("u24 at buffer end: got 0x%06X", got)
	}
	storeU40(buf[3:], 0x1A2B3C4D5E)
	if got := loadU40(buf[3:]); got != 0x1A2B3C4D5E {
		t.Fatalf("u40 at buffer end: got 0x%010X", got)
	}
}

func TestSentinelRoundTrips(t *testing.T) {
	t.Parallel()

	var b [8]byte
	storeU40(b[:], NullTile)
	if got := loadU40(b[:]); got != NullTile {
		t.Fatalf("NULL_TILE round trip: got 0x%010X", got)
	}
	storeU24(b[:], maxUint24)
	if got := loadU24(b[:]); got != maxUint24 {
		t.Fatalf("u24 max round trip: got 0x%06X", got)
	}
}

// The portable float path must produce the exact IEEE 754 bit patterns the
// fast path bit-casts, so a non-IEEE host builds byte-identical files.
func TestPortableFloatPathMatchesIEEE(t *testing.T) {
	t.Parallel()

	f32Samples := []float32{0, 1, -1, 0.25, 20.0, 0.0000152587890625, 3.1415927, -123456.78}
	for _, v := range f32Samples {
		if got, want := f32ToIEEEBits(v), math.Float32bits(v); got != want {
			t.Errorf("f32ToIEEEBits(%g): got 0x%08X want 0x%08X", v, got, want)
		}
		bits := math.Float32bits(v)
		if got, want := f32FromIEEEBits(bits), math.Float32frombits(bits); got != want {
			t.Errorf("f32FromIEEEBits(0x%08X): got %g want %g", bits, got, want)
		}
	}

	f64Samples := []float64{0, 1, -1, 0.25, 20.0, 2.718281828459045, -98765.4321}
	for _, v := range f64Samples {
		if got, want := f64ToIEEEBits(v), math.Float64bits(v); got != want {
			t.Errorf("f64ToIEEEBits(%g): got 0x%016X want 0x%016X", v, got, want)
		}
		bits := math.Float64bits(v)
		if got, want := f64FromIEEEBits(bits), math.Float64frombits(bits); got != want {
			t.Errorf("f64FromIEEEBits(0x%016X): got %g want %g", bits, got, want)
		}
	}

	if bits := f32ToIEEEBits(float32(math.Inf(1))); bits != 0x7F800000 {
		t.Errorf("f32 +inf: got 0x%08X", bits)
	}
	if bits := f32ToIEEEBits(float32(math.Inf(-1))); bits != 0xFF800000 {
		t.Errorf("f32 -inf: got 0x%08X", bits)
	}
}

func TestFloatStoreLoadRoundTrip(t *testing.T) {
	t.Parallel()

	var b [8]byte
	storeF32(b[:], 0.25)
	if got := loadF32(b[:]); got != 0.25 {
		t.Fatalf("f32 round trip: got %g", got)
	}
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x80 || b[3] != 0x3E {
		t.Fatalf("f32 0.25 bytes: % X", b[:4])
	}
	storeF64(b[:], 20.0)
	if got := loadF64(b[:]); got != 20.0 {
		t.Fatalf("f64 round trip: got %g", got)
	}
}

func TestResultFlags(t *testing.T) {
	t.Parallel()

	if !success().Ok() || success().Failed() {
		t.Fatalf("success flags broken")
	}
	w := warningf("w")
	if !w.Ok() || !w.Warned() || w.Err() != nil {
		t.Fatalf("warning flags broken: %+v", w)
	}
	f := failuref("f")
	if f.Ok() || f.Err() == nil {
		t.Fatalf("failure flags broken: %+v", f)
	}
	v := validationFailuref("v")
	if v.Flags&Failure == 0 || v.Flags&ValidationFailure != ValidationFailure {
		t.Fatalf("validation failure must include the failure bit: %+v", v)
	}
	if v.Flags.String() != "VALIDATION_FAILURE" || w.Flags.String() != "WARNING_VALIDATION" {
		t.Fatalf("flag strings: %s / %s", v.Flags, w.Flags)
	}
}
