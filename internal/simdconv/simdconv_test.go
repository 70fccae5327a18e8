package simdconv

import "testing"

func TestConvertI16ToF32Signed(t *testing.T) {
	src := []int16{-1, 0, 1, 32767, -32768}
	dst := make([]float32, len(src))
	ConvertI16ToF32(src, dst, false)
	want := []float32{-1, 0, 1, 32767, -32768}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestConvertI16ToF32Unsigned(t *testing.T) {
	src := []uint16{0, 1, 65535}
	dst := make([]float32, len(src))
	ConvertI16ToF32(src, dst, false)
	want := []float32{0, 1, 65535}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestConvertByteswap(t *testing.T) {
	// 0x0100 byteswapped is 0x0001 = 1
	src := []uint16{0x0100}
	dst := make([]float32, 1)
	ConvertI16ToF32(src, dst, true)
	if dst[0] != 1 {
		t.Fatalf("dst[0] = %v, want 1", dst[0])
	}
}

func TestWindowedMultiplies(t *testing.T) {
	src := []int16{2, 4, 8}
	window := []float32{0.5, 0.25, 2}
	dst := make([]float32, 3)
	WindowedI16ToF32(src, dst, false, window)
	want := []float32{1, 1, 16}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestConvertI32ToF64(t *testing.T) {
	src := []int32{-2147483648, 0, 2147483647}
	dst := make([]float64, len(src))
	ConvertI32ToF64(src, dst, false)
	want := []float64{-2147483648, 0, 2147483647}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestConvertI64ToF64Unsigned(t *testing.T) {
	src := []uint64{0, 1 << 40}
	dst := make([]float64, len(src))
	ConvertI64ToF64(src, dst, false)
	want := []float64{0, float64(uint64(1) << 40)}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestScalarFallbackMatchesDispatch(t *testing.T) {
	src := []int16{1, -2, 3, -4, 5, -6, 7, -8, 9, -10, 11, -12, 13, -14, 15, -16, 17}
	dst := make([]float32, len(src))
	dstScalar := make([]float32, len(src))
	ConvertI16ToF32(src, dst, false)
	lane16to32(src, dstScalar, false, nil)
	for i := range dst {
		if dst[i] != dstScalar[i] {
			t.Fatalf("dispatch mismatch at %d: %v vs %v", i, dst[i], dstScalar[i])
		}
	}
}
