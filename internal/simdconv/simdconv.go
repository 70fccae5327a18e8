// Package simdconv implements the integer-to-float conversion and
// convert+window kernels that turn raw network payload samples into
// aligned floating point buffers.
//
// Lane counts mirror the original AVX-512 kernels: 16 lanes per step on
// the float32 path, 8 lanes per step on the float64 path. A build without
// AVX-512F runs the same contract through a scalar fallback; both paths
// are required to produce identical output, so dispatch only changes
// which loop shape is used, never the numeric result.
package simdconv

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

// LanesF32 is the number of elements processed per step on the float32 path.
const LanesF32 = 16

// LanesF64 is the number of elements processed per step on the float64 path.
const LanesF64 = 8

var hasAVX512 = cpu.X86.HasAVX512F

// Int16Like is the set of 16-bit integer source types.
type Int16Like interface {
	~int16 | ~uint16
}

// Int32Like is the set of 32-bit integer source types.
type Int32Like interface {
	~int32 | ~uint32
}

// Int64Like is the set of 64-bit integer source types.
type Int64Like interface {
	~int64 | ~uint64
}

func byteswap16(v uint16) uint16 { return bits.ReverseBytes16(v) }
func byteswap32(v uint32) uint32 { return bits.ReverseBytes32(v) }
func byteswap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

// ConvertI16ToF32 converts 16-bit integer samples to float32, optionally
// byteswapping each source element first.
func ConvertI16ToF32[I Int16Like](src []I, dst []float32, byteswap bool) {
	convert16to32(src, dst, byteswap, nil)
}

// ConvertI32ToF32 converts 32-bit integer samples to float32.
func ConvertI32ToF32[I Int32Like](src []I, dst []float32, byteswap bool) {
	convert32to32(src, dst, byteswap, nil)
}

// ConvertI16ToF64 converts 16-bit integer samples to float64.
func ConvertI16ToF64[I Int16Like](src []I, dst []float64, byteswap bool) {
	convert16to64(src, dst, byteswap, nil)
}

// ConvertI32ToF64 converts 32-bit integer samples to float64.
func ConvertI32ToF64[I Int32Like](src []I, dst []float64, byteswap bool) {
	convert32to64(src, dst, byteswap, nil)
}

// ConvertI64ToF64 converts 64-bit integer samples to float64.
func ConvertI64ToF64[I Int64Like](src []I, dst []float64, byteswap bool) {
	convert64to64(src, dst, byteswap, nil)
}

// WindowedI16ToF32 converts then multiplies element-wise by window, which
// must be at least len(src) long. A nil window behaves like ConvertI16ToF32.
func WindowedI16ToF32[I Int16Like](src []I, dst []float32, byteswap bool, window []float32) {
	convert16to32(src, dst, byteswap, window)
}

// WindowedI32ToF32 is the windowed 32-bit-source float32 variant.
func WindowedI32ToF32[I Int32Like](src []I, dst []float32, byteswap bool, window []float32) {
	convert32to32(src, dst, byteswap, window)
}

// WindowedI16ToF64 is the windowed 16-bit-source float64 variant.
func WindowedI16ToF64[I Int16Like](src []I, dst []float64, byteswap bool, window []float64) {
	convert16to64(src, dst, byteswap, window)
}

// WindowedI32ToF64 is the windowed 32-bit-source float64 variant.
func WindowedI32ToF64[I Int32Like](src []I, dst []float64, byteswap bool, window []float64) {
	convert32to64(src, dst, byteswap, window)
}

// WindowedI64ToF64 is the windowed 64-bit-source float64 variant.
func WindowedI64ToF64[I Int64Like](src []I, dst []float64, byteswap bool, window []float64) {
	convert64to64(src, dst, byteswap, window)
}

func convert16to32[I Int16Like](src []I, dst []float32, byteswap bool, window []float32) {
	n := len(src)
	if hasAVX512 {
		for i := 0; i < n; i += LanesF32 {
			end := min(i+LanesF32, n)
			lane16to32(src[i:end], dst[i:end], byteswap, windowSlice(window, i, end))
		}
		return
	}
	lane16to32(src, dst, byteswap, window)
}

func convert32to32[I Int32Like](src []I, dst []float32, byteswap bool, window []float32) {
	n := len(src)
	if hasAVX512 {
		for i := 0; i < n; i += LanesF32 {
			end := min(i+LanesF32, n)
			lane32to32(src[i:end], dst[i:end], byteswap, windowSlice(window, i, end))
		}
		return
	}
	lane32to32(src, dst, byteswap, window)
}

func convert16to64[I Int16Like](src []I, dst []float64, byteswap bool, window []float64) {
	n := len(src)
	if hasAVX512 {
		for i := 0; i < n; i += LanesF64 {
			end := min(i+LanesF64, n)
			lane16to64(src[i:end], dst[i:end], byteswap, windowSlice(window, i, end))
		}
		return
	}
	lane16to64(src, dst, byteswap, window)
}

func convert32to64[I Int32Like](src []I, dst []float64, byteswap bool, window []float64) {
	n := len(src)
	if hasAVX512 {
		for i := 0; i < n; i += LanesF64 {
			end := min(i+LanesF64, n)
			lane32to64(src[i:end], dst[i:end], byteswap, windowSlice(window, i, end))
		}
		return
	}
	lane32to64(src, dst, byteswap, window)
}

func convert64to64[I Int64Like](src []I, dst []float64, byteswap bool, window []float64) {
	n := len(src)
	if hasAVX512 {
		for i := 0; i < n; i += LanesF64 {
			end := min(i+LanesF64, n)
			lane64to64(src[i:end], dst[i:end], byteswap, windowSlice(window, i, end))
		}
		return
	}
	lane64to64(src, dst, byteswap, window)
}

func windowSlice[T any](w []T, i, end int) []T {
	if w == nil {
		return nil
	}
	return w[i:end]
}

func lane16to32[I Int16Like](src []I, dst []float32, byteswap bool, window []float32) {
	for i, s := range src {
		v := uint16(s)
		if byteswap {
			v = byteswap16(v)
		}
		var f float32
		if isSigned16[I]() {
			f = float32(int16(v))
		} else {
			f = float32(v)
		}
		if window != nil {
			f *= window[i]
		}
		dst[i] = f
	}
}

func lane32to32[I Int32Like](src []I, dst []float32, byteswap bool, window []float32) {
	for i, s := range src {
		v := uint32(s)
		if byteswap {
			v = byteswap32(v)
		}
		var f float32
		if isSigned32[I]() {
			f = float32(int32(v))
		} else {
			f = float32(v)
		}
		if window != nil {
			f *= window[i]
		}
		dst[i] = f
	}
}

func lane16to64[I Int16Like](src []I, dst []float64, byteswap bool, window []float64) {
	for i, s := range src {
		v := uint16(s)
		if byteswap {
			v = byteswap16(v)
		}
		var f float64
		if isSigned16[I]() {
			f = float64(int16(v))
		} else {
			f = float64(v)
		}
		if window != nil {
			f *= window[i]
		}
		dst[i] = f
	}
}

func lane32to64[I Int32Like](src []I, dst []float64, byteswap bool, window []float64) {
	for i, s := range src {
		v := uint32(s)
		if byteswap {
			v = byteswap32(v)
		}
		var f float64
		if isSigned32[I]() {
			f = float64(int32(v))
		} else {
			f = float64(v)
		}
		if window != nil {
			f *= window[i]
		}
		dst[i] = f
	}
}

func lane64to64[I Int64Like](src []I, dst []float64, byteswap bool, window []float64) {
	for i, s := range src {
		v := uint64(s)
		if byteswap {
			v = byteswap64(v)
		}
		var f float64
		if isSigned64[I]() {
			f = float64(int64(v))
		} else {
			f = float64(v)
		}
		if window != nil {
			f *= window[i]
		}
		dst[i] = f
	}
}

func isSigned16[I Int16Like]() bool {
	var z I
	z--
	return z < 0
}

func isSigned32[I Int32Like]() bool {
	var z I
	z--
	return z < 0
}

func isSigned64[I Int64Like]() bool {
	var z I
	z--
	return z < 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
