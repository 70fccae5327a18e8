// Package window generates analysis windows used by the FFT framer and
// fft components to taper frames before transforming them.
package window

import (
	"math"

	"github.com/geontech/composite-dsp/internal/align"
)

// Float is the set of element types a window may be generated for.
type Float interface {
	~float32 | ~float64
}

// BlackmanHarris returns a 4-term Blackman-Harris window of length n. When
// complex is true each coefficient is replicated into two adjacent lanes so
// the window lines up with interleaved (real, imag) samples.
//
// Reference: https://www.mathworks.com/help/signal/ref/blackmanharris.html
func BlackmanHarris[T Float](n int, complex bool) *align.Buf[T] {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	return generate[T](n, complex, float64(n), func(tn, N float64) float64 {
		return a0 -
			a1*math.Cos(2*math.Pi*tn/N) +
			a2*math.Cos(4*math.Pi*tn/N) -
			a3*math.Cos(6*math.Pi*tn/N)
	})
}

// Hamming returns a Hamming window of length n.
//
// Reference: https://www.mathworks.com/help/signal/ref/hamming.html
func Hamming[T Float](n int, complex bool) *align.Buf[T] {
	const (
		a0 = 0.54
		a1 = 0.46
	)
	N := float64(n - 1)
	if N == 0 {
		N = 1
	}
	return generate[T](n, complex, N, func(tn, N float64) float64 {
		return a0 - a1*math.Cos(2*math.Pi*tn/N)
	})
}

func generate[T Float](n int, complexLanes bool, N float64, f func(tn, N float64) float64) *align.Buf[T] {
	lanes := 1
	if complexLanes {
		lanes = 2
	}
	out := align.New[T](n * lanes)
	data := out.Data()
	for i := 0; i < n; i++ {
		val := T(f(float64(i), N))
		if complexLanes {
			data[i*2] = val
			data[i*2+1] = val
		} else {
			data[i] = val
		}
	}
	return out
}
