// Package psd computes a power spectral density estimate from a complex
// FFT frame: gathered real/imag components, normalized power, and an
// optional dB conversion.
package psd

import (
	"fmt"
	"math"

	"github.com/geontech/composite-dsp/internal/align"
)

// Float is the set of element types the PSD kernel supports.
type Float interface {
	~float32 | ~float64
}

// Params holds the normalization constants computed once per FFT size /
// window, mirroring the original kernel's constructor which captured
// window_sum and sample_rate as broadcast SIMD registers.
type Params[T Float] struct {
	WindowSum  T
	SampleRate T
	// AltLogFormula selects log2(power) instead of the canonical
	// 10*log10(power) when converting to decibels.
	AltLogFormula bool
}

// Power computes power = (re^2 + im^2) / (Fs * windowSum) for each complex
// bin in data, writing into out. len(out) must equal data.Len().
func Power[T Float](p Params[T], data *align.Buf[complex128], out *align.Buf[T]) error {
	if data.Len() != out.Len() {
		return fmt.Errorf("psd: length mismatch: in=%d out=%d", data.Len(), out.Len())
	}
	denom := p.SampleRate * p.WindowSum
	src := data.Data()
	dst := out.Data()
	for i, c := range src {
		re := T(real(c))
		im := T(imag(c))
		dst[i] = (re*re + im*im) / denom
	}
	return nil
}

// ToDB converts a power buffer to decibels in place, using the canonical
// 10*log10(power) formula unless p.AltLogFormula selects the alternate
// log2(power) path.
func ToDB[T Float](p Params[T], power *align.Buf[T]) {
	data := power.Data()
	if p.AltLogFormula {
		for i, v := range data {
			data[i] = T(math.Log2(float64(v)))
		}
		return
	}
	for i, v := range data {
		data[i] = T(10 * math.Log10(float64(v)))
	}
}
