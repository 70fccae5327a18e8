// Package framer implements the stream-to-vector component: it walks
// batches of VITA-49 or SDDS packets and accumulates their interleaved
// complex-int16 IQ payloads into fixed-length aligned complex buffers,
// emitting one whenever the accumulator fills.
package framer

import (
	"fmt"
	"unsafe"

	"github.com/geontech/composite-dsp/internal/align"
	"github.com/geontech/composite-dsp/internal/component"
	"github.com/geontech/composite-dsp/internal/sdds"
	"github.com/geontech/composite-dsp/internal/simdconv"
	"github.com/geontech/composite-dsp/internal/vita"
)

// Transport selects which wire framing a Framer parses incoming packets
// with.
type Transport int

const (
	TransportSDDS Transport = iota
	TransportVITA49
)

// Complex is the set of output element types a Framer can produce: the
// stride walked per group (in complex samples) is derived from which one
// is chosen, mirroring the template specialization in the source.
type Complex interface {
	~complex64 | ~complex128
}

// Params configures a Framer.
type Params struct {
	OutputSize uint32
	Transport  Transport
	// Byteswap defaults to false for this component, unlike histogram's
	// true default; both defaults are preserved rather than unified.
	Byteswap bool
}

// Framer accumulates IQ samples into Buf[C] frames of OutputSize complex
// elements.
type Framer[C Complex] struct {
	params Params
	out    *component.Port[*align.Buf[C]]

	outBuf *align.Buf[C]
	outIdx int
	outTS  component.Timestamp
}

// New constructs a Framer writing completed buffers to out.
func New[C Complex](p Params, out *component.Port[*align.Buf[C]]) *Framer[C] {
	return &Framer[C]{params: p, out: out}
}

// Initialize validates configuration.
func (f *Framer[C]) Initialize() error {
	if f.params.OutputSize == 0 {
		return fmt.Errorf("framer: output_size must be nonzero")
	}
	if int(f.params.OutputSize)%strideSamples[C]() != 0 {
		return fmt.Errorf("framer: output_size %d is not a multiple of the %d-sample stride", f.params.OutputSize, strideSamples[C]())
	}
	return nil
}

// Start is a no-op; this component has no background thread.
func (f *Framer[C]) Start() error { return nil }

// Stop is a no-op.
func (f *Framer[C]) Stop() error { return nil }

// strideSamples is the number of complex samples converted per group: 8
// for a complex64 target, 4 for complex128, matching the lane widths of
// the underlying int16-to-float32/float64 convert kernels.
func strideSamples[C Complex]() int {
	var zero C
	if _, ok := any(zero).(complex64); ok {
		return 8
	}
	return 4
}

// Process walks every packet in batch, converting its IQ payload into the
// output accumulator in stride-sized groups and emitting completed
// buffers downstream. It always returns NoYield so the scheduler drains
// the whole batch before moving to another component.
func (f *Framer[C]) Process(batch [][]byte) (component.Retval, error) {
	stride := strideSamples[C]()
	for _, raw := range batch {
		samples, ts, ok := f.extract(raw)
		if !ok {
			continue
		}
		for i := 0; i+2*stride <= len(samples); i += 2 * stride {
			if f.outBuf == nil {
				f.outBuf = align.New[C](int(f.params.OutputSize))
				f.outTS = ts
			}
			f.convertGroup(samples[i:i+2*stride])
			f.outIdx += stride
			if f.outIdx == int(f.params.OutputSize) {
				f.out.Send(f.outBuf, f.outTS)
				f.outBuf = nil
				f.outIdx = 0
			}
		}
	}
	return component.NoYield, nil
}

// extract returns the interleaved int16 I/Q samples and timestamp carried
// by raw, under the configured transport. ok is false for a non-data
// packet or one too short to parse.
func (f *Framer[C]) extract(raw []byte) (samples []int16, ts component.Timestamp, ok bool) {
	switch f.params.Transport {
	case TransportSDDS:
		o, err := sdds.Parse(raw)
		if err != nil {
			return nil, component.Timestamp{}, false
		}
		ts = component.Timestamp{Seconds: o.Seconds(), Picoseconds: o.Picoseconds()}
		return sdds.Payload[int16](o), ts, true
	case TransportVITA49:
		o, err := vita.Parse(raw)
		if err != nil || !o.Header().IsData() {
			return nil, component.Timestamp{}, false
		}
		if secs, present := o.IntegerTimestamp(); present {
			ts.Seconds = secs
		}
		if psecs, present := o.FractionalTimestamp(); present {
			ts.Picoseconds = psecs
		}
		return vita.Payload[int16](o), ts, true
	default:
		return nil, component.Timestamp{}, false
	}
}

// convertGroup converts one stride-sized group of interleaved int16 I/Q
// scalars into the output accumulator at outIdx, dispatching on C's real
// width.
func (f *Framer[C]) convertGroup(group []int16) {
	dst := f.outBuf.Data()[f.outIdx:]
	switch any(dst).(type) {
	case []complex64:
		d := any(dst).([]complex64)
		flat := complexRealsF32(d)
		simdconv.ConvertI16ToF32(group, flat, f.params.Byteswap)
	case []complex128:
		d := any(dst).([]complex128)
		flat := complexRealsF64(d)
		simdconv.ConvertI16ToF64(group, flat, f.params.Byteswap)
	}
}

// complexRealsF32 reinterprets a complex64 slice as its underlying
// interleaved real/imaginary float32 pairs, so the scalar convert kernels
// can write directly into it.
func complexRealsF32(c []complex64) []float32 {
	if len(c) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&c[0])), len(c)*2)
}

// complexRealsF64 is the complex128/float64 analog of complexRealsF32.
func complexRealsF64(c []complex128) []float64 {
	if len(c) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&c[0])), len(c)*2)
}
