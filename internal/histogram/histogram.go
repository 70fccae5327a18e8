// Package histogram tabulates a running distribution of in-phase sample
// values observed across a stream of network packets.
package histogram

import (
	"fmt"

	"github.com/geontech/composite-dsp/internal/sdds"
	"github.com/geontech/composite-dsp/internal/vita"
)

// Transport selects the packet overlay used to reach each packet's
// payload.
type Transport string

const (
	TransportSDDS   Transport = "sdds"
	TransportVITA49 Transport = "vita49"
)

// Params configures a Histogram.
type Params struct {
	Transport  Transport
	MsgSize    int
	Byteswap   bool
	ADCBits    int
	SampleRate uint32
}

// Histogram accumulates a power-of-two-bin distribution of I-component
// sample values across successive Process calls, emitting and resetting
// once enough samples have been seen.
type Histogram struct {
	params  Params
	bins    []uint32
	samples uint32
}

// New constructs a Histogram with 2^ADCBits bins, all zeroed.
func New(p Params) *Histogram {
	return &Histogram{
		params: p,
		bins:   make([]uint32, 1<<uint(p.ADCBits)),
	}
}

// Process walks buf as a sequence of fixed-size (MsgSize) packets,
// extracting complex int16 IQ samples via the configured transport and
// tallying each sample's real component into the histogram. It returns
// a snapshot of the histogram and true if enough samples have
// accumulated to emit, resetting internal state for the next period.
func (h *Histogram) Process(buf []byte) ([]uint32, bool, error) {
	for idx := 0; idx+h.params.MsgSize <= len(buf); idx += h.params.MsgSize {
		packet := buf[idx : idx+h.params.MsgSize]
		payload, err := h.payload(packet)
		if err != nil {
			return nil, false, err
		}
		for _, sample := range payload {
			v := int16(sample)
			if h.params.Byteswap {
				v = int16(byteswapU16(uint16(sample)))
			}
			h.tally(v)
		}
	}
	if h.samples > h.params.SampleRate {
		out := h.bins
		h.bins = make([]uint32, 1<<uint(h.params.ADCBits))
		h.samples = 0
		return out, true, nil
	}
	return nil, false, nil
}

func (h *Histogram) tally(sample int16) {
	half := len(h.bins) / 2
	idx := int(sample) + half
	switch {
	case idx < 0:
		h.bins[0]++
	case idx >= len(h.bins):
		h.bins[len(h.bins)-1]++
	default:
		h.bins[idx]++
	}
	h.samples++
}

// complexI16 mirrors std::complex<int16_t>'s real component only; the
// imaginary half is present in the wire format but never consumed here.
type complexI16 struct {
	Real uint16
	Imag uint16
}

func (h *Histogram) payload(packet []byte) ([]uint16, error) {
	switch h.params.Transport {
	case TransportSDDS:
		o, err := sdds.Parse(packet)
		if err != nil {
			return nil, err
		}
		pairs := sdds.Payload[complexI16](o)
		return realComponents(pairs), nil
	case TransportVITA49:
		o, err := vita.Parse(packet)
		if err != nil {
			return nil, err
		}
		if !o.Header().IsData() {
			return nil, nil
		}
		pairs := vita.Payload[complexI16](o)
		return realComponents(pairs), nil
	default:
		return nil, fmt.Errorf("histogram: unknown transport %q", h.params.Transport)
	}
}

func realComponents(pairs []complexI16) []uint16 {
	out := make([]uint16, len(pairs))
	for i, p := range pairs {
		out[i] = p.Real
	}
	return out
}

func byteswapU16(v uint16) uint16 {
	return v<<8 | v>>8
}
