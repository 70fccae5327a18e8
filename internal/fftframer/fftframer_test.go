package fftframer

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/geontech/composite-dsp/internal/align"
	"github.com/geontech/composite-dsp/internal/component"
)

// buildVITAPacket returns a SignalData packet carrying numComplex
// interleaved int16 I/Q samples all set to the constant (re, im). The
// samples are little-endian, since the FFT framer does not byteswap.
func buildVITAPacket(numComplex int, re, im int16) []byte {
	buf := make([]byte, 4+numComplex*4)
	words := len(buf) / 4
	binary.BigEndian.PutUint16(buf[2:4], uint16(words))
	for i := 0; i < numComplex; i++ {
		off := 4 + i*4
		binary.LittleEndian.PutUint16(buf[off:], uint16(re))
		binary.LittleEndian.PutUint16(buf[off+2:], uint16(im))
	}
	return buf
}

func TestFFTFramerDCBinOnConstantInput(t *testing.T) {
	in := component.NewPort[[][]byte](4)
	out := component.NewPort[*align.Buf[complex128]](4)

	f := New(Params{FFTSize: 16, Transport: TransportVITA49, Window: WindowNone}, in, out)
	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	pkt := buildVITAPacket(16, 1, 0)
	in.Send([][]byte{pkt}, component.Timestamp{})

	// Give the background goroutine a moment to frame the packet.
	deadline := time.Now().Add(2 * time.Second)
	for {
		retval, err := f.Process()
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if retval == component.Normal {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a framed FFT result")
		}
	}

	sample, ok := out.TryRecv()
	if !ok {
		t.Fatal("expected one emitted spectrum")
	}
	spectrum := sample.Value
	if spectrum.Len() != 16 {
		t.Fatalf("spectrum len = %d, want 16", spectrum.Len())
	}
	if math.Abs(real(spectrum.Data()[0])-16) > 1e-9 {
		t.Fatalf("DC bin = %v, want ~16", spectrum.Data()[0])
	}
	for i := 1; i < 16; i++ {
		if math.Abs(real(spectrum.Data()[i])) > 1e-6 || math.Abs(imag(spectrum.Data()[i])) > 1e-6 {
			t.Fatalf("bin %d should be ~0 for a constant input, got %v", i, spectrum.Data()[i])
		}
	}
}

func TestInitializeRejectsBadFFTSize(t *testing.T) {
	in := component.NewPort[[][]byte](1)
	out := component.NewPort[*align.Buf[complex128]](1)
	f := New(Params{FFTSize: 5, Transport: TransportVITA49}, in, out)
	if err := f.Initialize(); err == nil {
		t.Fatal("expected error for fft_size not a multiple of the stride")
	}
}

func TestProcessTimesOutWithNoFrames(t *testing.T) {
	in := component.NewPort[[][]byte](1)
	out := component.NewPort[*align.Buf[complex128]](1)
	f := New(Params{FFTSize: 16, Transport: TransportVITA49}, in, out)
	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := f.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.Stop()

	start := time.Now()
	retval, err := f.Process()
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if retval != component.Noop {
		t.Fatalf("retval = %v, want Noop", retval)
	}
	if elapsed < 900*time.Millisecond {
		t.Fatalf("Process returned after %v, want ~1s wait", elapsed)
	}
}
