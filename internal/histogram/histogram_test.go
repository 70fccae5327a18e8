package histogram

import (
	"encoding/binary"
	"testing"
)

func buildVITAPacket(samples []int16) []byte {
	header := make([]byte, 4)
	// SignalData (type 0), no class id, no trailer, no TSI/TSF
	payload := make([]byte, len(samples)*4) // complex<int16> = 4 bytes
	for i, s := range samples {
		binary.BigEndian.PutUint16(payload[i*4:], uint16(s))
	}
	buf := append(header, payload...)
	words := len(buf) / 4
	binary.BigEndian.PutUint16(buf[2:4], uint16(words))
	return buf
}

func TestTallyCentersAroundHalf(t *testing.T) {
	h := New(Params{Transport: TransportVITA49, ADCBits: 4, SampleRate: 1000})
	pkt := buildVITAPacket([]int16{0})
	h.params.MsgSize = len(pkt)
	if _, _, err := h.Process(pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.bins[8] != 1 {
		t.Fatalf("bins[8] = %d, want 1 (sample 0 -> center bin)", h.bins[8])
	}
}

func TestClampingAtEdges(t *testing.T) {
	h := New(Params{Transport: TransportVITA49, ADCBits: 2, SampleRate: 1000})
	pkt := buildVITAPacket([]int16{100, -100})
	h.params.MsgSize = len(pkt)
	if _, _, err := h.Process(pkt); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.bins[len(h.bins)-1] != 1 {
		t.Fatalf("top bin = %d, want 1", h.bins[len(h.bins)-1])
	}
	if h.bins[0] != 1 {
		t.Fatalf("bottom bin = %d, want 1", h.bins[0])
	}
}

func TestEmitsAfterSampleRateExceeded(t *testing.T) {
	h := New(Params{Transport: TransportVITA49, ADCBits: 2, SampleRate: 2})
	pkt := buildVITAPacket([]int16{0, 0, 0})
	h.params.MsgSize = len(pkt)
	_, emitted, err := h.Process(pkt)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !emitted {
		t.Fatal("expected emission once sample_rate exceeded")
	}
	if h.samples != 0 {
		t.Fatalf("samples = %d, want 0 after reset", h.samples)
	}
}
