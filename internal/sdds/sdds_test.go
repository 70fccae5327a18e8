package sdds

import (
	"encoding/binary"
	"testing"
)

func buildPacket(seconds uint32, psecs uint64, payload []byte) []byte {
	buf := make([]byte, headerBytes+len(payload))
	binary.BigEndian.PutUint32(buf[offsetSeconds:], seconds)
	binary.BigEndian.PutUint64(buf[offsetPSeconds:], psecs)
	copy(buf[headerBytes:], payload)
	return buf
}

func TestParseFields(t *testing.T) {
	payload := make([]byte, 32)
	pkt := buildPacket(100, 500, payload)
	o, err := Parse(pkt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if o.Seconds() != 100 {
		t.Fatalf("Seconds() = %d, want 100", o.Seconds())
	}
	if o.Picoseconds() != 500 {
		t.Fatalf("Picoseconds() = %d, want 500", o.Picoseconds())
	}
	if o.PayloadBytes() != len(payload) {
		t.Fatalf("PayloadBytes() = %d, want %d", o.PayloadBytes(), len(payload))
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse(make([]byte, 4)); err == nil {
		t.Fatal("expected error for short packet")
	}
}

func TestPayloadTypedView(t *testing.T) {
	pkt := buildPacket(0, 0, make([]byte, 16))
	o, _ := Parse(pkt)
	samples := Payload[int16](o)
	if len(samples) != 8 {
		t.Fatalf("len(samples) = %d, want 8", len(samples))
	}
}
