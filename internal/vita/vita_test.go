package vita

import (
	"encoding/binary"
	"testing"
)

// buildPacket assembles a VITA-49 packet: header word, then stream id
// (unless skipStreamID), class id (if withClass), int ts (if withIntTS),
// frac ts (if withFracTS), then payload bytes, then an optional 4-byte
// trailer.
func buildPacket(t *testing.T, pt PacketType, withClass, withIntTS, withFracTS, withTrailer bool, payload []byte) []byte {
	t.Helper()
	var buf []byte
	b0 := byte(pt) << 4
	if withClass {
		b0 |= 0x08
	}
	if withTrailer {
		b0 |= 0x04
	}
	b1 := byte(0)
	if withIntTS {
		b1 |= 0x40 // TSI = 1
	}
	if withFracTS {
		b1 |= 0x10 // TSF = 1
	}
	header := make([]byte, 4)
	header[0] = b0
	header[1] = b1
	buf = append(buf, header...)

	if pt != SignalData {
		sid := make([]byte, 4)
		binary.BigEndian.PutUint32(sid, 0xDEADBEEF)
		buf = append(buf, sid...)
	}
	if withClass {
		cls := make([]byte, 8)
		binary.BigEndian.PutUint32(cls[0:4], 0x00ABCDEF)
		binary.BigEndian.PutUint16(cls[4:6], 0x1111)
		binary.BigEndian.PutUint16(cls[6:8], 0x2222)
		buf = append(buf, cls...)
	}
	if withIntTS {
		its := make([]byte, 4)
		binary.BigEndian.PutUint32(its, 12345)
		buf = append(buf, its...)
	}
	if withFracTS {
		fts := make([]byte, 8)
		binary.BigEndian.PutUint64(fts, 67890)
		buf = append(buf, fts...)
	}
	buf = append(buf, payload...)
	if withTrailer {
		buf = append(buf, 0, 0, 0, 0)
	}

	words := len(buf) / 4
	binary.BigEndian.PutUint16(buf[2:4], uint16(words))
	return buf
}

func TestParseSignalDataOmitsStreamID(t *testing.T) {
	payload := make([]byte, 16)
	pkt := buildPacket(t, SignalData, false, false, false, false, payload)
	o, err := Parse(pkt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := o.StreamID(); ok {
		t.Fatal("SignalData packet should not expose a stream id")
	}
	if !o.Header().IsData() {
		t.Fatal("expected IsData() true")
	}
	if got := o.PayloadBytes(); got != len(payload) {
		t.Fatalf("PayloadBytes() = %d, want %d", got, len(payload))
	}
}

func TestParseSignalDataStreamIDPresent(t *testing.T) {
	payload := make([]byte, 8)
	pkt := buildPacket(t, SignalDataStreamID, true, true, true, true, payload)
	o, err := Parse(pkt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sid, ok := o.StreamID()
	if !ok || sid != 0xDEADBEEF {
		t.Fatalf("StreamID() = %v, %v; want 0xDEADBEEF, true", sid, ok)
	}
	cls, ok := o.ClassID()
	if !ok || cls.OUI != 0x00ABCDEF || cls.InformationClass != 0x1111 || cls.PacketClass != 0x2222 {
		t.Fatalf("ClassID() = %+v, %v", cls, ok)
	}
	intTS, ok := o.IntegerTimestamp()
	if !ok || intTS != 12345 {
		t.Fatalf("IntegerTimestamp() = %v, %v", intTS, ok)
	}
	fracTS, ok := o.FractionalTimestamp()
	if !ok || fracTS != 67890 {
		t.Fatalf("FractionalTimestamp() = %v, %v", fracTS, ok)
	}
	if got := o.PayloadBytes(); got != len(payload) {
		t.Fatalf("PayloadBytes() = %d, want %d", got, len(payload))
	}
}

func TestParseContextPacketHasNoPayload(t *testing.T) {
	pkt := buildPacket(t, Context, false, false, false, false, nil)
	o, err := Parse(pkt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if o.Header().IsData() {
		t.Fatal("Context packet should not be IsData")
	}
	if !o.Header().IsContext() {
		t.Fatal("expected IsContext() true")
	}
	if got := o.PayloadBytes(); got != 0 {
		t.Fatalf("PayloadBytes() = %d, want 0", got)
	}
}

func TestParseTooShort(t *testing.T) {
	if _, err := Parse([]byte{0, 0}); err == nil {
		t.Fatal("expected error for truncated packet")
	}
}

func TestPayloadTypedView(t *testing.T) {
	payload := make([]byte, 16)
	for i := range payload {
		payload[i] = byte(i)
	}
	pkt := buildPacket(t, SignalData, false, false, false, false, payload)
	o, err := Parse(pkt)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	samples := Payload[int16](o)
	if len(samples) != 8 {
		t.Fatalf("len(samples) = %d, want 8", len(samples))
	}
}
