// Package vita parses VITA-49 packets into an addressable, zero-copy
// overlay: a byte span plus a map of field offsets computed once at
// construction time.
package vita

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// ErrTruncated is returned when a packet is too short to hold its header
// or an optional field its flags claim is present.
var ErrTruncated = errors.New("vita: truncated packet")

// PacketType is the VITA-49 packet type field (top 4 bits of the first
// header byte).
type PacketType uint8

const (
	SignalData PacketType = iota
	SignalDataStreamID
	ExtensionData
	ExtensionDataStreamID
	Context
	ExtensionContext
	Command
	ExtensionCommand
)

// TSIType is the timestamp-integer field encoding.
type TSIType uint8

// TSFType is the timestamp-fractional field encoding.
type TSFType uint8

const (
	TSINone TSIType = 0
	TSFNone TSFType = 0
)

const minHeaderBytes = 4

// ClassIdentifier is the 8-byte class ID optional field: a 24-bit OUI plus
// 16-bit information-class and packet-class codes.
type ClassIdentifier struct {
	OUI              uint32
	InformationClass uint16
	PacketClass      uint16
}

// Header is the fixed 32-bit VITA-49 header word, decoded.
type Header struct {
	PacketType      PacketType
	ClassIDEnable   bool
	TrailerIncluded bool
	TSI             TSIType
	TSF             TSFType
	PacketCount     uint8
	PacketSize      uint16 // 32-bit words, including this header word
}

// IsData reports whether header describes a signal-data packet (with or
// without an explicit stream ID).
func (h Header) IsData() bool {
	return h.PacketType == SignalData || h.PacketType == SignalDataStreamID
}

// IsContext reports whether header describes a context packet.
func (h Header) IsContext() bool {
	return h.PacketType == Context
}

// Overlay is a parsed, zero-copy view over a single VITA-49 packet. It
// borrows the byte span passed to Parse; the caller must keep that span
// alive for as long as the Overlay is used.
type Overlay struct {
	data   []byte
	header Header

	streamIDOffset  int
	classIDOffset   int
	intTSOffset     int
	fracTSOffset    int
	payloadOffset   int
	trailerOffset   int
	hasStreamID     bool
	hasClassID      bool
	hasIntTS        bool
	hasFracTS       bool
	hasPayload      bool
	hasTrailer      bool
}

// Parse decodes the header of b and computes every present field's
// offset. It does not copy b.
func Parse(b []byte) (Overlay, error) {
	if len(b) < minHeaderBytes {
		return Overlay{}, ErrTruncated
	}

	b0 := b[0]
	b1 := b[1]
	header := Header{
		PacketType:      PacketType(b0 >> 4),
		ClassIDEnable:   b0&0x08 != 0,
		TrailerIncluded: b0&0x04 != 0,
		TSI:             TSIType((b1 & 0xC0) >> 6),
		TSF:             TSFType((b1 & 0x30) >> 4),
		PacketCount:     b1 & 0x0F,
		PacketSize:      binary.BigEndian.Uint16(b[2:4]),
	}

	o := Overlay{data: b, header: header}
	cursor := minHeaderBytes

	if header.PacketType != SignalData {
		o.hasStreamID = true
		o.streamIDOffset = cursor
		cursor += 4
	}
	if header.ClassIDEnable {
		o.hasClassID = true
		o.classIDOffset = cursor
		cursor += 8
	}
	if header.TSI != TSINone {
		o.hasIntTS = true
		o.intTSOffset = cursor
		cursor += 4
	}
	if header.TSF != TSFNone {
		o.hasFracTS = true
		o.fracTSOffset = cursor
		cursor += 8
	}
	if header.IsData() {
		o.hasPayload = true
		o.payloadOffset = cursor
		if header.TrailerIncluded {
			o.hasTrailer = true
			o.trailerOffset = (int(header.PacketSize) - 1) * 4
		}
	}

	if cursor > len(b) {
		return Overlay{}, ErrTruncated
	}
	if o.hasClassID && o.classIDOffset+8 > len(b) {
		return Overlay{}, ErrTruncated
	}
	if o.hasFracTS && o.fracTSOffset+8 > len(b) {
		return Overlay{}, ErrTruncated
	}

	return o, nil
}

// Header returns the decoded fixed header.
func (o Overlay) Header() Header {
	return o.header
}

// StreamID returns the stream ID field, if present.
func (o Overlay) StreamID() (uint32, bool) {
	if !o.hasStreamID {
		return 0, false
	}
	return binary.BigEndian.Uint32(o.data[o.streamIDOffset : o.streamIDOffset+4]), true
}

// ClassID returns the class identifier field, if present.
func (o Overlay) ClassID() (ClassIdentifier, bool) {
	if !o.hasClassID {
		return ClassIdentifier{}, false
	}
	w0 := binary.BigEndian.Uint32(o.data[o.classIDOffset : o.classIDOffset+4])
	w1 := binary.BigEndian.Uint32(o.data[o.classIDOffset+4 : o.classIDOffset+8])
	return ClassIdentifier{
		OUI:              w0 & 0x00FFFFFF,
		InformationClass: uint16(w1 >> 16),
		PacketClass:      uint16(w1 & 0xFFFF),
	}, true
}

// IntegerTimestamp returns the TSI field, if present.
func (o Overlay) IntegerTimestamp() (uint32, bool) {
	if !o.hasIntTS {
		return 0, false
	}
	return binary.BigEndian.Uint32(o.data[o.intTSOffset : o.intTSOffset+4]), true
}

// FractionalTimestamp returns the full 64-bit TSF field, if present.
func (o Overlay) FractionalTimestamp() (uint64, bool) {
	if !o.hasFracTS {
		return 0, false
	}
	return binary.BigEndian.Uint64(o.data[o.fracTSOffset : o.fracTSOffset+8]), true
}

// PayloadBytes returns the size of the payload in bytes, or 0 if this
// packet carries no payload (a non-data packet).
func (o Overlay) PayloadBytes() int {
	if !o.hasPayload {
		return 0
	}
	size := int(o.header.PacketSize)*4 - o.payloadOffset
	if o.hasTrailer {
		size -= 4
	}
	if size < 0 {
		return 0
	}
	return size
}

// Payload returns the payload reinterpreted as a slice of T. The slice
// aliases the overlay's backing array; the caller must not retain it past
// the lifetime of the original byte span.
func Payload[T any](o Overlay) []T {
	if !o.hasPayload {
		return nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil
	}
	n := o.PayloadBytes() / elemSize
	if n <= 0 {
		return nil
	}
	end := o.payloadOffset + n*elemSize
	if end > len(o.data) {
		n = (len(o.data) - o.payloadOffset) / elemSize
		if n <= 0 {
			return nil
		}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&o.data[o.payloadOffset])), n)
}

func (o Overlay) String() string {
	streamID, _ := o.StreamID()
	return fmt.Sprintf("VITA{type=%d stream=0x%08X tsi=%d tsf=%d class=%v trailer=%v payload=%dB}",
		o.header.PacketType, streamID, o.header.TSI, o.header.TSF, o.hasClassID, o.hasTrailer, o.PayloadBytes())
}
