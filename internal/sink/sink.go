// Package sink implements the terminal components that persist pipeline
// output to disk: a raw VITA-49 payload writer and a generic aligned
// buffer writer.
package sink

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/geontech/composite-dsp/internal/align"
	"github.com/geontech/composite-dsp/internal/component"
	"github.com/geontech/composite-dsp/internal/vita"
)

// FileWriter extracts VITA-49 data-packet payloads from each batch it
// receives and appends them to a file, stopping once num_bytes have been
// written.
type FileWriter struct {
	filename string
	numBytes uint64

	file    *os.File
	written uint64
}

// NewFileWriter constructs a FileWriter that will stop once numBytes
// bytes have been written to filename.
func NewFileWriter(filename string, numBytes uint64) *FileWriter {
	return &FileWriter{filename: filename, numBytes: numBytes}
}

// Initialize creates (truncating) the output file.
func (w *FileWriter) Initialize() error {
	f, err := os.OpenFile(w.filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", w.filename, err)
	}
	w.file = f
	return nil
}

// Start is a no-op; the file is already open after Initialize.
func (w *FileWriter) Start() error { return nil }

// Stop closes the output file.
func (w *FileWriter) Stop() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// Process writes the data-packet payloads found in batch, trimming the
// final chunk so the file never exceeds num_bytes. It returns Finish once
// the cap is reached.
func (w *FileWriter) Process(batch [][]byte) (component.Retval, error) {
	if len(batch) == 0 {
		return component.Noop, nil
	}
	curr := w.written
	for _, raw := range batch {
		o, err := vita.Parse(raw)
		if err != nil {
			continue
		}
		if !o.Header().IsData() {
			continue
		}
		payload := vita.Payload[byte](o)
		chunk := payload
		if curr+uint64(len(chunk)) >= w.numBytes {
			overflow := curr + uint64(len(chunk)) - w.numBytes
			chunk = chunk[:uint64(len(chunk))-overflow]
		}
		n, err := w.file.Write(chunk)
		if err != nil {
			return component.Normal, err
		}
		w.written += uint64(n)
		curr += uint64(n)
		if w.written >= w.numBytes {
			return component.Finish, nil
		}
	}
	return component.Normal, nil
}

// AlignedMemWriter writes raw aligned buffer contents to a file, stopping
// once num_bytes have been written.
type AlignedMemWriter[T align.Numeric] struct {
	filename string
	numBytes uint64

	file    *os.File
	written uint64
}

// NewAlignedMemWriter constructs an AlignedMemWriter.
func NewAlignedMemWriter[T align.Numeric](filename string, numBytes uint64) *AlignedMemWriter[T] {
	return &AlignedMemWriter[T]{filename: filename, numBytes: numBytes}
}

// Initialize creates (truncating) the output file.
func (w *AlignedMemWriter[T]) Initialize() error {
	f, err := os.OpenFile(w.filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: open %s: %w", w.filename, err)
	}
	w.file = f
	return nil
}

// Start is a no-op.
func (w *AlignedMemWriter[T]) Start() error { return nil }

// Stop closes the output file.
func (w *AlignedMemWriter[T]) Stop() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// Process writes buf's raw bytes, trimming to num_bytes, and returns
// Finish once the cap is reached.
func (w *AlignedMemWriter[T]) Process(buf *align.Buf[T]) (component.Retval, error) {
	if buf == nil || buf.Len() == 0 {
		return component.Noop, nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&buf.Data()[0])), buf.Len()*elemSize)

	writeLen := uint64(len(raw))
	if w.written+writeLen >= w.numBytes {
		writeLen -= w.written + writeLen - w.numBytes
	}
	n, err := w.file.Write(raw[:writeLen])
	if err != nil {
		return component.Normal, err
	}
	w.written += uint64(n)
	if w.written >= w.numBytes {
		return component.Finish, nil
	}
	return component.Normal, nil
}
