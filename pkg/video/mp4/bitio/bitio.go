package bitio

import (
	"encoding/binary"
	"io"
)

// WriterAndByteWriter io.Writer and io.ByteWriter at the same time.
type WriterAndByteWriter interface {
	io.Writer
	io.ByteWriter
}

// Writer is a big endian writer that keeps
// track of the number of bytes written.
type Writer struct {
	out WriterAndByteWriter
	n   int64
	buf [8]byte

	// TryError holds the first error occurred in TryXXX() methods.
	TryError error
}

// NewWriter returns a new Writer using the specified io.Writer as the output.
func NewWriter(out WriterAndByteWriter) *Writer {
	return &Writer{out: out}
}

// Count returns the number of bytes written.
func (w *Writer) Count() int64 {
	return w.n
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.out.Write(p)
	w.n += int64(n)
	return n, err
}

// WriteByte implements io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	if err := w.out.WriteByte(b); err != nil {
		return err
	}
	w.n++
	return nil
}

// TryWrite tries to write len(p) bytes.
func (w *Writer) TryWrite(p []byte) {
	if w.TryError == nil {
		_, w.TryError = w.Write(p)
	}
}

// TryWriteByte tries to write 1 byte.
func (w *Writer) TryWriteByte(b byte) {
	if w.TryError == nil {
		w.TryError = w.WriteByte(b)
	}
}

// TryWriteUint16 tries to write 16 bits.
func (w *Writer) TryWriteUint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	w.TryWrite(w.buf[:2])
}

// TryWriteUint32 tries to write 32 bits.
func (w *Writer) TryWriteUint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	w.TryWrite(w.buf[:4])
}

// TryWriteUint64 tries to write 64 bits.
func (w *Writer) TryWriteUint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	w.TryWrite(w.buf[:8])
}

// ByteWriter is a helper for io.Writers without io.ByteWriter.
type ByteWriter struct {
	out io.Writer
	b   [1]byte
}

// NewByteWriter returns a new ByteWriter using the specified io.Writer as the output.
func NewByteWriter(out io.Writer) *ByteWriter {
	return &ByteWriter{out: out}
}

// Write implements io.Writer.
func (w *ByteWriter) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

// WriteByte implements io.ByteWriter.
func (w *ByteWriter) WriteByte(b byte) error {
	w.b[0] = b
	_, err := w.out.Write(w.b[:])
	return err
}
