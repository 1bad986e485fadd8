// Package writerseeker provides an in-memory io.WriteSeeker.
package writerseeker

import (
	"bytes"
	"errors"
	"io"
)

// WriterSeeker is an in-memory io.WriteSeeker implementation.
// Used as output for the muxers when the result is kept in memory.
type WriterSeeker struct {
	buf []byte
	pos int
}

// Write writes p at the current offset. Writing past the
// end of the buffer fills the gap with null bytes.
func (ws *WriterSeeker) Write(p []byte) (int, error) {
	end := ws.pos + len(p)
	if end > len(ws.buf) {
		if end > cap(ws.buf) {
			size := 2 * cap(ws.buf)
			if size < end {
				size = end
			}
			grown := make([]byte, len(ws.buf), size)
			copy(grown, ws.buf)
			ws.buf = grown
		}
		ws.buf = ws.buf[:end]
	}
	n := copy(ws.buf[ws.pos:], p)
	ws.pos += n
	return n, nil
}

// Seek errors.
var (
	ErrNegativeResultPos = errors.New("negative result pos")
	ErrInvalidWhence     = errors.New("invalid whence")
)

// Seek sets the offset for the next Write.
func (ws *WriterSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(ws.pos) + offset
	case io.SeekEnd:
		newPos = int64(len(ws.buf)) + offset
	default:
		return 0, ErrInvalidWhence
	}
	if newPos < 0 {
		return 0, ErrNegativeResultPos
	}
	ws.pos = int(newPos)
	return newPos, nil
}

// Close is a no-op.
func (ws *WriterSeeker) Close() error {
	return nil
}

// BytesReader returns a *bytes.Reader over the written content.
func (ws *WriterSeeker) BytesReader() *bytes.Reader {
	return bytes.NewReader(ws.buf)
}

// Bytes returns the underlying byte slice.
func (ws *WriterSeeker) Bytes() []byte {
	return ws.buf
}

// Len returns the size of the written content.
func (ws *WriterSeeker) Len() int {
	return len(ws.buf)
}
