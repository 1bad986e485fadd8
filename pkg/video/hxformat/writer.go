package hxformat

import (
	"encoding/binary"
	"io"
)

// Writer encodes records. Used to produce test recordings.
// Errors are sticky, after the first failed write all
// further writes are no-ops and Err returns the error.
type Writer struct {
	out io.Writer
	buf [20]byte
	err error
}

// NewWriter creates a new writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Err returns the first write error.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) header(tag Tag, bodySize int, a, b uint32) []byte {
	for i := range w.buf {
		w.buf[i] = 0
	}
	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(w.buf[4:8], a)
	binary.LittleEndian.PutUint32(w.buf[8:12], b)
	return w.buf[:4+bodySize]
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.out.Write(p)
}

// WriteVideoSize writes a video size record.
func (w *Writer) WriteVideoSize(width, height uint32) {
	w.write(w.header(TagVideoSize, videoSizeBodySize, width, height))
}

// WriteVideoTiming writes a video timing record.
func (w *Writer) WriteVideoTiming(a, b uint32) {
	w.write(w.header(TagVideoTiming, videoSizeBodySize, a, b))
}

// WriteVideoFrame writes a video frame record followed by the payload.
func (w *Writer) WriteVideoFrame(timestamp uint32, payload []byte) {
	w.write(w.header(TagVideoFrame, videoFrameBodySize, uint32(len(payload)), timestamp))
	w.write(payload)
}

// WriteAudioFrame writes an audio frame record followed by the payload.
func (w *Writer) WriteAudioFrame(timestamp uint32, payload []byte) {
	length := uint32(len(payload)) + AudioSubHeaderSize
	w.write(w.header(TagAudioFrame, audioFrameBodySize, length, timestamp))
	w.write(payload)
}

// WriteEndOfStream writes the end of stream record.
func (w *Writer) WriteEndOfStream() {
	w.write(w.header(TagEndOfStream, endOfStreamBodySize, 0, 0))
}

// WriteTag writes a bare tag without a body.
func (w *Writer) WriteTag(tag Tag) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(tag))
	w.write(b[:])
}
