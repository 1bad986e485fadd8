package hxformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Errors.
var (
	ErrTruncated   = errors.New("premature end of file")
	ErrMalformed   = errors.New("malformed record")
	ErrUnknownTag  = errors.New("unknown record tag")
	ErrVideoTiming = errors.New("video timing record not supported")
)

// UnknownTagError is returned when an unrecognized tag is rejected.
type UnknownTagError struct {
	Tag    Tag
	Offset int64
}

func (e UnknownTagError) Error() string {
	return fmt.Sprintf("%v: %v at offset %d", ErrUnknownTag, e.Tag, e.Offset)
}

// Unwrap makes errors.Is(err, ErrUnknownTag) work.
func (e UnknownTagError) Unwrap() error {
	return ErrUnknownTag
}

// Reader decodes records from a seekable source.
// The caller must consume the payload of every VideoFrame and
// AudioFrame with ReadPayload or SkipPayload before calling Next again.
type Reader struct {
	in   io.ReadSeeker
	size int64
	pos  int64

	buf [16]byte
}

// NewReader creates a new reader positioned at the start of the source.
func NewReader(in io.ReadSeeker) (*Reader, error) {
	size, err := in.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek end: %w", err)
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek start: %w", err)
	}
	return &Reader{in: in, size: size}, nil
}

// Size returns the total size of the source.
func (r *Reader) Size() int64 {
	return r.size
}

// Offset returns the current read position.
func (r *Reader) Offset() int64 {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int64 {
	return r.size - r.pos
}

// Rewind returns to the start of the source.
func (r *Reader) Rewind() error {
	if _, err := r.in.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	r.pos = 0
	return nil
}

// Next reads the next record header. It returns io.EOF if the
// source ends cleanly on a record boundary and ErrTruncated
// if it ends inside a record.
func (r *Reader) Next() (Record, error) {
	start := r.pos
	n, err := io.ReadFull(r.in, r.buf[:4])
	r.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, r.readErr(err)
	}
	tag := Tag(binary.LittleEndian.Uint32(r.buf[:4]))

	switch tag {
	case TagVideoSize:
		body, err := r.readBody(videoSizeBodySize)
		if err != nil {
			return nil, fmt.Errorf("video size: %w", err)
		}
		return VideoSize{
			Width:  binary.LittleEndian.Uint32(body[0:4]),
			Height: binary.LittleEndian.Uint32(body[4:8]),
		}, nil

	case TagVideoTiming:
		body, err := r.readBody(videoSizeBodySize)
		if err != nil {
			return nil, fmt.Errorf("video timing: %w", err)
		}
		return VideoTiming{
			Width:  binary.LittleEndian.Uint32(body[0:4]),
			Height: binary.LittleEndian.Uint32(body[4:8]),
		}, nil

	case TagVideoFrame:
		body, err := r.readBody(videoFrameBodySize)
		if err != nil {
			return nil, fmt.Errorf("video frame: %w", err)
		}
		return VideoFrame{
			Length:    binary.LittleEndian.Uint32(body[0:4]),
			Timestamp: binary.LittleEndian.Uint32(body[4:8]),
		}, nil

	case TagAudioFrame:
		body, err := r.readBody(audioFrameBodySize)
		if err != nil {
			return nil, fmt.Errorf("audio frame: %w", err)
		}
		f := AudioFrame{
			Length:    binary.LittleEndian.Uint32(body[0:4]),
			Timestamp: binary.LittleEndian.Uint32(body[4:8]),
		}
		if f.Length < AudioSubHeaderSize {
			return nil, fmt.Errorf("audio frame at offset %d: length %d: %w",
				start, f.Length, ErrMalformed)
		}
		return f, nil

	case TagEndOfStream:
		// Some cameras stop writing right after the tag.
		n, _ := io.ReadFull(r.in, r.buf[:endOfStreamBodySize])
		r.pos += int64(n)
		if n < 4 {
			return EndOfStream{}, nil
		}
		return EndOfStream{Length: binary.LittleEndian.Uint32(r.buf[0:4])}, nil
	}

	return Unknown{Raw: tag, Offset: start}, nil
}

func (r *Reader) readBody(size int) ([]byte, error) {
	n, err := io.ReadFull(r.in, r.buf[:size])
	r.pos += int64(n)
	if err != nil {
		return nil, r.readErr(err)
	}
	return r.buf[:size], nil
}

// ReadPayload fills p from the source.
func (r *Reader) ReadPayload(p []byte) error {
	n, err := io.ReadFull(r.in, p)
	r.pos += int64(n)
	if err != nil {
		return fmt.Errorf("read payload: %w", r.readErr(err))
	}
	return nil
}

// SkipPayload advances past n payload bytes.
// Seeking past the end of the source is reported as ErrTruncated.
func (r *Reader) SkipPayload(n int64) error {
	if n < 0 {
		return fmt.Errorf("skip %d bytes: %w", n, ErrMalformed)
	}
	if r.pos+n > r.size {
		return fmt.Errorf("skip %d bytes at offset %d: %w", n, r.pos, ErrTruncated)
	}
	if _, err := r.in.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip: %w", err)
	}
	r.pos += n
	return nil
}

func (r *Reader) readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
