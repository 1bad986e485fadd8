package h264

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxNALUSize is the maximum size of a NALU.
// with a 250 Mbps H264 video, the maximum NALU size is 2.2MB.
const MaxNALUSize = 3 * 1024 * 1024

// Annex-B errors.
var (
	ErrAnnexBNoStartCode = errors.New("missing start code")
	ErrAnnexBEmpty       = errors.New("no NALUs")
)

// NALUSizeTooBigError .
type NALUSizeTooBigError struct {
	NALUSize int
}

func (e NALUSizeTooBigError) Error() string {
	return fmt.Sprintf("NALU size (%d) is too big (maximum is %d)", e.NALUSize, MaxNALUSize)
}

// AnnexBUnmarshal splits an Annex-B stream into NALUs.
// Both 3 and 4 byte start codes are accepted. The returned
// slices point into buf.
func AnnexBUnmarshal(buf []byte) ([][]byte, error) {
	start, size := findStartCode(buf, 0)
	if start != 0 {
		return nil, ErrAnnexBNoStartCode
	}

	var ret [][]byte
	pos := size
	for {
		next, nextSize := findStartCode(buf, pos)
		end := next
		if next == -1 {
			end = len(buf)
		}

		if nalu := buf[pos:end]; len(nalu) != 0 {
			if len(nalu) > MaxNALUSize {
				return nil, NALUSizeTooBigError{NALUSize: len(nalu)}
			}
			ret = append(ret, nalu)
		}

		if next == -1 {
			break
		}
		pos = next + nextSize
	}

	if len(ret) == 0 {
		return nil, ErrAnnexBEmpty
	}
	return ret, nil
}

// findStartCode returns the position and size of the next start code.
func findStartCode(buf []byte, from int) (int, int) {
	zeros := 0
	for i := from; i < len(buf); i++ {
		switch {
		case buf[i] == 0:
			zeros++
		case buf[i] == 1 && zeros >= 2:
			if zeros >= 3 {
				return i - 3, 4
			}
			return i - 2, 3
		default:
			zeros = 0
		}
	}
	return -1, 0
}

// AnnexBEncode encodes NALUs into the Annex-B stream format.
func AnnexBEncode(nalus [][]byte) []byte {
	n := 0
	for _, nalu := range nalus {
		n += 4 + len(nalu)
	}

	buf := make([]byte, n)
	pos := 0
	for _, nalu := range nalus {
		pos += copy(buf[pos:], []byte{0x00, 0x00, 0x00, 0x01})
		pos += copy(buf[pos:], nalu)
	}
	return buf
}

// AVCCMarshalSize returns the size of the AVCC encoding of nalus.
func AVCCMarshalSize(nalus [][]byte) int {
	n := 0
	for _, nalu := range nalus {
		n += 4 + len(nalu)
	}
	return n
}

// AVCCMarshalTo encodes NALUs into the AVCC stream format,
// each NALU prefixed by its 4 byte big endian length.
func AVCCMarshalTo(buf []byte, nalus [][]byte) int {
	pos := 0
	for _, nalu := range nalus {
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(nalu)))
		pos += 4
		pos += copy(buf[pos:], nalu)
	}
	return pos
}

// AntiCompetitionRemove removes emulation prevention bytes.
func AntiCompetitionRemove(nalu []byte) []byte {
	// 0x00 0x00 0x03 becomes 0x00 0x00.
	ret := make([]byte, 0, len(nalu))
	zeros := 0
	for _, b := range nalu {
		if zeros >= 2 && b == 3 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		ret = append(ret, b)
	}
	return ret
}
