package hxformat

import (
	"fmt"
)

// Tag identifies the record type.
type Tag uint32

// Known tags.
const (
	TagVideoSize   Tag = 0x53565848 // "HXVS"
	TagVideoTiming Tag = 0x54565848 // "HXVT"
	TagVideoFrame  Tag = 0x46565848 // "HXVF"
	TagAudioFrame  Tag = 0x46415848 // "HXAF"
	TagEndOfStream Tag = 0x49465848 // "HXFI"
)

// Body sizes.
const (
	videoSizeBodySize   = 12
	videoFrameBodySize  = 12
	audioFrameBodySize  = 16
	endOfStreamBodySize = 16
)

// AudioSubHeaderSize is the part of an audio frame's declared
// length that is stored in the record body instead of the payload.
const AudioSubHeaderSize = 4

// String returns the four character code if printable.
func (t Tag) String() string {
	b := [4]byte{byte(t), byte(t >> 8), byte(t >> 16), byte(t >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(t))
		}
	}
	return string(b[:])
}

// Record is one of VideoSize, VideoTiming, VideoFrame,
// AudioFrame, EndOfStream or Unknown.
type Record interface {
	Tag() Tag
	record()
}

// VideoSize reports the frame dimensions.
type VideoSize struct {
	Width  uint32
	Height uint32
}

// VideoTiming has the same layout as VideoSize, the meaning is unknown.
type VideoTiming struct {
	Width  uint32
	Height uint32
}

// VideoFrame is followed by Length bytes of video payload.
type VideoFrame struct {
	Length    uint32
	Timestamp uint32
}

// AudioFrame is followed by Length-4 bytes of audio payload.
type AudioFrame struct {
	Length    uint32
	Timestamp uint32
}

// PayloadLength returns the number of payload bytes following the record body.
func (f AudioFrame) PayloadLength() int64 {
	return int64(f.Length) - AudioSubHeaderSize
}

// EndOfStream terminates the recording.
type EndOfStream struct {
	Length uint32
}

// Unknown is returned for unrecognized tags. Nothing
// after the tag has been consumed.
type Unknown struct {
	Raw    Tag
	Offset int64 // Position of the tag in the file.
}

// Tag implements Record.
func (VideoSize) Tag() Tag { return TagVideoSize }

// Tag implements Record.
func (VideoTiming) Tag() Tag { return TagVideoTiming }

// Tag implements Record.
func (VideoFrame) Tag() Tag { return TagVideoFrame }

// Tag implements Record.
func (AudioFrame) Tag() Tag { return TagAudioFrame }

// Tag implements Record.
func (EndOfStream) Tag() Tag { return TagEndOfStream }

// Tag implements Record.
func (u Unknown) Tag() Tag { return u.Raw }

func (VideoSize) record()   {}
func (VideoTiming) record() {}
func (VideoFrame) record()  {}
func (AudioFrame) record()  {}
func (EndOfStream) record() {}
func (Unknown) record()     {}
