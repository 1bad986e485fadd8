// Package sink defines the boundary between the demuxer and the
// multiplexers that write standard container files.
package sink

import (
	"errors"

	"ipcamconv/pkg/video/probe"
)

// Errors wrapped by sink implementations.
var (
	ErrConfigure = errors.New("could not configure output")
	ErrDelivery  = errors.New("could not write packet")
	ErrFinalize  = errors.New("could not finalize output")
)

// Codecs.
const (
	CodecH264 = "h264"
	CodecALaw = "alaw"
)

// VideoConfig describes the video stream.
type VideoConfig struct {
	Codec      string
	Width      uint32
	Height     uint32
	FrameRate  int // Frames per second.
	FrameCount int // Estimate, the number of accepted rate samples.
}

// AudioConfig describes the audio stream.
type AudioConfig struct {
	Codec      string
	Channels   int
	SampleSize int // Bits.
	SampleRate int // Hz.
}

// Config is passed to Configure once before any delivery.
type Config struct {
	Video VideoConfig
	Audio *AudioConfig // Nil if there is no audio stream.
}

// NewConfig returns the stream configuration for probed characteristics.
// The audio stream is omitted if skipAudio is set or no audio was detected.
func NewConfig(c probe.Characteristics, skipAudio bool) Config {
	config := Config{
		Video: VideoConfig{
			Codec:      CodecH264,
			Width:      c.Width,
			Height:     c.Height,
			FrameRate:  c.FrameRate(),
			FrameCount: c.VideoSamples,
		},
	}
	if !skipAudio && c.HasAudio() {
		config.Audio = &AudioConfig{
			Codec:      CodecALaw,
			Channels:   1,
			SampleSize: 16,
			SampleRate: c.AudioClockRate(),
		}
	}
	return config
}

// Handles are returned by Configure.
type Handles struct {
	// Units per second of the presentation timestamps
	// passed to DeliverVideo and DeliverAudio.
	VideoTimescale uint32
	AudioTimescale uint32

	// False if no audio stream was created. Audio must not be delivered.
	HasAudio bool
}

// Sink receives normalized packets. Delivered slices are only valid
// for the duration of the call and must be copied if retained.
// Timestamps are expected to be non-decreasing per stream.
type Sink interface {
	Configure(Config) (Handles, error)
	DeliverVideo(accessUnit []byte, pts int64) error
	DeliverAudio(samples []byte, pts int64) error
	Finalize() error
}
