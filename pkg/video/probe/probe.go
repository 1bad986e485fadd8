// Package probe estimates stream characteristics in a first pass over a recording.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/hxformat"
)

// ErrNoVideo no advancing video timestamps were found.
var ErrNoVideo = errors.New("no video detected")

// Characteristics of the streams in a recording. Immutable after Run.
type Characteristics struct {
	Width  uint32
	Height uint32

	// Mean of 1000/elapsed_ms over advancing video records.
	VideoFrameRate float64

	// Mean of payload_bytes/elapsed_ms over advancing audio records.
	AudioSampleRate float64

	VideoEpoch uint32
	AudioEpoch uint32

	// Number of samples accepted into each average.
	VideoSamples int
	AudioSamples int

	// Number of frame records seen.
	VideoFrames int
	AudioFrames int
}

// FrameRate returns the nominal frames per second.
func (c Characteristics) FrameRate() int {
	return int(math.Round(c.VideoFrameRate))
}

// AudioClockRate returns the audio sample rate in Hz. A-law is one byte
// per sample so the byte rate per millisecond times 1000 is samples/s.
func (c Characteristics) AudioClockRate() int {
	return int(math.Round(c.AudioSampleRate * 1000))
}

// HasAudio reports if an audio stream was detected.
func (c Characteristics) HasAudio() bool {
	return c.AudioClockRate() > 0
}

// Options for Run.
type Options struct {
	Policy hxformat.Policy
	Logger *log.Logger
	File   string // Used in log messages.
}

// Run consumes records until EndOfStream and returns the characteristics.
// Payloads are skipped, not read. The reader is left after EndOfStream.
func Run(ctx context.Context, r *hxformat.Reader, opts Options) (*Characteristics, error) {
	var (
		c      Characteristics
		video  timeline
		audio  timeline
		vAvg   RunningAverage
		aAvg   RunningAverage
		logger = opts.Logger
	)

loop:
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing end of stream record: %w", hxformat.ErrTruncated)
		}
		if err != nil {
			return nil, err
		}

		switch v := rec.(type) {
		case hxformat.VideoSize:
			c.Width, c.Height = v.Width, v.Height

		case hxformat.VideoTiming:
			if err := opts.Policy.Check(rec); err != nil {
				return nil, err
			}
			logger.Debug().Src("probe").File(opts.File).Msg("ignoring video timing record")

		case hxformat.VideoFrame:
			c.VideoFrames++
			if elapsed := video.advance(v.Timestamp); elapsed > 0 {
				vAvg.Add(1000 / float64(elapsed))
			}
			if err := r.SkipPayload(int64(v.Length)); err != nil {
				return nil, fmt.Errorf("video frame: %w", err)
			}

		case hxformat.AudioFrame:
			c.AudioFrames++
			size := v.PayloadLength()
			if elapsed := audio.advance(v.Timestamp); elapsed > 0 {
				aAvg.Add(float64(size) / float64(elapsed))
			}
			if err := r.SkipPayload(size); err != nil {
				return nil, fmt.Errorf("audio frame: %w", err)
			}

		case hxformat.EndOfStream:
			break loop

		case hxformat.Unknown:
			if err := opts.Policy.Check(rec); err != nil {
				return nil, err
			}
			logger.Warn().Src("probe").File(opts.File).
				Msgf("unknown tag %v at offset %d", v.Raw, v.Offset)
		}
	}

	c.VideoEpoch, c.AudioEpoch = video.epoch, audio.epoch
	c.VideoFrameRate, c.VideoSamples = vAvg.Value, vAvg.Count
	c.AudioSampleRate, c.AudioSamples = aAvg.Value, aAvg.Count

	if c.VideoFrameRate <= 0 {
		return nil, ErrNoVideo
	}
	return &c, nil
}
