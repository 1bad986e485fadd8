// Package demux extracts the elementary streams from a recording
// and delivers them to a sink.
package demux

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/hxformat"
	"ipcamconv/pkg/video/probe"
	"ipcamconv/pkg/video/sink"
)

// Options for Run and Extract.
type Options struct {
	Policy    hxformat.Policy
	SkipAudio bool
	Logger    *log.Logger
	File      string // Used in log messages.
}

// Stats of a completed extraction.
type Stats struct {
	VideoPackets int
	AudioPackets int

	// Parameter set bytes still buffered at the end of the stream.
	DroppedBytes int
}

// Result of Run.
type Result struct {
	Characteristics probe.Characteristics
	Config          sink.Config
	Stats           Stats
}

// Run reads the source twice. The first pass estimates the stream
// characteristics, the sink is configured, and the second pass delivers
// the packets. The sink is not finalized.
func Run(ctx context.Context, src io.ReadSeeker, s sink.Sink, opts Options) (*Result, error) {
	r, err := hxformat.NewReader(src)
	if err != nil {
		return nil, err
	}

	c, err := probe.Run(ctx, r, probe.Options{
		Policy: opts.Policy,
		Logger: opts.Logger,
		File:   opts.File,
	})
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	logCharacteristics(opts, *c)

	config := sink.NewConfig(*c, opts.SkipAudio)
	handles, err := s.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}

	if err := r.Rewind(); err != nil {
		return nil, err
	}

	stats, err := Extract(ctx, r, *c, s, handles, opts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Characteristics: *c,
		Config:          config,
		Stats:           *stats,
	}, nil
}

func logCharacteristics(opts Options, c probe.Characteristics) {
	l := opts.Logger
	l.Info().Src("probe").File(opts.File).Msgf("video size %dx%d", c.Width, c.Height)
	l.Info().Src("probe").File(opts.File).
		Msgf("detected frame rate %d fps (%.3f)", c.FrameRate(), c.VideoFrameRate)

	switch {
	case opts.SkipAudio:
		l.Info().Src("probe").File(opts.File).Msg("audio processing is disabled")
	case !c.HasAudio():
		l.Warn().Src("probe").File(opts.File).Msg("no audio detected")
	default:
		l.Info().Src("probe").File(opts.File).
			Msgf("detected audio clock rate %d Hz", c.AudioClockRate())
	}
}

// Extract is the second pass. The reader must be at the start of the
// source and the sink configured with handles.
func Extract( //nolint:funlen
	ctx context.Context,
	r *hxformat.Reader,
	c probe.Characteristics,
	s sink.Sink,
	handles sink.Handles,
	opts Options,
) (*Stats, error) {
	var (
		stats   Stats
		agg     Aggregator
		scratch Buffer
		logger  = opts.Logger
	)

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

		case hxformat.VideoTiming:
			if err := opts.Policy.Check(rec); err != nil {
				return nil, err
			}

		case hxformat.VideoFrame:
			if int64(v.Length) > r.Remaining() {
				return nil, fmt.Errorf("video frame: %w", hxformat.ErrTruncated)
			}
			payload := agg.Reserve(int(v.Length))
			if err := r.ReadPayload(payload); err != nil {
				return nil, fmt.Errorf("video frame: %w", err)
			}
			au, flush := agg.Commit(payload)
			if !flush {
				continue
			}
			pts := probe.Rescale(probe.Normalize(v.Timestamp, c.VideoEpoch), handles.VideoTimescale)
			if err := s.DeliverVideo(au, pts); err != nil {
				return nil, fmt.Errorf("deliver video: %w", err)
			}
			stats.VideoPackets++

		case hxformat.AudioFrame:
			size := v.PayloadLength()
			if !handles.HasAudio {
				if err := r.SkipPayload(size); err != nil {
					return nil, fmt.Errorf("audio frame: %w", err)
				}
				continue
			}
			if size > r.Remaining() {
				return nil, fmt.Errorf("audio frame: %w", hxformat.ErrTruncated)
			}
			scratch.Reset()
			samples := scratch.Extend(int(size))
			if err := r.ReadPayload(samples); err != nil {
				return nil, fmt.Errorf("audio frame: %w", err)
			}
			pts := probe.Rescale(probe.Normalize(v.Timestamp, c.AudioEpoch), handles.AudioTimescale)
			if err := s.DeliverAudio(samples, pts); err != nil {
				return nil, fmt.Errorf("deliver audio: %w", err)
			}
			stats.AudioPackets++

		case hxformat.EndOfStream:
			if n := agg.Drop(); n != 0 {
				stats.DroppedBytes = n
				logger.Warn().Src("demux").File(opts.File).
					Msgf("dropped %d bytes of parameter sets at end of stream", n)
			}
			return &stats, nil

		case hxformat.Unknown:
			if err := opts.Policy.Check(rec); err != nil {
				return nil, err
			}
			logger.Warn().Src("demux").File(opts.File).
				Msgf("unknown tag %v at offset %d", v.Raw, v.Offset)
		}
	}
}
