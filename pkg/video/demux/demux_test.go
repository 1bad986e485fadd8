package demux

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/hxformat"
	"ipcamconv/pkg/video/probe"
	"ipcamconv/pkg/video/sink"
	"ipcamconv/pkg/video/sink/sinktest"

	"github.com/stretchr/testify/require"
)

func newSource(write func(w *hxformat.Writer)) *bytes.Reader {
	var buf bytes.Buffer
	write(hxformat.NewWriter(&buf))
	return bytes.NewReader(buf.Bytes())
}

func testOptions() Options {
	return Options{
		Policy: hxformat.DefaultPolicy(),
		Logger: log.NewMockLogger(),
	}
}

func probeResult() probe.Characteristics {
	return probe.Characteristics{VideoFrameRate: 25}
}

func TestRun(t *testing.T) {
	t.Run("parameterSetsAggregate", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoSize(640, 480)
			w.WriteVideoFrame(1000, sps)
			w.WriteVideoFrame(1000, pps)
			w.WriteVideoFrame(1040, idr)
			w.WriteVideoFrame(1080, nonIDR)
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()

		res, err := Run(context.Background(), src, rec, testOptions())
		require.NoError(t, err)

		expected := []sinktest.Packet{
			{Data: concat(sps, pps, idr), PTS: 40},
			{Data: nonIDR, PTS: 80},
		}
		require.Equal(t, expected, rec.Video)
		require.Equal(t, 2, res.Stats.VideoPackets)
		require.Equal(t, uint32(640), rec.Config.Video.Width)
		require.False(t, rec.Finalized)
	})
	t.Run("framesFlushAlone", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(500, idr)
			w.WriteVideoFrame(540, nonIDR)
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()

		_, err := Run(context.Background(), src, rec, testOptions())
		require.NoError(t, err)

		expected := []sinktest.Packet{
			{Data: idr, PTS: 0},
			{Data: nonIDR, PTS: 40},
		}
		require.Equal(t, expected, rec.Video)
	})
	t.Run("trailingParameterSetsDropped", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(0, idr)
			w.WriteVideoFrame(40, idr)
			w.WriteVideoFrame(80, sps)
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()

		res, err := Run(context.Background(), src, rec, testOptions())
		require.NoError(t, err)
		require.Len(t, rec.Video, 2)
		require.Equal(t, len(sps), res.Stats.DroppedBytes)
	})
	t.Run("audio", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(100, idr)
			w.WriteAudioFrame(110, bytes.Repeat([]byte{1}, 8))
			w.WriteVideoFrame(140, idr)
			w.WriteAudioFrame(111, bytes.Repeat([]byte{2}, 8))
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()
		rec.AudioTimescale = 8000

		res, err := Run(context.Background(), src, rec, testOptions())
		require.NoError(t, err)

		require.Equal(t, &sink.AudioConfig{
			Codec:      sink.CodecALaw,
			Channels:   1,
			SampleSize: 16,
			SampleRate: 8000,
		}, rec.Config.Audio)

		expected := []sinktest.Packet{
			{Data: bytes.Repeat([]byte{1}, 8), PTS: 0},
			{Data: bytes.Repeat([]byte{2}, 8), PTS: 8},
		}
		require.Equal(t, expected, rec.Audio)
		require.Equal(t, 2, res.Stats.AudioPackets)
	})
	t.Run("skipAudio", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(100, idr)
			w.WriteAudioFrame(110, []byte{1, 2})
			w.WriteVideoFrame(140, idr)
			w.WriteAudioFrame(111, []byte{1, 2})
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()
		opts := testOptions()
		opts.SkipAudio = true

		res, err := Run(context.Background(), src, rec, opts)
		require.NoError(t, err)
		require.Nil(t, rec.Config.Audio)
		require.Empty(t, rec.Audio)
		require.Len(t, rec.Video, 2)
		require.Equal(t, 0, res.Stats.AudioPackets)
	})
	t.Run("noVideo", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()

		_, err := Run(context.Background(), src, rec, testOptions())
		require.ErrorIs(t, err, probe.ErrNoVideo)
		require.Nil(t, rec.Config, "sink configured")
	})
	t.Run("configureError", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(0, idr)
			w.WriteVideoFrame(40, idr)
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()
		rec.ConfigureErr = errors.New("mock")

		_, err := Run(context.Background(), src, rec, testOptions())
		require.ErrorIs(t, err, sink.ErrConfigure)
	})
	t.Run("deliveryError", func(t *testing.T) {
		src := newSource(func(w *hxformat.Writer) {
			w.WriteVideoFrame(0, idr)
			w.WriteVideoFrame(40, idr)
			w.WriteEndOfStream()
		})
		rec := sinktest.NewRecorder()
		rec.DeliverErr = errors.New("mock")

		_, err := Run(context.Background(), src, rec, testOptions())
		require.ErrorIs(t, err, sink.ErrDelivery)
	})
}

func TestExtractErrors(t *testing.T) {
	cases := map[string]func(w *hxformat.Writer){
		"missingEndOfStream": func(w *hxformat.Writer) {
			w.WriteVideoFrame(0, idr)
		},
		"truncatedVideoPayload": func(w *hxformat.Writer) {
			w.WriteVideoFrame(0, idr)
			w.WriteTag(hxformat.TagVideoFrame)
			w.WriteTag(hxformat.Tag(100))
			w.WriteTag(0)
			w.WriteTag(0)
		},
	}
	for name, write := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := hxformat.NewReader(newSource(write))
			require.NoError(t, err)

			rec := sinktest.NewRecorder()
			handles, err := rec.Configure(sink.Config{})
			require.NoError(t, err)

			_, err = Extract(context.Background(), r, probeResult(), rec, handles, testOptions())
			require.ErrorIs(t, err, hxformat.ErrTruncated)
		})
	}
}

func TestExtractPolicies(t *testing.T) {
	write := func(w *hxformat.Writer) {
		w.WriteVideoTiming(0, 0)
		w.WriteVideoFrame(0, idr)
		w.WriteTag(hxformat.Tag(0xabcd))
		w.WriteVideoFrame(40, idr)
		w.WriteEndOfStream()
	}
	run := func(policy hxformat.Policy) (*sinktest.Recorder, error) {
		r, err := hxformat.NewReader(newSource(write))
		require.NoError(t, err)
		rec := sinktest.NewRecorder()
		handles, err := rec.Configure(sink.Config{})
		require.NoError(t, err)

		opts := testOptions()
		opts.Policy = policy
		_, err = Extract(context.Background(), r, probeResult(), rec, handles, opts)
		return rec, err
	}

	_, err := run(hxformat.DefaultPolicy())
	require.ErrorIs(t, err, hxformat.ErrUnknownTag)

	_, err = run(hxformat.Policy{
		UnknownTags: hxformat.UnknownTagsSkip,
		VideoTiming: hxformat.VideoTimingFail,
	})
	require.ErrorIs(t, err, hxformat.ErrVideoTiming)

	rec, err := run(hxformat.Policy{
		UnknownTags: hxformat.UnknownTagsSkip,
		VideoTiming: hxformat.VideoTimingIgnore,
	})
	require.NoError(t, err)
	require.Len(t, rec.Video, 2)
}
