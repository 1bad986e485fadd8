package mp4muxer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"ipcamconv/pkg/video/h264"
	"ipcamconv/pkg/video/mp4"
	"ipcamconv/pkg/video/sink"
	"ipcamconv/pkg/video/writerseeker"

	"github.com/stretchr/testify/require"
)

var (
	sps = []byte{
		0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
		0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
		0x00, 0x03, 0x00, 0x3d, 0x08,
	}
	pps    = []byte{0x68, 0xee, 0x3c, 0x80}
	idr    = []byte{0x65, 0x88, 0x84, 0x00}
	nonIDR = []byte{0x41, 0x9a, 0x21}
)

func annexB(nalus ...[]byte) []byte {
	return h264.AnnexBEncode(nalus)
}

func testConfig(audio bool) sink.Config {
	c := sink.Config{
		Video: sink.VideoConfig{
			Codec:     sink.CodecH264,
			Width:     640,
			Height:    480,
			FrameRate: 25,
		},
	}
	if audio {
		c.Audio = &sink.AudioConfig{
			Codec:      sink.CodecALaw,
			Channels:   1,
			SampleSize: 16,
			SampleRate: 8000,
		}
	}
	return c
}

type box struct {
	typ  string
	body []byte
}

func parseBoxes(t *testing.T, b []byte) []box {
	t.Helper()
	var ret []box
	for len(b) > 0 {
		require.GreaterOrEqual(t, len(b), 8)
		size := int(binary.BigEndian.Uint32(b))
		require.GreaterOrEqual(t, size, 8)
		require.LessOrEqual(t, size, len(b))
		ret = append(ret, box{typ: string(b[4:8]), body: b[8:size]})
		b = b[size:]
	}
	return ret
}

func findBoxes(t *testing.T, b []byte, typ string) [][]byte {
	t.Helper()
	var ret [][]byte
	for _, bx := range parseBoxes(t, b) {
		if bx.typ == typ {
			ret = append(ret, bx.body)
		}
	}
	return ret
}

// findPath returns the body of the first box matching the path.
func findPath(t *testing.T, b []byte, path ...string) []byte {
	t.Helper()
	for _, typ := range path {
		found := findBoxes(t, b, typ)
		require.NotEmpty(t, found, typ)
		b = found[0]
	}
	return b
}

// Fields of a full box with uint32 fields, the first is the entry count.
func tableEntries(b []byte) []uint32 {
	var ret []uint32
	for i := 4; i+4 <= len(b); i += 4 {
		ret = append(ret, binary.BigEndian.Uint32(b[i:]))
	}
	return ret
}

func TestMuxer(t *testing.T) {
	out := &writerseeker.WriterSeeker{}
	m := New(out)

	handles, err := m.Configure(testConfig(true))
	require.NoError(t, err)
	require.Equal(t, sink.Handles{
		VideoTimescale: 90000,
		AudioTimescale: 8000,
		HasAudio:       true,
	}, handles)

	audio1 := bytes.Repeat([]byte{0xd5}, 8)
	audio2 := bytes.Repeat([]byte{0x55}, 8)

	require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
	require.NoError(t, m.DeliverAudio(audio1, 0))
	require.NoError(t, m.DeliverVideo(annexB(nonIDR), 3600))
	require.NoError(t, m.DeliverVideo(annexB(idr), 7200))
	require.NoError(t, m.DeliverAudio(audio2, 8))
	require.NoError(t, m.Finalize())

	file := out.Bytes()
	top := parseBoxes(t, file)
	require.Len(t, top, 3)
	require.Equal(t, "ftyp", top[0].typ)
	require.Equal(t, "mdat", top[1].typ)
	require.Equal(t, "moov", top[2].typ)

	video1 := 4 + len(sps) + 4 + len(pps) + 4 + len(idr)
	video2 := 4 + len(nonIDR)
	video3 := 4 + len(idr)
	require.Len(t, top[1].body, video1+len(audio1)+video2+video3+len(audio2))

	// Samples are length prefixed.
	mdat := top[1].body
	require.Equal(t, uint32(len(sps)), binary.BigEndian.Uint32(mdat))
	require.Equal(t, sps, mdat[4:4+len(sps)])

	moov := top[2].body
	mvhd := findPath(t, moov, "mvhd")
	require.Equal(t, uint32(1000), binary.BigEndian.Uint32(mvhd[12:]))
	require.Equal(t, uint32(120), binary.BigEndian.Uint32(mvhd[16:]))

	traks := findBoxes(t, moov, "trak")
	require.Len(t, traks, 2)

	// Video.
	videoStbl := findPath(t, traks[0], "mdia", "minf", "stbl")
	require.Equal(t,
		[]uint32{1, 3, 3600},
		tableEntries(findPath(t, videoStbl, "stts")))
	require.Equal(t,
		[]uint32{2, 1, 3},
		tableEntries(findPath(t, videoStbl, "stss")))
	require.Equal(t,
		[]uint32{2, 1, 1, 1, 2, 2, 1},
		tableEntries(findPath(t, videoStbl, "stsc")))

	ftypSize := uint32(8 + len(top[0].body))
	mdatData := ftypSize + 8
	require.Equal(t,
		[]uint32{2, mdatData, mdatData + uint32(video1+len(audio1))},
		tableEntries(findPath(t, videoStbl, "stco")))

	stsz := findPath(t, videoStbl, "stsz")
	require.Equal(t,
		[]uint32{3, uint32(video1), uint32(video2), uint32(video3)},
		tableEntries(stsz[4:]))

	stsd := findPath(t, videoStbl, "stsd")
	avc1 := findPath(t, stsd[8:], "avc1")
	require.Equal(t, uint16(352), binary.BigEndian.Uint16(avc1[24:]))
	require.Equal(t, uint16(288), binary.BigEndian.Uint16(avc1[26:]))
	avcC := findPath(t, avc1[78:], "avcC")
	require.Equal(t, []byte{1, 0x64, 0x00, 0x0c, 0xff, 0xe1}, avcC[:6])

	mdhd := findPath(t, traks[0], "mdia", "mdhd")
	require.Equal(t, uint32(90000), binary.BigEndian.Uint32(mdhd[12:]))
	require.Equal(t, uint32(10800), binary.BigEndian.Uint32(mdhd[16:]))

	// Audio.
	audioStbl := findPath(t, traks[1], "mdia", "minf", "stbl")
	require.Equal(t,
		[]uint32{1, 2, 8},
		tableEntries(findPath(t, audioStbl, "stts")))
	require.Equal(t,
		[]uint32{1, 1, 1, 1},
		tableEntries(findPath(t, audioStbl, "stsc")))
	require.Empty(t, findBoxes(t, audioStbl, "stss"))

	stsd = findPath(t, audioStbl, "stsd")
	alaw := findPath(t, stsd[8:], "alaw")
	require.Equal(t, uint16(1), binary.BigEndian.Uint16(alaw[16:]))
	require.Equal(t, uint32(8000<<16), binary.BigEndian.Uint32(alaw[24:]))

	require.NotEmpty(t, findPath(t, traks[1], "mdia", "minf", "smhd"))
}

func TestMuxerVideoOnly(t *testing.T) {
	out := &writerseeker.WriterSeeker{}
	m := New(out)

	handles, err := m.Configure(testConfig(false))
	require.NoError(t, err)
	require.False(t, handles.HasAudio)

	require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
	// Backwards timestamp.
	require.NoError(t, m.DeliverVideo(annexB(nonIDR), -3600))
	require.NoError(t, m.Finalize())

	top := parseBoxes(t, out.Bytes())
	require.Len(t, top, 3)
	traks := findBoxes(t, top[2].body, "trak")
	require.Len(t, traks, 1)

	stts := findPath(t, traks[0], "mdia", "minf", "stbl", "stts")
	require.Equal(t, []uint32{2, 1, 0, 1, 3600}, tableEntries(stts))

	err = m.DeliverAudio([]byte{1}, 0)
	require.ErrorIs(t, err, sink.ErrDelivery)
}

func TestMuxerStartCodeOnly(t *testing.T) {
	out := &writerseeker.WriterSeeker{}
	m := New(out)

	_, err := m.Configure(testConfig(false))
	require.NoError(t, err)

	require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
	require.NoError(t, m.DeliverVideo([]byte{0, 0, 0, 1}, 3600))
	require.NoError(t, m.DeliverVideo(annexB(nonIDR), 7200))
	require.NoError(t, m.Finalize())

	top := parseBoxes(t, out.Bytes())
	traks := findBoxes(t, top[2].body, "trak")
	require.Len(t, traks, 1)

	stsz := findPath(t, traks[0], "mdia", "minf", "stbl", "stsz")
	entries := tableEntries(stsz)
	require.Equal(t, uint32(2), entries[1], "sample count")

	stts := findPath(t, traks[0], "mdia", "minf", "stbl", "stts")
	require.Equal(t, []uint32{2, 1, 7200, 1, 3600}, tableEntries(stts))
}

func TestMuxerOffset(t *testing.T) {
	out := &writerseeker.WriterSeeker{}
	_, err := out.Write([]byte("prefix"))
	require.NoError(t, err)

	m := New(out)
	_, err = m.Configure(testConfig(false))
	require.NoError(t, err)
	require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
	require.NoError(t, m.Finalize())

	top := parseBoxes(t, out.Bytes()[6:])
	stco := findPath(t, top[2].body, "trak", "mdia", "minf", "stbl", "stco")
	ftypSize := uint32(8 + len(top[0].body))
	require.Equal(t, []uint32{1, 6 + ftypSize + 8}, tableEntries(stco))
}

func TestMuxerConfigureErrors(t *testing.T) {
	cases := map[string]func(*sink.Config){
		"videoCodec": func(c *sink.Config) { c.Video.Codec = "h265" },
		"audioCodec": func(c *sink.Config) { c.Audio.Codec = "aac" },
		"zeroRate":   func(c *sink.Config) { c.Audio.SampleRate = 0 },
		"highRate":   func(c *sink.Config) { c.Audio.SampleRate = 70000 },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			c := testConfig(true)
			modify(&c)
			_, err := New(&writerseeker.WriterSeeker{}).Configure(c)
			require.ErrorIs(t, err, sink.ErrConfigure)
		})
	}

	t.Run("twice", func(t *testing.T) {
		m := New(&writerseeker.WriterSeeker{})
		_, err := m.Configure(testConfig(false))
		require.NoError(t, err)
		_, err = m.Configure(testConfig(false))
		require.ErrorIs(t, err, sink.ErrConfigure)
	})
}

func TestMuxerDeliveryErrors(t *testing.T) {
	t.Run("notConfigured", func(t *testing.T) {
		m := New(&writerseeker.WriterSeeker{})
		require.ErrorIs(t, m.DeliverVideo(annexB(idr), 0), sink.ErrDelivery)
		require.ErrorIs(t, m.Finalize(), sink.ErrFinalize)
	})
	t.Run("noStartCode", func(t *testing.T) {
		m := New(&writerseeker.WriterSeeker{})
		_, err := m.Configure(testConfig(false))
		require.NoError(t, err)
		require.ErrorIs(t, m.DeliverVideo(idr, 0), sink.ErrDelivery)
	})
	t.Run("afterFinalize", func(t *testing.T) {
		m := New(&writerseeker.WriterSeeker{})
		_, err := m.Configure(testConfig(false))
		require.NoError(t, err)
		require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
		require.NoError(t, m.Finalize())
		require.ErrorIs(t, m.DeliverVideo(annexB(idr), 0), sink.ErrDelivery)
		require.ErrorIs(t, m.Finalize(), sink.ErrFinalize)
	})
}

func TestMuxerNoParameterSets(t *testing.T) {
	m := New(&writerseeker.WriterSeeker{})
	_, err := m.Configure(testConfig(false))
	require.NoError(t, err)
	require.NoError(t, m.DeliverVideo(annexB(idr), 0))
	require.ErrorIs(t, m.Finalize(), sink.ErrFinalize)
}

type failingSeeker struct {
	writerseeker.WriterSeeker
	failAfter int
}

func (f *failingSeeker) Write(p []byte) (int, error) {
	if f.Len()+len(p) > f.failAfter {
		return 0, errors.New("mock")
	}
	return f.WriterSeeker.Write(p)
}

func TestMuxerWriteError(t *testing.T) {
	out := &failingSeeker{failAfter: 16}
	m := New(out)
	_, err := m.Configure(testConfig(false))
	require.NoError(t, err)

	require.NoError(t, m.DeliverVideo(annexB(sps, pps, idr), 0))
	err = m.Finalize()
	require.ErrorIs(t, err, sink.ErrFinalize)
}

func TestTrack(t *testing.T) {
	tr := &track{timescale: 1000}
	tr.addSample(0, 10, 100, true, true)
	tr.addSample(40, 10, 110, false, false)
	tr.addSample(80, 10, 200, false, true)
	tr.addSample(120, 10, 210, false, false)
	tr.flush(40)

	require.Equal(t, []mp4.SttsEntry{{SampleCount: 4, SampleDelta: 40}}, tr.stts)
	require.Equal(t, []uint32{100, 200}, tr.stco)
	require.Equal(t, []mp4.StscEntry{
		{FirstChunk: 1, SamplesPerChunk: 2, SampleDescriptionIndex: 1},
	}, tr.compactStsc())
	require.Equal(t, uint32(160), tr.durationIn(1000))
	require.Equal(t, uint32(14400), tr.durationIn(90000))
}
