// Package mp4muxer writes delivered packets to a progressive MP4 file.
package mp4muxer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"ipcamconv/pkg/video/h264"
	"ipcamconv/pkg/video/mp4"
	"ipcamconv/pkg/video/mp4/bitio"
	"ipcamconv/pkg/video/sink"
)

// Timescales and track IDs.
const (
	VideoTimescale = 90000
	MovieTimescale = 1000

	VideoTrackID = 1
	AudioTrackID = 2
)

// Errors.
var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrSampleRate       = errors.New("audio sample rate out of range")
	ErrNotConfigured    = errors.New("not configured")
	ErrConfigured       = errors.New("already configured")
	ErrFinalized        = errors.New("already finalized")
	ErrNoParameterSets  = errors.New("no SPS and PPS were delivered")
	ErrFileTooLarge     = errors.New("file exceeds 4GiB")
)

const mdatHeaderSize = 8

// Muxer implements sink.Sink. Samples are written to a mdat box as
// they arrive, the sample tables are written to a trailing moov box.
type Muxer struct {
	out io.WriteSeeker
	bw  *bufio.Writer
	w   *bitio.Writer

	config     sink.Config
	configured bool
	finalized  bool

	start     int64 // Output offset when configured.
	mdatStart int64 // Relative to start.

	sps []byte
	pps []byte

	video *track
	audio *track
	prev  *track

	avcc []byte
}

// New returns a muxer that writes to out starting at its current offset.
func New(out io.WriteSeeker) *Muxer {
	bw := bufio.NewWriter(out)
	return &Muxer{
		out: out,
		bw:  bw,
		w:   bitio.NewWriter(bw),
	}
}

// Configure implements sink.Sink.
func (m *Muxer) Configure(config sink.Config) (sink.Handles, error) {
	if m.configured {
		return sink.Handles{}, fmt.Errorf("%w: %v", sink.ErrConfigure, ErrConfigured)
	}
	if err := validateConfig(config); err != nil {
		return sink.Handles{}, fmt.Errorf("%w: %v", sink.ErrConfigure, err)
	}

	start, err := m.out.Seek(0, io.SeekCurrent)
	if err != nil {
		return sink.Handles{}, fmt.Errorf("%w: %v", sink.ErrConfigure, err)
	}
	m.start = start

	ftyp := &mp4.Ftyp{
		MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
		MinorVersion: 512,
		CompatibleBrands: [][4]byte{
			{'i', 's', 'o', 'm'},
			{'i', 's', 'o', '2'},
			{'a', 'v', 'c', '1'},
			{'m', 'p', '4', '1'},
		},
	}
	if _, err := mp4.WriteSingleBox(m.w, ftyp); err != nil {
		return sink.Handles{}, fmt.Errorf("%w: write ftyp: %v", sink.ErrConfigure, err)
	}

	// The size is patched by Finalize.
	m.mdatStart = m.w.Count()
	m.w.TryWriteUint32(0)
	m.w.TryWrite([]byte{'m', 'd', 'a', 't'})
	if m.w.TryError != nil {
		return sink.Handles{}, fmt.Errorf("%w: write mdat: %v", sink.ErrConfigure, m.w.TryError)
	}

	m.config = config
	m.configured = true
	m.video = &track{timescale: VideoTimescale}

	handles := sink.Handles{VideoTimescale: VideoTimescale}
	if config.Audio != nil {
		m.audio = &track{timescale: uint32(config.Audio.SampleRate)}
		handles.AudioTimescale = m.audio.timescale
		handles.HasAudio = true
	}
	return handles, nil
}

func validateConfig(config sink.Config) error {
	if config.Video.Codec != sink.CodecH264 {
		return fmt.Errorf("video: %w: %q", ErrUnsupportedCodec, config.Video.Codec)
	}
	if a := config.Audio; a != nil {
		if a.Codec != sink.CodecALaw {
			return fmt.Errorf("audio: %w: %q", ErrUnsupportedCodec, a.Codec)
		}
		// The sample entry stores the rate as 16.16 fixed point.
		if a.SampleRate <= 0 || a.SampleRate > math.MaxUint16 {
			return fmt.Errorf("%w: %d", ErrSampleRate, a.SampleRate)
		}
	}
	return nil
}

func (m *Muxer) checkDelivery() error {
	switch {
	case !m.configured:
		return fmt.Errorf("%w: %v", sink.ErrDelivery, ErrNotConfigured)
	case m.finalized:
		return fmt.Errorf("%w: %v", sink.ErrDelivery, ErrFinalized)
	}
	return nil
}

// DeliverVideo implements sink.Sink. The access unit is in Annex-B
// format and is stored with 4 byte length prefixes.
func (m *Muxer) DeliverVideo(au []byte, pts int64) error {
	if err := m.checkDelivery(); err != nil {
		return err
	}

	nalus, err := h264.AnnexBUnmarshal(au)
	if errors.Is(err, h264.ErrAnnexBEmpty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", sink.ErrDelivery, err)
	}

	sync := false
	for _, nalu := range nalus {
		switch h264.TypeOf(nalu) {
		case h264.NALUTypeSPS:
			if m.sps == nil {
				m.sps = append([]byte(nil), nalu...)
			}
		case h264.NALUTypePPS:
			if m.pps == nil {
				m.pps = append([]byte(nil), nalu...)
			}
		case h264.NALUTypeIDR:
			sync = true
		}
	}

	size := h264.AVCCMarshalSize(nalus)
	if cap(m.avcc) < size {
		m.avcc = make([]byte, size)
	}
	m.avcc = m.avcc[:size]
	h264.AVCCMarshalTo(m.avcc, nalus)

	return m.writeSample(m.video, m.avcc, pts, sync)
}

// DeliverAudio implements sink.Sink.
func (m *Muxer) DeliverAudio(samples []byte, pts int64) error {
	if err := m.checkDelivery(); err != nil {
		return err
	}
	if m.audio == nil {
		return fmt.Errorf("%w: no audio track", sink.ErrDelivery)
	}
	if len(samples) == 0 {
		return nil
	}
	return m.writeSample(m.audio, samples, pts, false)
}

func (m *Muxer) writeSample(t *track, data []byte, pts int64, sync bool) error {
	offset := m.start + m.w.Count()
	if offset+int64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("%w: %v", sink.ErrDelivery, ErrFileTooLarge)
	}

	m.w.TryWrite(data)
	if m.w.TryError != nil {
		return fmt.Errorf("%w: %v", sink.ErrDelivery, m.w.TryError)
	}

	t.addSample(pts, uint32(len(data)), uint32(offset), sync, m.prev != t)
	m.prev = t
	return nil
}

// Finalize implements sink.Sink. It patches the mdat
// size and appends the moov box.
func (m *Muxer) Finalize() error {
	if !m.configured {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, ErrNotConfigured)
	}
	if m.finalized {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, ErrFinalized)
	}
	m.finalized = true

	if m.sps == nil || m.pps == nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, ErrNoParameterSets)
	}
	var spsp h264.SPS
	if err := spsp.Unmarshal(m.sps); err != nil {
		return fmt.Errorf("%w: unmarshal sps: %v", sink.ErrFinalize, err)
	}

	m.video.flush(m.nominalFrameDuration())
	if m.audio != nil {
		m.audio.flush(m.audio.lastSize)
	}

	if err := m.patchMdatSize(); err != nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, err)
	}

	moov := m.generateMoov(spsp)
	if err := moov.Marshal(m.w); err != nil {
		return fmt.Errorf("%w: write moov: %v", sink.ErrFinalize, err)
	}
	if err := m.bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, err)
	}
	return nil
}

// nominalFrameDuration is used for the last video sample.
func (m *Muxer) nominalFrameDuration() uint32 {
	if m.config.Video.FrameRate <= 0 {
		return VideoTimescale
	}
	return uint32(math.Round(float64(VideoTimescale) / float64(m.config.Video.FrameRate)))
}

func (m *Muxer) patchMdatSize() error {
	if err := m.bw.Flush(); err != nil {
		return err
	}
	size := m.w.Count() - m.mdatStart
	if size > math.MaxUint32 {
		return ErrFileTooLarge
	}

	end, err := m.out.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := m.out.Seek(m.start+m.mdatStart, io.SeekStart); err != nil {
		return err
	}
	header := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	if _, err := m.out.Write(header); err != nil {
		return err
	}
	_, err = m.out.Seek(end, io.SeekStart)
	return err
}

// track accumulates the sample tables of one track.
type track struct {
	timescale uint32

	stts []mp4.SttsEntry
	stss []uint32
	stsc []mp4.StscEntry
	stsz []uint32
	stco []uint32

	// The duration of a sample is known when the next one arrives.
	pending  bool
	prevPTS  int64
	lastSize uint32
	duration uint64
}

func (t *track) addSample(pts int64, size uint32, offset uint32, sync bool, newChunk bool) {
	if t.pending {
		t.addDelta(pts - t.prevPTS)
	}
	t.pending = true
	t.prevPTS = pts
	t.lastSize = size

	if newChunk {
		t.stco = append(t.stco, offset)
		t.stsc = append(t.stsc, mp4.StscEntry{
			FirstChunk:             uint32(len(t.stco)),
			SamplesPerChunk:        1,
			SampleDescriptionIndex: 1,
		})
	} else {
		t.stsc[len(t.stsc)-1].SamplesPerChunk++
	}

	t.stsz = append(t.stsz, size)
	if sync {
		t.stss = append(t.stss, uint32(len(t.stsz)))
	}
}

// Timestamps that go backwards produce a zero duration.
func (t *track) addDelta(delta int64) {
	if delta < 0 {
		delta = 0
	}
	if delta > math.MaxUint32 {
		delta = math.MaxUint32
	}
	d := uint32(delta)
	t.duration += uint64(d)

	if n := len(t.stts); n > 0 && t.stts[n-1].SampleDelta == d {
		t.stts[n-1].SampleCount++
		return
	}
	t.stts = append(t.stts, mp4.SttsEntry{SampleCount: 1, SampleDelta: d})
}

func (t *track) flush(lastDuration uint32) {
	if t.pending {
		t.addDelta(int64(lastDuration))
		t.pending = false
	}
}

// Compact stsc by merging consecutive chunks with the same sample count.
func (t *track) compactStsc() []mp4.StscEntry {
	var ret []mp4.StscEntry
	for _, e := range t.stsc {
		if n := len(ret); n > 0 && ret[n-1].SamplesPerChunk == e.SamplesPerChunk {
			continue
		}
		ret = append(ret, e)
	}
	return ret
}

// durationIn converts the track duration to another timescale.
func (t *track) durationIn(timescale uint32) uint32 {
	d := t.duration * uint64(timescale) / uint64(t.timescale)
	if d > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(d)
}
