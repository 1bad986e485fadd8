package mp4muxer

import (
	"ipcamconv/pkg/video/h264"
	"ipcamconv/pkg/video/mp4"
)

var dinf = mp4.Boxes{
	Box: &mp4.Dinf{},
	Children: []mp4.Boxes{
		{
			Box: &mp4.Dref{EntryCount: 1},
			Children: []mp4.Boxes{
				{Box: &mp4.URL{
					FullBox: mp4.FullBox{Flags: [3]byte{0, 0, mp4.URLSelfContained}},
				}},
			},
		},
	},
}

var trackFlags = [3]byte{0, 0, mp4.TkhdTrackEnabled | mp4.TkhdTrackInMovie}

func (m *Muxer) generateMoov(spsp h264.SPS) mp4.Boxes {
	/*
	   moov
	   - mvhd
	   - trak (video)
	   - trak (audio)
	*/

	duration := m.video.durationIn(MovieTimescale)
	nextTrackID := uint32(VideoTrackID + 1)
	if m.audio != nil {
		if d := m.audio.durationIn(MovieTimescale); d > duration {
			duration = d
		}
		nextTrackID = AudioTrackID + 1
	}

	moov := mp4.Boxes{
		Box: &mp4.Moov{},
		Children: []mp4.Boxes{
			{Box: &mp4.Mvhd{
				Timescale:   MovieTimescale,
				Duration:    duration,
				Rate:        0x00010000,
				Volume:      0x0100,
				Matrix:      mp4.UnityMatrix,
				NextTrackID: nextTrackID,
			}},
			m.generateVideoTrak(spsp),
		},
	}
	if m.audio != nil {
		moov.Children = append(moov.Children, m.generateAudioTrak())
	}
	return moov
}

func (m *Muxer) videoSize(spsp h264.SPS) (uint32, uint32) {
	width, height := spsp.Width(), spsp.Height()
	if width <= 0 || height <= 0 {
		return m.config.Video.Width, m.config.Video.Height
	}
	return uint32(width), uint32(height)
}

func (m *Muxer) generateVideoTrak(spsp h264.SPS) mp4.Boxes {
	/*
	   trak
	   - tkhd
	   - mdia
	     - mdhd
	     - hdlr
	     - minf
	       - vmhd
	       - dinf
	       - stbl
	*/

	width, height := m.videoSize(spsp)
	t := m.video

	stbl := mp4.Boxes{
		Box: &mp4.Stbl{},
		Children: []mp4.Boxes{
			{
				Box: &mp4.Stsd{EntryCount: 1},
				Children: []mp4.Boxes{
					{
						Box: &mp4.Avc1{
							SampleEntry:     mp4.SampleEntry{DataReferenceIndex: 1},
							Width:           uint16(width),
							Height:          uint16(height),
							Horizresolution: 0x00480000, // 72 dpi.
							Vertresolution:  0x00480000,
							FrameCount:      1,
							Depth:           0x18,
						},
						Children: []mp4.Boxes{
							{Box: &mp4.AvcC{
								Profile:              spsp.ProfileIdc,
								ProfileCompatibility: spsp.ProfileCompatibility,
								Level:                spsp.LevelIdc,
								SPS:                  [][]byte{m.sps},
								PPS:                  [][]byte{m.pps},
							}},
						},
					},
				},
			},
			{Box: &mp4.Stts{Entries: t.stts}},
			{Box: &mp4.Stss{SampleNumbers: t.stss}},
			{Box: &mp4.Stsc{Entries: t.compactStsc()}},
			{Box: &mp4.Stsz{
				SampleCount: uint32(len(t.stsz)),
				EntrySizes:  t.stsz,
			}},
			{Box: &mp4.Stco{ChunkOffsets: t.stco}},
		},
	}

	return mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: &mp4.Tkhd{
				FullBox:  mp4.FullBox{Flags: trackFlags},
				TrackID:  VideoTrackID,
				Duration: t.durationIn(MovieTimescale),
				Matrix:   mp4.UnityMatrix,
				Width:    width << 16,
				Height:   height << 16,
			}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{
						Timescale: t.timescale,
						Duration:  t.durationIn(t.timescale),
						Language:  [3]byte{'u', 'n', 'd'},
					}},
					{Box: &mp4.Hdlr{
						HandlerType: [4]byte{'v', 'i', 'd', 'e'},
						Name:        "VideoHandler",
					}},
					{
						Box: &mp4.Minf{},
						Children: []mp4.Boxes{
							{Box: &mp4.Vmhd{FullBox: mp4.FullBox{Flags: [3]byte{0, 0, 1}}}},
							dinf,
							stbl,
						},
					},
				},
			},
		},
	}
}

func (m *Muxer) generateAudioTrak() mp4.Boxes {
	/*
	   trak
	   - tkhd
	   - mdia
	     - mdhd
	     - hdlr
	     - minf
	       - smhd
	       - dinf
	       - stbl
	         - stsd
	           - alaw
	*/

	t := m.audio
	audio := m.config.Audio

	stbl := mp4.Boxes{
		Box: &mp4.Stbl{},
		Children: []mp4.Boxes{
			{
				Box: &mp4.Stsd{EntryCount: 1},
				Children: []mp4.Boxes{
					{Box: &mp4.AudioSampleEntry{
						Format:       [4]byte{'a', 'l', 'a', 'w'},
						SampleEntry:  mp4.SampleEntry{DataReferenceIndex: 1},
						ChannelCount: uint16(audio.Channels),
						SampleSize:   uint16(audio.SampleSize),
						SampleRate:   uint32(audio.SampleRate) << 16,
					}},
				},
			},
			{Box: &mp4.Stts{Entries: t.stts}},
			{Box: &mp4.Stsc{Entries: t.compactStsc()}},
			{Box: &mp4.Stsz{
				SampleCount: uint32(len(t.stsz)),
				EntrySizes:  t.stsz,
			}},
			{Box: &mp4.Stco{ChunkOffsets: t.stco}},
		},
	}

	return mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: &mp4.Tkhd{
				FullBox:        mp4.FullBox{Flags: trackFlags},
				TrackID:        AudioTrackID,
				Duration:       t.durationIn(MovieTimescale),
				AlternateGroup: 1,
				Volume:         0x0100,
				Matrix:         mp4.UnityMatrix,
			}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{
						Timescale: t.timescale,
						Duration:  t.durationIn(t.timescale),
						Language:  [3]byte{'u', 'n', 'd'},
					}},
					{Box: &mp4.Hdlr{
						HandlerType: [4]byte{'s', 'o', 'u', 'n'},
						Name:        "SoundHandler",
					}},
					{
						Box: &mp4.Minf{},
						Children: []mp4.Boxes{
							{Box: &mp4.Smhd{}},
							dinf,
							stbl,
						},
					},
				},
			},
		},
	}
}
