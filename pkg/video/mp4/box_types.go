package mp4

import (
	"errors"

	"ipcamconv/pkg/video/mp4/bitio"
)

// UnityMatrix is the identity transformation used by mvhd and tkhd.
var UnityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

/************************* FullBox **************************/

// FullBox is ISOBMFF FullBox.
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

// FieldSize returns the marshaled size in bytes.
func (b *FullBox) FieldSize() int {
	return 4
}

// MarshalField box to writer.
func (b *FullBox) MarshalField(w *bitio.Writer) {
	w.TryWriteByte(b.Version)
	w.TryWrite(b.Flags[:])
}

/************************ containers *************************/

// Moov is ISOBMFF moov box type.
type Moov struct{}

// Type returns the BoxType.
func (*Moov) Type() BoxType { return [4]byte{'m', 'o', 'o', 'v'} }

// Size returns the marshaled size in bytes.
func (*Moov) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Moov) Marshal(*bitio.Writer) error { return nil }

// Trak is ISOBMFF trak box type.
type Trak struct{}

// Type returns the BoxType.
func (*Trak) Type() BoxType { return [4]byte{'t', 'r', 'a', 'k'} }

// Size returns the marshaled size in bytes.
func (*Trak) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Trak) Marshal(*bitio.Writer) error { return nil }

// Mdia is ISOBMFF mdia box type.
type Mdia struct{}

// Type returns the BoxType.
func (*Mdia) Type() BoxType { return [4]byte{'m', 'd', 'i', 'a'} }

// Size returns the marshaled size in bytes.
func (*Mdia) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Mdia) Marshal(*bitio.Writer) error { return nil }

// Minf is ISOBMFF minf box type.
type Minf struct{}

// Type returns the BoxType.
func (*Minf) Type() BoxType { return [4]byte{'m', 'i', 'n', 'f'} }

// Size returns the marshaled size in bytes.
func (*Minf) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Minf) Marshal(*bitio.Writer) error { return nil }

// Dinf is ISOBMFF dinf box type.
type Dinf struct{}

// Type returns the BoxType.
func (*Dinf) Type() BoxType { return [4]byte{'d', 'i', 'n', 'f'} }

// Size returns the marshaled size in bytes.
func (*Dinf) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Dinf) Marshal(*bitio.Writer) error { return nil }

// Stbl is ISOBMFF stbl box type.
type Stbl struct{}

// Type returns the BoxType.
func (*Stbl) Type() BoxType { return [4]byte{'s', 't', 'b', 'l'} }

// Size returns the marshaled size in bytes.
func (*Stbl) Size() int { return 0 }

// Marshal is a no-op, containers have no body.
func (*Stbl) Marshal(*bitio.Writer) error { return nil }

/*************************** ftyp ****************************/

// Ftyp is ISOBMFF ftyp box type.
type Ftyp struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands [][4]byte
}

// Type returns the BoxType.
func (*Ftyp) Type() BoxType {
	return [4]byte{'f', 't', 'y', 'p'}
}

// Size returns the marshaled size in bytes.
func (b *Ftyp) Size() int {
	return 8 + len(b.CompatibleBrands)*4
}

// Marshal box to writer.
func (b *Ftyp) Marshal(w *bitio.Writer) error {
	w.TryWrite(b.MajorBrand[:])
	w.TryWriteUint32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		w.TryWrite(brand[:])
	}
	return w.TryError
}

/*************************** mvhd ****************************/

// Mvhd is ISOBMFF mvhd box type. Version 0.
type Mvhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	Timescale        uint32
	Duration         uint32
	Rate             int32 // fixed-point 16.16 - template=0x00010000
	Volume           int16 // template=0x0100
	Matrix           [9]int32
	NextTrackID      uint32
}

// Type returns the BoxType.
func (*Mvhd) Type() BoxType {
	return [4]byte{'m', 'v', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Mvhd) Size() int {
	return 100
}

// Marshal box to writer.
func (b *Mvhd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.CreationTime)
	w.TryWriteUint32(b.ModificationTime)
	w.TryWriteUint32(b.Timescale)
	w.TryWriteUint32(b.Duration)
	w.TryWriteUint32(uint32(b.Rate))
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWrite(make([]byte, 10)) // Reserved.
	for _, v := range b.Matrix {
		w.TryWriteUint32(uint32(v))
	}
	w.TryWrite(make([]byte, 24)) // Pre-defined.
	w.TryWriteUint32(b.NextTrackID)
	return w.TryError
}

/*************************** tkhd ****************************/

// Track header flags.
const (
	TkhdTrackEnabled = 0x000001
	TkhdTrackInMovie = 0x000002
)

// Tkhd is ISOBMFF tkhd box type. Version 0.
type Tkhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	TrackID          uint32
	Duration         uint32
	Layer            int16
	AlternateGroup   int16
	Volume           int16 // template={if track_is_audio 0x0100 else 0}
	Matrix           [9]int32
	Width            uint32 // fixed-point 16.16
	Height           uint32 // fixed-point 16.16
}

// Type returns the BoxType.
func (*Tkhd) Type() BoxType {
	return [4]byte{'t', 'k', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Tkhd) Size() int {
	return 84
}

// Marshal box to writer.
func (b *Tkhd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.CreationTime)
	w.TryWriteUint32(b.ModificationTime)
	w.TryWriteUint32(b.TrackID)
	w.TryWriteUint32(0) // Reserved.
	w.TryWriteUint32(b.Duration)
	w.TryWrite(make([]byte, 8)) // Reserved.
	w.TryWriteUint16(uint16(b.Layer))
	w.TryWriteUint16(uint16(b.AlternateGroup))
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWriteUint16(0) // Reserved.
	for _, v := range b.Matrix {
		w.TryWriteUint32(uint32(v))
	}
	w.TryWriteUint32(b.Width)
	w.TryWriteUint32(b.Height)
	return w.TryError
}

/*************************** mdhd ****************************/

// Mdhd is ISOBMFF mdhd box type. Version 0.
type Mdhd struct {
	FullBox
	CreationTime     uint32
	ModificationTime uint32
	Timescale        uint32
	Duration         uint32
	Language         [3]byte // ISO-639-2/T language code
}

// Type returns the BoxType.
func (*Mdhd) Type() BoxType {
	return [4]byte{'m', 'd', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Mdhd) Size() int {
	return 24
}

// Marshal box to writer.
func (b *Mdhd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.CreationTime)
	w.TryWriteUint32(b.ModificationTime)
	w.TryWriteUint32(b.Timescale)
	w.TryWriteUint32(b.Duration)

	// Three 5 bit characters offset by 0x60.
	var lang uint16
	for _, c := range b.Language {
		lang = lang<<5 | uint16(c-0x60)&0x1f
	}
	w.TryWriteUint16(lang)
	w.TryWriteUint16(0) // Pre-defined.
	return w.TryError
}

/*************************** hdlr ****************************/

// Hdlr is ISOBMFF hdlr box type.
type Hdlr struct {
	FullBox
	HandlerType [4]byte
	Name        string
}

// Type returns the BoxType.
func (*Hdlr) Type() BoxType {
	return [4]byte{'h', 'd', 'l', 'r'}
}

// Size returns the marshaled size in bytes.
func (b *Hdlr) Size() int {
	return 25 + len(b.Name)
}

// Marshal box to writer.
func (b *Hdlr) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(0) // Pre-defined.
	w.TryWrite(b.HandlerType[:])
	w.TryWrite(make([]byte, 12)) // Reserved.
	w.TryWrite([]byte(b.Name))
	w.TryWriteByte(0)
	return w.TryError
}

/*************************** vmhd ****************************/

// Vmhd is ISOBMFF vmhd box type.
type Vmhd struct {
	FullBox
	Graphicsmode uint16
	Opcolor      [3]uint16
}

// Type returns the BoxType.
func (*Vmhd) Type() BoxType {
	return [4]byte{'v', 'm', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Vmhd) Size() int {
	return 12
}

// Marshal box to writer.
func (b *Vmhd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint16(b.Graphicsmode)
	for _, color := range b.Opcolor {
		w.TryWriteUint16(color)
	}
	return w.TryError
}

/*************************** smhd ****************************/

// Smhd is ISOBMFF smhd box type.
type Smhd struct {
	FullBox
	Balance int16 // fixed-point 8.8 template=0
}

// Type returns the BoxType.
func (*Smhd) Type() BoxType {
	return [4]byte{'s', 'm', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Smhd) Size() int {
	return 8
}

// Marshal box to writer.
func (b *Smhd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint16(uint16(b.Balance))
	w.TryWriteUint16(0) // Reserved.
	return w.TryError
}

/*************************** dref ****************************/

// Dref is ISOBMFF dref box type.
type Dref struct {
	FullBox
	EntryCount uint32
}

// Type returns the BoxType.
func (*Dref) Type() BoxType {
	return [4]byte{'d', 'r', 'e', 'f'}
}

// Size returns the marshaled size in bytes.
func (b *Dref) Size() int {
	return 8
}

// Marshal box to writer.
func (b *Dref) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.EntryCount)
	return w.TryError
}

/*************************** url ****************************/

// URLSelfContained media data is in the same file.
const URLSelfContained = 0x000001

// URL is ISOBMFF url box type.
type URL struct {
	FullBox
	Location string
}

// Type returns the BoxType.
func (*URL) Type() BoxType {
	return [4]byte{'u', 'r', 'l', ' '}
}

// Size returns the marshaled size in bytes.
func (b *URL) Size() int {
	if b.Flags[2]&URLSelfContained != 0 {
		return 4
	}
	return 5 + len(b.Location)
}

// Marshal box to writer.
func (b *URL) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	if b.Flags[2]&URLSelfContained == 0 {
		w.TryWrite([]byte(b.Location))
		w.TryWriteByte(0)
	}
	return w.TryError
}

/*************************** stsd ****************************/

// Stsd is ISOBMFF stsd box type.
type Stsd struct {
	FullBox
	EntryCount uint32
}

// Type returns the BoxType.
func (*Stsd) Type() BoxType {
	return [4]byte{'s', 't', 's', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Stsd) Size() int {
	return 8
}

// Marshal box to writer.
func (b *Stsd) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.EntryCount)
	return w.TryError
}

/*********************** SampleEntry *************************/

// SampleEntry .
type SampleEntry struct {
	DataReferenceIndex uint16
}

// MarshalField entry to writer.
func (b *SampleEntry) MarshalField(w *bitio.Writer) {
	w.TryWrite(make([]byte, 6)) // Reserved.
	w.TryWriteUint16(b.DataReferenceIndex)
}

/*************************** avc1 ****************************/

// Avc1 is ISOBMFF AVC box type.
type Avc1 struct {
	SampleEntry
	Width           uint16
	Height          uint16
	Horizresolution uint32 // fixed-point 16.16
	Vertresolution  uint32 // fixed-point 16.16
	FrameCount      uint16
	Compressorname  [32]byte
	Depth           uint16
}

// Type returns the BoxType.
func (*Avc1) Type() BoxType {
	return [4]byte{'a', 'v', 'c', '1'}
}

// Size returns the marshaled size in bytes.
func (b *Avc1) Size() int {
	return 78
}

// Marshal box to writer.
func (b *Avc1) Marshal(w *bitio.Writer) error {
	b.SampleEntry.MarshalField(w)
	w.TryWrite(make([]byte, 16)) // Pre-defined and reserved.
	w.TryWriteUint16(b.Width)
	w.TryWriteUint16(b.Height)
	w.TryWriteUint32(b.Horizresolution)
	w.TryWriteUint32(b.Vertresolution)
	w.TryWriteUint32(0) // Reserved.
	w.TryWriteUint16(b.FrameCount)
	w.TryWrite(b.Compressorname[:])
	w.TryWriteUint16(b.Depth)
	w.TryWriteUint16(0xffff) // Pre-defined.
	return w.TryError
}

/*************************** avcC ****************************/

// ErrAvcCParameterSets avcC without SPS or PPS.
var ErrAvcCParameterSets = errors.New("avcC requires at least one SPS and one PPS")

// AvcC is ISOBMFF AVC configuration box type.
// NAL units are always prefixed by a 4 byte length.
type AvcC struct {
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

// Type returns the BoxType.
func (*AvcC) Type() BoxType {
	return [4]byte{'a', 'v', 'c', 'C'}
}

// Size returns the marshaled size in bytes.
func (b *AvcC) Size() int {
	total := 7
	for _, nalu := range b.SPS {
		total += 2 + len(nalu)
	}
	for _, nalu := range b.PPS {
		total += 2 + len(nalu)
	}
	return total
}

// Marshal box to writer.
func (b *AvcC) Marshal(w *bitio.Writer) error {
	if len(b.SPS) == 0 || len(b.PPS) == 0 {
		return ErrAvcCParameterSets
	}
	w.TryWriteByte(1) // Configuration version.
	w.TryWriteByte(b.Profile)
	w.TryWriteByte(b.ProfileCompatibility)
	w.TryWriteByte(b.Level)
	w.TryWriteByte(0xfc | 3)                      // Reserved and LengthSizeMinusOne.
	w.TryWriteByte(0xe0 | uint8(len(b.SPS))&0x1f) // Reserved and numOfSequenceParameterSets.
	for _, nalu := range b.SPS {
		w.TryWriteUint16(uint16(len(nalu)))
		w.TryWrite(nalu)
	}
	w.TryWriteByte(uint8(len(b.PPS)))
	for _, nalu := range b.PPS {
		w.TryWriteUint16(uint16(len(nalu)))
		w.TryWrite(nalu)
	}
	return w.TryError
}

/******************* audio sample entry **********************/

// AudioSampleEntry is a version 0 sound sample description.
// Format selects the codec, e.g. "alaw" for G.711 A-law.
type AudioSampleEntry struct {
	Format BoxType
	SampleEntry
	ChannelCount uint16
	SampleSize   uint16
	SampleRate   uint32 // fixed-point 16.16
}

// Type returns the BoxType.
func (b *AudioSampleEntry) Type() BoxType {
	return b.Format
}

// Size returns the marshaled size in bytes.
func (b *AudioSampleEntry) Size() int {
	return 28
}

// Marshal box to writer.
func (b *AudioSampleEntry) Marshal(w *bitio.Writer) error {
	b.SampleEntry.MarshalField(w)
	w.TryWrite(make([]byte, 8)) // Version, revision and vendor.
	w.TryWriteUint16(b.ChannelCount)
	w.TryWriteUint16(b.SampleSize)
	w.TryWriteUint32(0) // Compression ID and packet size.
	w.TryWriteUint32(b.SampleRate)
	return w.TryError
}

/*************************** stts ****************************/

// SttsEntry .
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is ISOBMFF stts box type.
type Stts struct {
	FullBox
	Entries []SttsEntry
}

// Type returns the BoxType.
func (*Stts) Type() BoxType {
	return [4]byte{'s', 't', 't', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Stts) Size() int {
	return 8 + len(b.Entries)*8
}

// Marshal box to writer.
func (b *Stts) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, entry := range b.Entries {
		w.TryWriteUint32(entry.SampleCount)
		w.TryWriteUint32(entry.SampleDelta)
	}
	return w.TryError
}

/*************************** stss ****************************/

// Stss is ISOBMFF stss box type.
type Stss struct {
	FullBox
	SampleNumbers []uint32
}

// Type returns the BoxType.
func (*Stss) Type() BoxType {
	return [4]byte{'s', 't', 's', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Stss) Size() int {
	return 8 + len(b.SampleNumbers)*4
}

// Marshal box to writer.
func (b *Stss) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(uint32(len(b.SampleNumbers)))
	for _, number := range b.SampleNumbers {
		w.TryWriteUint32(number)
	}
	return w.TryError
}

/*************************** stsc ****************************/

// StscEntry .
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is ISOBMFF stsc box type.
type Stsc struct {
	FullBox
	Entries []StscEntry
}

// Type returns the BoxType.
func (*Stsc) Type() BoxType {
	return [4]byte{'s', 't', 's', 'c'}
}

// Size returns the marshaled size in bytes.
func (b *Stsc) Size() int {
	return 8 + len(b.Entries)*12
}

// Marshal box to writer.
func (b *Stsc) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(uint32(len(b.Entries)))
	for _, entry := range b.Entries {
		w.TryWriteUint32(entry.FirstChunk)
		w.TryWriteUint32(entry.SamplesPerChunk)
		w.TryWriteUint32(entry.SampleDescriptionIndex)
	}
	return w.TryError
}

/*************************** stsz ****************************/

// Stsz is ISOBMFF stsz box type.
type Stsz struct {
	FullBox
	SampleSize  uint32
	SampleCount uint32
	EntrySizes  []uint32
}

// Type returns the BoxType.
func (*Stsz) Type() BoxType {
	return [4]byte{'s', 't', 's', 'z'}
}

// Size returns the marshaled size in bytes.
func (b *Stsz) Size() int {
	return 12 + len(b.EntrySizes)*4
}

// Marshal box to writer.
func (b *Stsz) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(b.SampleSize)
	w.TryWriteUint32(b.SampleCount)
	for _, size := range b.EntrySizes {
		w.TryWriteUint32(size)
	}
	return w.TryError
}

/*************************** stco ****************************/

// Stco is ISOBMFF stco box type.
type Stco struct {
	FullBox
	ChunkOffsets []uint32
}

// Type returns the BoxType.
func (*Stco) Type() BoxType {
	return [4]byte{'s', 't', 'c', 'o'}
}

// Size returns the marshaled size in bytes.
func (b *Stco) Size() int {
	return 8 + len(b.ChunkOffsets)*4
}

// Marshal box to writer.
func (b *Stco) Marshal(w *bitio.Writer) error {
	b.FullBox.MarshalField(w)
	w.TryWriteUint32(uint32(len(b.ChunkOffsets)))
	for _, offset := range b.ChunkOffsets {
		w.TryWriteUint32(offset)
	}
	return w.TryError
}
