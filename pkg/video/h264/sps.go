package h264

import (
	"bytes"
	"errors"

	"github.com/icza/bitio"
)

func readGolombUnsigned(br *bitio.Reader) (uint32, error) {
	leadingZeroBits := uint32(0)

	for {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}

		if b != 0 {
			break
		}

		leadingZeroBits++
		if leadingZeroBits > 31 {
			return 0, ErrSPSInvalidGolomb
		}
	}

	codeNum := uint32(0)

	for n := leadingZeroBits; n > 0; n-- {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}

		codeNum |= uint32(b) << (n - 1)
	}

	codeNum = (1 << leadingZeroBits) - 1 + codeNum

	return codeNum, nil
}

func readGolombSigned(br *bitio.Reader) (int32, error) {
	v, err := readGolombUnsigned(br)
	if err != nil {
		return 0, err
	}
	vi := int32(v)

	if (vi & 0x01) != 0 {
		return (vi + 1) / 2, nil
	}

	return -vi / 2, nil
}

// skipGolomb reads and discards n unsigned values.
func skipGolomb(br *bitio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := readGolombUnsigned(br); err != nil {
			return err
		}
	}
	return nil
}

func skipScalingList(br *bitio.Reader, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)

	for j := 0; j < size; j++ {
		if nextScale != 0 {
			deltaScale, err := readGolombSigned(br)
			if err != nil {
				return err
			}
			nextScale = (lastScale + deltaScale + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

// SPS errors.
var (
	ErrSPSBufferTooShort    = errors.New("buffer too short")
	ErrSPSWrongForbiddenBit = errors.New("wrong forbidden bit")
	ErrSPSWrongNalRefIdc    = errors.New("wrong nal_ref_idc")
	ErrSPSWrongType         = errors.New("not a SPS")
	ErrSPSInvalidGolomb     = errors.New("invalid exp-golomb code")
)

// FrameCropping is the frame cropping part of a SPS.
type FrameCropping struct {
	LeftOffset   uint32
	RightOffset  uint32
	TopOffset    uint32
	BottomOffset uint32
}

// SPS is the part of a H264 sequence parameter set that
// precedes the VUI parameters.
type SPS struct {
	ProfileIdc           uint8
	ProfileCompatibility uint8 // The constraint set flags byte.
	LevelIdc             uint8
	ID                   uint32

	ChromaFormatIdc         uint32
	SeparateColourPlaneFlag bool

	PicOrderCntType      uint32
	MaxNumRefFrames      uint32
	PicWidthInMbsMinus1  uint32
	PicHeightInMbsMinus1 uint32
	FrameMbsOnlyFlag     bool

	// Nil if frame_cropping_flag is zero.
	FrameCropping *FrameCropping
}

// Unmarshal decodes a SPS NALU without start code.
func (s *SPS) Unmarshal(buf []byte) error { //nolint:funlen
	// ref: ISO/IEC 14496-10:2020

	buf = AntiCompetitionRemove(buf)

	if len(buf) < 4 {
		return ErrSPSBufferTooShort
	}

	if buf[0]>>7 != 0 {
		return ErrSPSWrongForbiddenBit
	}
	if (buf[0]>>5)&0x03 == 0 {
		return ErrSPSWrongNalRefIdc
	}
	if TypeOf(buf) != NALUTypeSPS {
		return ErrSPSWrongType
	}

	s.ProfileIdc = buf[1]
	s.ProfileCompatibility = buf[2]
	s.LevelIdc = buf[3]

	br := bitio.NewReader(bytes.NewReader(buf[4:]))

	var err error
	s.ID, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}

	if err := s.unmarshalProfileIdc(br); err != nil {
		return err
	}

	// log2_max_frame_num_minus4
	if err := skipGolomb(br, 1); err != nil {
		return err
	}

	s.PicOrderCntType, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}
	if err := s.skipPicOrderCnt(br); err != nil {
		return err
	}

	s.MaxNumRefFrames, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}

	// gaps_in_frame_num_value_allowed_flag
	if _, err := br.ReadBool(); err != nil {
		return err
	}

	s.PicWidthInMbsMinus1, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}
	s.PicHeightInMbsMinus1, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}

	s.FrameMbsOnlyFlag, err = br.ReadBool()
	if err != nil {
		return err
	}
	if !s.FrameMbsOnlyFlag {
		// mb_adaptive_frame_field_flag
		if _, err := br.ReadBool(); err != nil {
			return err
		}
	}

	// direct_8x8_inference_flag
	if _, err := br.ReadBool(); err != nil {
		return err
	}

	frameCroppingFlag, err := br.ReadBool()
	if err != nil {
		return err
	}
	s.FrameCropping = nil
	if frameCroppingFlag {
		var c FrameCropping
		for _, v := range []*uint32{&c.LeftOffset, &c.RightOffset, &c.TopOffset, &c.BottomOffset} {
			if *v, err = readGolombUnsigned(br); err != nil {
				return err
			}
		}
		s.FrameCropping = &c
	}

	return nil
}

func (s *SPS) unmarshalProfileIdc(br *bitio.Reader) error {
	s.ChromaFormatIdc = 1
	s.SeparateColourPlaneFlag = false

	switch s.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
	default:
		return nil
	}

	var err error
	s.ChromaFormatIdc, err = readGolombUnsigned(br)
	if err != nil {
		return err
	}

	if s.ChromaFormatIdc == 3 {
		s.SeparateColourPlaneFlag, err = br.ReadBool()
		if err != nil {
			return err
		}
	}

	// bit_depth_luma_minus8, bit_depth_chroma_minus8
	if err := skipGolomb(br, 2); err != nil {
		return err
	}

	// qpprime_y_zero_transform_bypass_flag
	if _, err := br.ReadBool(); err != nil {
		return err
	}

	seqScalingMatrixPresentFlag, err := br.ReadBool()
	if err != nil {
		return err
	}
	if !seqScalingMatrixPresentFlag {
		return nil
	}

	lim := 8
	if s.ChromaFormatIdc == 3 {
		lim = 12
	}
	for i := 0; i < lim; i++ {
		present, err := br.ReadBool()
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		size := 64
		if i < 6 {
			size = 16
		}
		if err := skipScalingList(br, size); err != nil {
			return err
		}
	}
	return nil
}

func (s *SPS) skipPicOrderCnt(br *bitio.Reader) error {
	switch s.PicOrderCntType {
	case 0:
		// log2_max_pic_order_cnt_lsb_minus4
		return skipGolomb(br, 1)

	case 1:
		// delta_pic_order_always_zero_flag
		if _, err := br.ReadBool(); err != nil {
			return err
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		if err := skipGolomb(br, 2); err != nil {
			return err
		}
		n, err := readGolombUnsigned(br)
		if err != nil {
			return err
		}
		return skipGolomb(br, int(n))
	}
	return nil
}

func (s SPS) cropUnits() (uint32, uint32) {
	f := uint32(0)
	if s.FrameMbsOnlyFlag {
		f = 1
	}
	if s.ChromaFormatIdc == 0 || s.SeparateColourPlaneFlag {
		return 1, 2 - f
	}
	subWidth, subHeight := uint32(2), uint32(2)
	switch s.ChromaFormatIdc {
	case 2:
		subHeight = 1
	case 3:
		subWidth, subHeight = 1, 1
	}
	return subWidth, subHeight * (2 - f)
}

// Width returns the video width.
func (s SPS) Width() int {
	w := (s.PicWidthInMbsMinus1 + 1) * 16
	if s.FrameCropping != nil {
		unitX, _ := s.cropUnits()
		w -= (s.FrameCropping.LeftOffset + s.FrameCropping.RightOffset) * unitX
	}
	return int(w)
}

// Height returns the video height.
func (s SPS) Height() int {
	f := uint32(0)
	if s.FrameMbsOnlyFlag {
		f = 1
	}
	h := (2 - f) * (s.PicHeightInMbsMinus1 + 1) * 16
	if s.FrameCropping != nil {
		_, unitY := s.cropUnits()
		h -= (s.FrameCropping.TopOffset + s.FrameCropping.BottomOffset) * unitY
	}
	return int(h)
}
