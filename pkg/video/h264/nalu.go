// Package h264 contains the few H264 bitstream helpers needed to
// aggregate and repackage camera access units.
package h264

import "strconv"

// NALUType is the type of a NALU.
type NALUType uint8

// NALU types.
const (
	NALUTypeNonIDR NALUType = 1
	NALUTypeIDR    NALUType = 5
	NALUTypeSEI    NALUType = 6
	NALUTypeSPS    NALUType = 7
	NALUTypePPS    NALUType = 8
	NALUTypeAUD    NALUType = 9
)

var naluTypeNames = map[NALUType]string{
	NALUTypeNonIDR: "NonIDR",
	NALUTypeIDR:    "IDR",
	NALUTypeSEI:    "SEI",
	NALUTypeSPS:    "SPS",
	NALUTypePPS:    "PPS",
	NALUTypeAUD:    "AUD",
}

func (t NALUType) String() string {
	if n, ok := naluTypeNames[t]; ok {
		return n
	}
	return "NALUType(" + strconv.Itoa(int(t)) + ")"
}

// IsParameterSet reports if the unit carries decoder configuration.
func (t NALUType) IsParameterSet() bool {
	return t == NALUTypeSPS || t == NALUTypePPS
}

// TypeOf returns the type of a NALU without start code.
func TypeOf(nalu []byte) NALUType {
	return NALUType(nalu[0] & 0x1F)
}

// startCodeSize is the prefix the cameras write before every payload.
const startCodeSize = 4

// LeadingType returns the type of the first NALU in a payload written with
// a 4 byte start code. It returns false if the payload is too short.
func LeadingType(payload []byte) (NALUType, bool) {
	if len(payload) <= startCodeSize {
		return 0, false
	}
	return TypeOf(payload[startCodeSize:]), true
}
