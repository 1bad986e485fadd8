package hxformat

import (
	"fmt"
)

// UnknownTagPolicy decides what happens to unrecognized tags.
type UnknownTagPolicy string

// Unknown tag policies.
const (
	// UnknownTagsFail aborts the read.
	UnknownTagsFail UnknownTagPolicy = "fail"

	// UnknownTagsSkip continues with the next four bytes. No body is
	// consumed, the next read will likely land inside the record.
	UnknownTagsSkip UnknownTagPolicy = "skip"
)

// VideoTimingPolicy decides what happens to video timing records.
type VideoTimingPolicy string

// Video timing policies.
const (
	VideoTimingIgnore VideoTimingPolicy = "ignore"
	VideoTimingFail   VideoTimingPolicy = "fail"
)

// Policy controls how records without a defined meaning are handled.
type Policy struct {
	UnknownTags UnknownTagPolicy
	VideoTiming VideoTimingPolicy
}

// DefaultPolicy fails on unknown tags and ignores video timing records.
func DefaultPolicy() Policy {
	return Policy{
		UnknownTags: UnknownTagsFail,
		VideoTiming: VideoTimingIgnore,
	}
}

// Validate checks that both fields hold known values.
func (p Policy) Validate() error {
	switch p.UnknownTags {
	case UnknownTagsFail, UnknownTagsSkip:
	default:
		return fmt.Errorf("invalid unknown tag policy: %q", p.UnknownTags)
	}
	switch p.VideoTiming {
	case VideoTimingIgnore, VideoTimingFail:
	default:
		return fmt.Errorf("invalid video timing policy: %q", p.VideoTiming)
	}
	return nil
}

// Check returns an error if the policy rejects the record.
// Records with a defined meaning are always accepted.
func (p Policy) Check(rec Record) error {
	switch v := rec.(type) {
	case Unknown:
		if p.UnknownTags != UnknownTagsSkip {
			return UnknownTagError{Tag: v.Raw, Offset: v.Offset}
		}
	case VideoTiming:
		if p.VideoTiming == VideoTimingFail {
			return ErrVideoTiming
		}
	}
	return nil
}
