package convert

import (
	"errors"
	"path/filepath"
	"strings"
)

// FormatMP4 is written without ffmpeg.
const FormatMP4 = "mp4"

// InputExt is the extension of recordings.
const InputExt = ".264"

// ErrNoFormat output path and format are both empty.
var ErrNoFormat = errors.New("an output format is required when no output path is given")

var formatExts = map[string]string{
	"mp4":      ".mp4",
	"matroska": ".mkv",
	"mov":      ".mov",
	"avi":      ".avi",
	"mpegts":   ".ts",
	"flv":      ".flv",
}

const unknownExt = ".out"

// DefaultExt returns the file extension of format.
// The second value is false if the format is unknown.
func DefaultExt(format string) (string, bool) {
	ext, ok := formatExts[format]
	if !ok {
		return unknownExt, false
	}
	return ext, true
}

// GuessFormat returns the format matching the extension of path,
// or an empty string if it is unknown.
func GuessFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for format, e := range formatExts {
		if e == ext {
			return format
		}
	}
	return ""
}

// OutputPath returns the input path without the recording extension
// plus the default extension of format.
func OutputPath(input string, format string) (string, bool) {
	ext, ok := DefaultExt(format)
	return strings.TrimSuffix(input, InputExt) + ext, ok
}

// Target is a resolved output.
type Target struct {
	Path   string
	Format string // Empty if ffmpeg should guess it.

	// False if the path was built from an unknown format.
	KnownExt bool
}

// Native reports if the target is written without ffmpeg.
func (t Target) Native() bool {
	return t.Format == FormatMP4
}

// ResolveTarget returns the output of input. If output is empty
// the path is derived from format, otherwise a missing format is
// guessed from the output extension.
func ResolveTarget(input, output, format string) (Target, error) {
	if output == "" {
		if format == "" {
			return Target{}, ErrNoFormat
		}
		path, ok := OutputPath(input, format)
		return Target{Path: path, Format: format, KnownExt: ok}, nil
	}
	if format == "" {
		format = GuessFormat(output)
	}
	return Target{Path: output, Format: format, KnownExt: true}, nil
}
