package log

import (
	"fmt"
	"io"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Rotation defaults.
const (
	DefaultMaxAge       = 7 * 24 * time.Hour
	DefaultRotationTime = 24 * time.Hour
)

// NewRotatedWriter returns a writer to logPath_YYYYMMDD files.
// logPath itself is kept as a symlink to the current file.
func NewRotatedWriter(logPath string, maxAge, rotationTime time.Duration) (io.WriteCloser, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if rotationTime <= 0 {
		rotationTime = DefaultRotationTime
	}

	rotator, err := rotatelogs.New(
		logPath+"_%Y%m%d",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("create log rotator: %w", err)
	}
	return rotator, nil
}
