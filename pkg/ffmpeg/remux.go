package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/mp4muxer"
	"ipcamconv/pkg/video/sink"
)

// RemuxerConfig configures a Remuxer.
type RemuxerConfig struct {
	FFmpeg *FFMPEG
	Output string
	Format string // Passed to -f, may be empty.

	// Directory of the intermediate mp4 file, os.TempDir if empty.
	TempDir string

	Logger *log.Logger
	File   string // Used in log messages.

	// Defaults to NewProcess.
	NewProcess NewProcessFunc
}

// Remuxer implements sink.Sink for containers other than mp4.
// Packets are written to a temporary mp4 file that is remuxed
// by FFmpeg on Finalize.
type Remuxer struct {
	*mp4muxer.Muxer

	ctx    context.Context
	c      RemuxerConfig
	tmp    *os.File
	closed bool
}

// NewRemuxer creates the temporary file. The context stops the FFmpeg process.
func NewRemuxer(ctx context.Context, c RemuxerConfig) (*Remuxer, error) {
	tmp, err := os.CreateTemp(c.TempDir, "hxconv-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	if c.NewProcess == nil {
		c.NewProcess = NewProcess
	}
	return &Remuxer{
		Muxer: mp4muxer.New(tmp),
		ctx:   ctx,
		c:     c,
		tmp:   tmp,
	}, nil
}

// TempPath returns the path of the intermediate file.
func (r *Remuxer) TempPath() string {
	return r.tmp.Name()
}

// Finalize implements sink.Sink.
func (r *Remuxer) Finalize() error {
	defer r.Close()

	if err := r.Muxer.Finalize(); err != nil {
		return err
	}
	if err := r.tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, err)
	}

	cmd := r.c.FFmpeg.RemuxCommand(r.tmp.Name(), r.c.Output, r.c.Format)

	var mu sync.Mutex
	var lastLine string
	logFunc := func(msg string) {
		mu.Lock()
		lastLine = msg
		mu.Unlock()
		r.c.Logger.FFmpegLevel(r.c.FFmpeg.LogLevel()).
			Src("ffmpeg").
			File(r.c.File).
			Msg(msg)
	}
	r.c.Logger.Debug().Src("ffmpeg").File(r.c.File).Msgf("starting remux: %v", cmd)

	process := r.c.NewProcess(cmd).
		Timeout(10 * time.Second).
		StdoutLogger(logFunc).
		StderrLogger(logFunc)

	if err := process.Start(r.ctx); err != nil {
		mu.Lock()
		defer mu.Unlock()
		if lastLine != "" {
			return fmt.Errorf("%w: remux: %v: %v", sink.ErrFinalize, err, lastLine)
		}
		return fmt.Errorf("%w: remux: %v", sink.ErrFinalize, err)
	}
	return nil
}

// Close removes the temporary file. Safe to call multiple times.
func (r *Remuxer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.tmp.Close() //nolint:errcheck
	if err := os.Remove(r.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
