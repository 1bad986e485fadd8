// Package convert converts recordings into standard container files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ipcamconv/pkg/config"
	"ipcamconv/pkg/ffmpeg"
	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/demux"
	"ipcamconv/pkg/video/mp4muxer"
	"ipcamconv/pkg/video/probe"
	"ipcamconv/pkg/video/sink"
)

// ErrSameFile output would overwrite the input.
var ErrSameFile = errors.New("input and output are the same file")

// Converter converts recordings.
type Converter struct {
	config *config.Config
	logger *log.Logger
	ffmpeg *ffmpeg.FFMPEG

	newProcess ffmpeg.NewProcessFunc
}

// New returns a converter.
func New(c *config.Config, logger *log.Logger) *Converter {
	return &Converter{
		config:     c,
		logger:     logger,
		ffmpeg:     ffmpeg.New(c.FFmpegBin, c.FFmpegLogLevel),
		newProcess: ffmpeg.NewProcess,
	}
}

// Result of a conversion.
type Result struct {
	Input           string
	Target          Target
	Characteristics probe.Characteristics
	Stats           demux.Stats
}

// Convert converts the input recording. The output path is derived from
// the configured format if empty. Nothing is left at the output path
// if the conversion fails.
func (c *Converter) Convert(ctx context.Context, input, output string) (*Result, error) {
	target, err := ResolveTarget(input, output, c.config.Format)
	if err != nil {
		return nil, err
	}
	return c.convert(ctx, input, target)
}

func (c *Converter) convert(ctx context.Context, input string, target Target) (*Result, error) {
	logger := c.logger
	if !target.KnownExt {
		logger.Warn().Src("convert").File(input).
			Msgf("unknown format %q, using extension %v", target.Format, unknownExt)
	}
	if samePath(input, target.Path) {
		return nil, fmt.Errorf("%w: %v", ErrSameFile, input)
	}
	if !target.Native() {
		if err := c.config.CheckFFmpeg(); err != nil {
			return nil, err
		}
	}

	in, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := c.newSink(ctx, input, target)
	if err != nil {
		return nil, err
	}

	res, err := c.run(ctx, in, out, input, target)
	if err != nil {
		out.Close() //nolint:errcheck
		if err2 := os.Remove(target.Path); err2 != nil && !errors.Is(err2, os.ErrNotExist) {
			logger.Error().Src("convert").File(input).
				Msgf("could not remove partial output: %v", err2)
		}
		return nil, err
	}
	return res, nil
}

func (c *Converter) run(
	ctx context.Context,
	in *os.File,
	out outputSink,
	input string,
	target Target,
) (*Result, error) {
	format := target.Format
	if format == "" {
		format = "guessed by ffmpeg"
	}
	c.logger.Info().Src("convert").File(input).
		Msgf("output %v (%v)", target.Path, format)

	dr, err := demux.Run(ctx, in, out, demux.Options{
		Policy:    c.config.Policy(),
		SkipAudio: c.config.SkipAudio,
		Logger:    c.logger,
		File:      input,
	})
	if err != nil {
		return nil, err
	}
	if err := out.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	c.logger.Info().Src("convert").File(input).
		Msgf("parsed %d video packets and %d audio packets",
			dr.Stats.VideoPackets, dr.Stats.AudioPackets)

	return &Result{
		Input:           input,
		Target:          target,
		Characteristics: dr.Characteristics,
		Stats:           dr.Stats,
	}, nil
}

// outputSink is closed if the conversion fails.
type outputSink interface {
	sink.Sink
	Close() error
}

func (c *Converter) newSink(ctx context.Context, input string, target Target) (outputSink, error) {
	if target.Native() {
		file, err := os.Create(target.Path)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		return &fileMuxer{
			Muxer: mp4muxer.New(file),
			file:  file,
		}, nil
	}

	remuxer, err := ffmpeg.NewRemuxer(ctx, ffmpeg.RemuxerConfig{
		FFmpeg:     c.ffmpeg,
		Output:     target.Path,
		Format:     target.Format,
		TempDir:    c.config.TempDir,
		Logger:     c.logger,
		File:       input,
		NewProcess: c.newProcess,
	})
	if err != nil {
		return nil, err
	}
	return remuxer, nil
}

// fileMuxer writes a mp4 file directly.
type fileMuxer struct {
	*mp4muxer.Muxer
	file *os.File
}

func (m *fileMuxer) Finalize() error {
	if err := m.Muxer.Finalize(); err != nil {
		return err
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("%w: %v", sink.ErrFinalize, err)
	}
	return nil
}

func (m *fileMuxer) Close() error {
	return m.file.Close()
}

func samePath(a, b string) bool {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return absA == absB
}
