// Package config loads the converter configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ipcamconv/pkg/log"
	"ipcamconv/pkg/video/hxformat"

	"gopkg.in/yaml.v2"
)

// Config stores converter configuration.
type Config struct {
	FFmpegBin      string `yaml:"ffmpegBin"`
	FFmpegLogLevel string `yaml:"ffmpegLogLevel"`

	// Output format, empty means guess from the output path.
	Format    string `yaml:"format"`
	SkipAudio bool   `yaml:"skipAudio"`
	Quiet     bool   `yaml:"quiet"`

	UnknownTags hxformat.UnknownTagPolicy  `yaml:"unknownTags"`
	VideoTiming hxformat.VideoTimingPolicy `yaml:"videoTiming"`

	LogLevel  string        `yaml:"logLevel"`
	LogFile   string        `yaml:"logFile"`
	LogDB     string        `yaml:"logDB"`
	LogMaxAge time.Duration `yaml:"logMaxAge"`

	Workers int    `yaml:"workers"`
	TempDir string `yaml:"tempDir"`
}

// Errors.
var (
	ErrPathNotAbsolute = errors.New("path is not absolute")
	ErrInvalidWorkers  = errors.New("workers must be greater than zero")
	ErrInvalidLogLevel = errors.New("invalid ffmpeg log level")
)

var ffmpegLogLevels = []string{
	"quiet", "panic", "fatal", "error", "warning",
	"info", "verbose", "debug", "trace",
}

// NewConfig parses the yaml file content. Missing values are set to their defaults.
func NewConfig(configYAML []byte) (*Config, error) {
	var c Config

	if err := yaml.Unmarshal(configYAML, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.FFmpegBin == "" {
		c.FFmpegBin = "/usr/bin/ffmpeg"
	}
	if c.FFmpegLogLevel == "" {
		c.FFmpegLogLevel = "error"
	}
	if c.UnknownTags == "" {
		c.UnknownTags = hxformat.UnknownTagsFail
	}
	if c.VideoTiming == "" {
		c.VideoTiming = hxformat.VideoTimingIgnore
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxAge == 0 {
		c.LogMaxAge = log.DefaultMaxAge
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses the file at path.
// The defaults are returned if path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return NewConfig(nil)
	}
	configYAML, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := NewConfig(configYAML)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return c, nil
}

// Validate checks every field. Flags may change the
// config after loading, so it is exported.
func (c Config) Validate() error {
	if !filepath.IsAbs(c.FFmpegBin) {
		return fmt.Errorf("ffmpegBin '%v': %w", c.FFmpegBin, ErrPathNotAbsolute)
	}
	if !stringInStrings(c.FFmpegLogLevel, ffmpegLogLevels) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.FFmpegLogLevel)
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidWorkers, c.Workers)
	}
	if c.LogFile != "" && !filepath.IsAbs(c.LogFile) {
		return fmt.Errorf("logFile '%v': %w", c.LogFile, ErrPathNotAbsolute)
	}
	if c.LogDB != "" && !filepath.IsAbs(c.LogDB) {
		return fmt.Errorf("logDB '%v': %w", c.LogDB, ErrPathNotAbsolute)
	}
	return nil
}

// CheckFFmpeg returns an error if the ffmpeg binary does not exist.
// Only conversions that remux need it.
func (c Config) CheckFFmpeg() error {
	if _, err := os.Stat(c.FFmpegBin); err != nil {
		return fmt.Errorf("ffmpegBin '%v': %w", c.FFmpegBin, err)
	}
	return nil
}

// Policy returns the record policy.
func (c Config) Policy() hxformat.Policy {
	return hxformat.Policy{
		UnknownTags: c.UnknownTags,
		VideoTiming: c.VideoTiming,
	}
}

// StderrLevel returns the highest level written to stderr.
func (c Config) StderrLevel() log.Level {
	if c.Quiet {
		return log.LevelError
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

func stringInStrings(s string, list []string) bool {
	for _, l := range list {
		if s == l {
			return true
		}
	}
	return false
}
