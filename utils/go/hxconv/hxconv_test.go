package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ipcamconv/pkg/config"
	"ipcamconv/pkg/video/hxformat"

	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		o, err := parseArgs([]string{"-n", "-f", "matroska", "in.264", "out.mkv"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.True(t, o.skipAudio)
		require.Equal(t, "matroska", o.format)
		require.Equal(t, "in.264", o.input)
		require.Equal(t, "out.mkv", o.output)
		require.Equal(t, map[string]bool{"n": true, "f": true}, o.set)
	})
	t.Run("inputOnly", func(t *testing.T) {
		o, err := parseArgs([]string{"-q", "in.264"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.True(t, o.quiet)
		require.Equal(t, "", o.output)
	})
	t.Run("dir", func(t *testing.T) {
		o, err := parseArgs([]string{"-dir", "/rec", "-workers", "2"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.Equal(t, "/rec", o.dir)
		require.Equal(t, 2, o.workers)
	})
	t.Run("usage", func(t *testing.T) {
		cases := [][]string{
			{},
			{"a", "b", "c"},
			{"-dir", "/rec", "in.264"},
			{"-logs", "5", "in.264"},
			{"-logs", "5", "-dir", "/rec"},
		}
		for _, args := range cases {
			var stderr bytes.Buffer
			_, err := parseArgs(args, &stderr)
			require.ErrorIs(t, err, errUsage)
			require.Contains(t, stderr.String(), "usage: hxconv")
		}
	})
	t.Run("logs", func(t *testing.T) {
		o, err := parseArgs([]string{"-config", "c.yaml", "-logs", "10"}, &bytes.Buffer{})
		require.NoError(t, err)
		require.Equal(t, 10, o.logs)
		require.Equal(t, "c.yaml", o.configPath)
	})
	t.Run("unknownFlag", func(t *testing.T) {
		_, err := parseArgs([]string{"-x", "in.264"}, &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestApplyFlags(t *testing.T) {
	c, err := config.NewConfig([]byte("format: mov\nskipAudio: true\nworkers: 3"))
	require.NoError(t, err)

	o, err := parseArgs([]string{"-f", "mp4", "-workers", "5", "in.264"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, applyFlags(c, o))

	require.Equal(t, "mp4", c.Format)
	require.Equal(t, 5, c.Workers)
	require.True(t, c.SkipAudio)
	require.False(t, c.Quiet)

	o, err = parseArgs([]string{"-workers", "-1", "in.264"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.ErrorIs(t, applyFlags(c, o), config.ErrInvalidWorkers)
}

func writeRecording(t *testing.T, path string) {
	t.Helper()
	sps := []byte{
		0, 0, 0, 1, 0x67, 0x64, 0x00, 0x0c, 0xac, 0x3b, 0x50, 0xb0,
		0x4b, 0x42, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00,
		0x00, 0x03, 0x00, 0x3d, 0x08,
	}
	pps := []byte{0, 0, 0, 1, 0x68, 0xee, 0x3c, 0x80}
	idr := []byte{0, 0, 0, 1, 0x65, 0x88, 0x84, 0x00}

	var buf bytes.Buffer
	w := hxformat.NewWriter(&buf)
	w.WriteVideoFrame(100, sps)
	w.WriteVideoFrame(100, pps)
	w.WriteVideoFrame(100, idr)
	w.WriteVideoFrame(200, idr)
	w.WriteEndOfStream()
	require.NoError(t, w.Err())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestRun(t *testing.T) {
	t.Run("convert", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "rec.264")
		writeRecording(t, input)

		var stdout, stderr bytes.Buffer
		code := run([]string{"-f", "mp4", input}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		require.Contains(t, stderr.String(), "parsed 2 video packets and 0 audio packets")
		require.Contains(t, stderr.String(), "no audio detected")

		_, err := os.Stat(filepath.Join(dir, "rec.mp4"))
		require.NoError(t, err)
	})
	t.Run("quiet", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "rec.264")
		writeRecording(t, input)

		var stdout, stderr bytes.Buffer
		code := run([]string{"-q", input, filepath.Join(dir, "out.mp4")}, &stdout, &stderr)
		require.Equal(t, 0, code)
		require.Empty(t, stderr.String())
	})
	t.Run("convertErr", func(t *testing.T) {
		dir := t.TempDir()

		var stdout, stderr bytes.Buffer
		code := run([]string{"-f", "mp4", filepath.Join(dir, "nil.264")}, &stdout, &stderr)
		require.Equal(t, 1, code)
		require.Contains(t, stderr.String(), "open input")
	})
	t.Run("batch", func(t *testing.T) {
		dir := t.TempDir()
		writeRecording(t, filepath.Join(dir, "a.264"))
		writeRecording(t, filepath.Join(dir, "b.264"))

		var stdout, stderr bytes.Buffer
		code := run([]string{"-q", "-dir", dir}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		require.Contains(t, stdout.String(), "Found 2 new recordings.")
		require.Contains(t, stdout.String(), "[2/2][OK]")
	})
	t.Run("logFiles", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "rec.264")
		writeRecording(t, input)

		configPath := filepath.Join(dir, "hxconv.yaml")
		logDB := filepath.Join(dir, "logs.db")
		logFile := filepath.Join(dir, "hxconv.log")
		configYAML := "logDB: " + logDB + "\nlogFile: " + logFile + "\nformat: mp4\n"
		require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))

		var stdout, stderr bytes.Buffer
		code := run([]string{"-q", "-config", configPath, input}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())

		_, err := os.Stat(logDB)
		require.NoError(t, err)

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		require.Contains(t, string(data), "parsed 2 video packets")

		stdout.Reset()
		stderr.Reset()
		code = run([]string{"-config", configPath, "-logs", "5"}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		require.Contains(t, stdout.String(), "parsed 2 video packets and 0 audio packets\n")
	})
	t.Run("logsWithoutDB", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run([]string{"-logs", "5"}, &stdout, &stderr)
		require.Equal(t, 1, code)
		require.Contains(t, stderr.String(), errNoLogDB.Error())
	})
	t.Run("configErr", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run([]string{"-config", "/nil/hxconv.yaml", "in.264"}, &stdout, &stderr)
		require.Equal(t, 1, code)
		require.Contains(t, stderr.String(), "could not load config")
	})
	t.Run("usage", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 2, run(nil, &stdout, &stderr))
		require.Equal(t, 0, run([]string{"-h"}, &stdout, &stderr))
	})
}
