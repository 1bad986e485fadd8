package writerseeker

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, ws *WriterSeeker, data, expected string) {
	t.Helper()
	n, err := ws.Write([]byte(data))
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, expected, string(ws.Bytes()))
}

func seek(t *testing.T, ws *WriterSeeker, offset int64, whence int, expected int) {
	t.Helper()
	pos, err := ws.Seek(offset, whence)
	require.NoError(t, err)
	require.Equal(t, int64(expected), pos)
}

func TestWriterSeeker(t *testing.T) {
	ws := &WriterSeeker{}
	write(t, ws, "hello", "hello")
	write(t, ws, " world", "hello world")

	seek(t, ws, -2, io.SeekEnd, len("hello world")-2)
	write(t, ws, "k!", "hello work!")

	seek(t, ws, 6, io.SeekStart, 6)
	write(t, ws, "gopher", "hello gopher")

	// Overwrite before growing.
	seek(t, ws, -4, io.SeekCurrent, len("hello gopher")-4)
	write(t, ws, "lang fans", "hello golang fans")

	// Gap is filled with null bytes.
	seek(t, ws, 4, io.SeekCurrent, len("hello golang fans")+4)
	write(t, ws, "!", "hello golang fans\x00\x00\x00\x00!")

	require.Equal(t, len("hello golang fans")+5, ws.Len())
	require.NoError(t, ws.Close())
}

func TestWriterSeekerLargeGap(t *testing.T) {
	ws := &WriterSeeker{}
	seek(t, ws, 1024, io.SeekStart, 1024)
	write(t, ws, "hello", strings.Repeat("\x00", 1024)+"hello")

	b, err := io.ReadAll(ws.BytesReader())
	require.NoError(t, err)
	require.Equal(t, ws.Bytes(), b)
}

func TestWriterSeekerSeekPastCapacity(t *testing.T) {
	ws := &WriterSeeker{}
	write(t, ws, "ab", "ab")
	seek(t, ws, 100, io.SeekStart, 100)
	write(t, ws, "x", "ab"+strings.Repeat("\x00", 98)+"x")
	require.Equal(t, 101, ws.Len())
}

func TestWriterSeekerErrors(t *testing.T) {
	ws := &WriterSeeker{}
	_, err := ws.Seek(-1, io.SeekStart)
	require.ErrorIs(t, err, ErrNegativeResultPos)

	_, err = ws.Seek(0, 5)
	require.ErrorIs(t, err, ErrInvalidWhence)
}
