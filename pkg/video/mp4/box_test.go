package mp4

import (
	"bytes"
	"errors"
	"testing"

	"ipcamconv/pkg/video/mp4/bitio"

	"github.com/stretchr/testify/require"
)

func TestBoxes(t *testing.T) {
	boxes := Boxes{
		Box: &Dinf{},
		Children: []Boxes{
			{
				Box: &Dref{EntryCount: 1},
				Children: []Boxes{
					{Box: &URL{FullBox: FullBox{Flags: [3]byte{0, 0, 1}}}},
				},
			},
		},
	}
	require.Equal(t, 36, boxes.Size())

	buf := &bytes.Buffer{}
	w := bitio.NewWriter(buf)
	require.NoError(t, boxes.Marshal(w))

	expected := []byte{
		0x00, 0x00, 0x00, 0x24, 'd', 'i', 'n', 'f',
		0x00, 0x00, 0x00, 0x1c, 'd', 'r', 'e', 'f',
		0x00, 0x00, 0x00, 0x00, // version, flags
		0x00, 0x00, 0x00, 0x01, // entry count
		0x00, 0x00, 0x00, 0x0c, 'u', 'r', 'l', ' ',
		0x00, 0x00, 0x00, 0x01, // version, flags
	}
	require.Equal(t, expected, buf.Bytes())
	require.Equal(t, int64(len(expected)), w.Count())
}

func TestWriteSingleBox(t *testing.T) {
	buf := &bytes.Buffer{}
	n, err := WriteSingleBox(bitio.NewWriter(buf), &Moov{})
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, []byte{0, 0, 0, 8, 'm', 'o', 'o', 'v'}, buf.Bytes())
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("mock") }

func TestBoxesWriteError(t *testing.T) {
	w := bitio.NewWriter(bitio.NewByteWriter(failWriter{}))
	boxes := Boxes{Box: &Stsd{EntryCount: 1}}
	require.Error(t, boxes.Marshal(w))
	require.Equal(t, int64(0), w.Count())
}
